package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/Dimensional/GalaxyDL/pkg/content"
)

const (
	buildB  = "0123456789abcdef0123456789abcdef"
	depotC1 = "aaaabbbbccccddddeeeeffff00001111"
	depotC2 = "22223333444455556666777788889999"
)

func TestArchiveBuildV2EndToEnd(t *testing.T) {
	buildManifest, _ := json.Marshal(map[string]any{
		"depots": []map[string]any{
			{"manifest": depotC1},
			{"manifest": depotC2},
			{"redist": "vcrun2019"},
		},
		"offlineDepot": map[string]any{"manifest": "ffffffffffffffffffffffffffffffff"},
	})
	depotManifest, _ := json.Marshal(map[string]any{"depot": map[string]any{"items": []any{}}})

	var compressedBuild []byte
	mux := http.NewServeMux()
	mux.HandleFunc("/content-system/v2/meta/01/23/"+buildB, func(w http.ResponseWriter, r *http.Request) {
		w.Write(compressedBuild)
	})
	for _, id := range []string{depotC1, depotC2} {
		id := id
		mux.HandleFunc("/manifests/depots/"+id[0:2]+"/"+id[2:4]+"/"+id, func(w http.ResponseWriter, r *http.Request) {
			w.Write(zlibCompress(t, depotManifest))
		})
	}

	a := newTestArchiver(t, mux)
	compressedBuild = zlibCompress(t, buildManifest)

	res := &Result{}
	if err := a.ArchiveBuild(context.Background(), "G", buildB, "windows", res); err != nil {
		t.Fatalf("ArchiveBuild: %v", err)
	}
	if res.BuildsArchived != 1 || res.ManifestsArchived != 2 {
		t.Fatalf("counts: %+v", res)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}

	// Raw build manifest lands at the fan-out path, bytes unmodified.
	rawPath := "builds/v2/meta/01/23/" + buildB
	raw, err := a.store.Read(rawPath)
	if err != nil {
		t.Fatalf("read archived build manifest: %v", err)
	}
	if !bytes.Equal(raw, compressedBuild) {
		t.Fatal("archived build manifest bytes differ from upstream")
	}
	// Readable sibling is decompressed, parseable JSON.
	pretty, err := a.store.Read(content.ReadablePath(rawPath))
	if err != nil {
		t.Fatalf("read readable sibling: %v", err)
	}
	var v map[string]any
	if err := json.Unmarshal(pretty, &v); err != nil {
		t.Fatalf("readable sibling not JSON: %v", err)
	}

	for _, id := range []string{depotC1, depotC2} {
		rel := "manifests/v2/depots/" + id[0:2] + "/" + id[2:4] + "/" + id
		if !a.store.Exists(rel) {
			t.Fatalf("depot manifest %s not archived", id)
		}
	}

	b, ok := a.db.Get("G", buildB, "windows")
	if !ok {
		t.Fatal("build not recorded")
	}
	if len(b.ManifestsReferenced) != 2 || !b.ReferencesManifest(depotC1) || !b.ReferencesManifest(depotC2) {
		t.Fatalf("manifests referenced: %v", b.ManifestsReferenced)
	}
	if b.Gen != content.GenV2 {
		t.Fatalf("generation: %v", b.Gen)
	}

	// Re-archiving the same key is a pure skip with identical bytes.
	res2 := &Result{}
	if err := a.ArchiveBuild(context.Background(), "G", buildB, "windows", res2); err != nil {
		t.Fatalf("second ArchiveBuild: %v", err)
	}
	if res2.BuildsSkipped != 1 || res2.BuildsArchived != 0 {
		t.Fatalf("second run counts: %+v", res2)
	}
	again, _ := a.store.Read(rawPath)
	if !bytes.Equal(again, raw) {
		t.Fatal("re-archive changed on-disk bytes")
	}
	if a.db.Len() != 1 {
		t.Fatalf("database holds %d entries, want 1", a.db.Len())
	}
}

func TestArchiveBuildV1EndToEnd(t *testing.T) {
	repository, _ := json.Marshal(map[string]any{
		"product": map[string]any{
			"depots": []map[string]any{
				{"manifest": "D"},
				{"redist": "directx"},
			},
		},
	})
	depotManifest, _ := json.Marshal(map[string]any{"depot": map[string]any{"files": []any{}}})

	mux := http.NewServeMux()
	mux.HandleFunc("/content-system/v1/manifests/G/windows/R123/repository.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write(repository)
	})
	mux.HandleFunc("/content-system/v1/manifests/G/windows/R123/D", func(w http.ResponseWriter, r *http.Request) {
		w.Write(depotManifest)
	})

	a := newTestArchiver(t, mux)
	res := &Result{}
	if err := a.ArchiveBuild(context.Background(), "G", "R123", "windows", res); err != nil {
		t.Fatalf("ArchiveBuild: %v", err)
	}

	raw, err := a.store.Read("builds/v1/manifests/G/windows/R123/repository.json")
	if err != nil {
		t.Fatalf("read archived repository: %v", err)
	}
	if !bytes.Equal(raw, repository) {
		t.Fatal("archived repository bytes differ from upstream")
	}
	if !a.store.Exists("manifests/v1/manifests/G/windows/R123/D") {
		t.Fatal("depot manifest D not archived")
	}

	b, ok := a.db.Get("G", "R123", "windows")
	if !ok {
		t.Fatal("build not recorded")
	}
	if b.Gen != content.GenV1 || b.RepositoryID != "R123" {
		t.Fatalf("record: gen=%v repo=%q", b.Gen, b.RepositoryID)
	}
	if len(b.ManifestsReferenced) != 1 || b.ManifestsReferenced[0] != "D" {
		t.Fatalf("manifests referenced: %v", b.ManifestsReferenced)
	}
}

func TestArchiveBuildExhaustedStrategies(t *testing.T) {
	a := newTestArchiver(t, http.NotFoundHandler())

	res := &Result{}
	err := a.ArchiveBuild(context.Background(), "G", buildB, "windows", res)
	if err == nil {
		t.Fatal("want error when every strategy misses")
	}
	var mnf *ManifestNotFoundError
	if !errors.As(err, &mnf) {
		t.Fatalf("want ManifestNotFoundError, got %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("ManifestNotFoundError should match ErrNotFound")
	}
	if len(mnf.Attempts) == 0 {
		t.Fatal("attempts not recorded")
	}
	if res.BuildsArchived != 0 || a.db.Len() != 0 {
		t.Fatal("failed acquisition must not record anything")
	}
}

func TestArchiveBuildFollowsListingLink(t *testing.T) {
	buildManifest, _ := json.Marshal(map[string]any{
		"depots": []map[string]any{{"manifest": depotC1}},
	})
	depotManifest, _ := json.Marshal(map[string]any{"depot": map[string]any{"items": []any{}}})

	var baseURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/products/G/os/windows/builds", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"total_count": 1,
			"items": []map[string]any{{
				"build_id":   "57",
				"generation": 2,
				"link":       baseURL + "/content-system/v2/meta/01/23/" + buildB,
			}},
		})
	})
	mux.HandleFunc("/content-system/v2/meta/01/23/"+buildB, func(w http.ResponseWriter, r *http.Request) {
		w.Write(zlibCompress(t, buildManifest))
	})
	mux.HandleFunc("/manifests/depots/"+depotC1[0:2]+"/"+depotC1[2:4]+"/"+depotC1, func(w http.ResponseWriter, r *http.Request) {
		w.Write(zlibCompress(t, depotManifest))
	})

	a := newTestArchiver(t, mux)
	baseURL = a.endpoints.CDN

	res := &Result{}
	if err := a.ArchiveBuild(context.Background(), "G", "57", "windows", res); err != nil {
		t.Fatalf("ArchiveBuild: %v", err)
	}
	// The manifest is stored under the meta hash from the link, while the
	// database keys the record by the listing's build id.
	if !a.store.Exists("builds/v2/meta/01/23/" + buildB) {
		t.Fatal("manifest not stored under its meta hash")
	}
	if _, ok := a.db.Get("G", "57", "windows"); !ok {
		t.Fatal("build not recorded under its listing id")
	}
}

func TestExtractDepotManifestsTolerant(t *testing.T) {
	// Malformed shapes yield an empty list, never an error.
	cases := []map[string]any{
		{},
		{"depots": "not-an-array"},
		{"depots": []any{"not-an-object"}},
		{"product": map[string]any{}},
	}
	for i, c := range cases {
		if got := extractDepotManifests(c, content.GenV2, quietLogger()); len(got) != 0 {
			t.Fatalf("case %d: got %v", i, got)
		}
		if got := extractDepotManifests(c, content.GenV1, quietLogger()); len(got) != 0 {
			t.Fatalf("case %d (v1): got %v", i, got)
		}
	}
}
