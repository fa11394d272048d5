package archive

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Stats walks the archive and summarizes what it holds. The database
// supplies the logical counts; the filesystem supplies the physical ones.
func (a *Archiver) Stats() (*Stats, error) {
	st := &Stats{BuildsByGen: map[string]int{}}

	games := make(map[string]struct{})
	for _, b := range a.db.Builds() {
		st.Builds++
		st.BuildsByGen[b.Gen.String()]++
		games[b.GameID] = struct{}{}
	}
	st.Games = len(games)

	walk := func(rel string, visit func(name string, size int64)) error {
		err := filepath.WalkDir(a.store.Abs(rel), func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			visit(d.Name(), info.Size())
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	if err := walk("chunks", func(name string, size int64) {
		st.Chunks++
		st.ChunkBytes += size
	}); err != nil {
		return nil, err
	}

	if err := walk("blobs", func(name string, size int64) {
		// Each blob has a checksum sidecar next to it; count payloads only.
		if name == "main.bin" {
			st.Blobs++
			st.BlobBytes += size
		}
	}); err != nil {
		return nil, err
	}

	var manifestBytes int64
	for _, tree := range []struct {
		rel string
		v1  bool
	}{
		{"builds/v1", true},
		{"builds/v2", false},
		{"manifests/v1", true},
		{"manifests/v2", false},
	} {
		tree := tree
		if err := walk(tree.rel, func(name string, size int64) {
			manifestBytes += size
			if !readableSibling(name, tree.v1) {
				st.Manifests++
			}
		}); err != nil {
			return nil, err
		}
	}

	st.TotalBytes = st.ChunkBytes + st.BlobBytes + manifestBytes
	return st, nil
}

// readableSibling reports whether a manifest-tree file is a prettified
// copy rather than raw archived bytes. Raw v1 manifests already end in
// .json, so their readable copies carry a doubled suffix; raw v2 manifests
// are bare hashes.
func readableSibling(name string, v1 bool) bool {
	if v1 {
		return strings.HasSuffix(name, ".json.json")
	}
	return strings.HasSuffix(name, ".json")
}
