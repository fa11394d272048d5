package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Dimensional/GalaxyDL/pkg/content"
	"github.com/Dimensional/GalaxyDL/pkg/gog"
	"github.com/Dimensional/GalaxyDL/pkg/store"
)

// acquiredManifest is a build manifest located by one of the resolution
// strategies, carrying everything persistence needs.
type acquiredManifest struct {
	doc gog.Document
	// raw holds the upstream bytes unmodified (still compressed for v2);
	// these are the authoritative archived bytes.
	raw       []byte
	gen       content.Generation
	sourceURL string
	// storageID addresses the manifest in the archive: the meta hash for
	// v2, the repository identifier for v1.
	storageID    string
	repositoryID string
}

// acquireBuildManifest locates exactly one build manifest for the triple
// via an ordered, short-circuiting strategy chain. A strategy that yields
// nothing (absence or failure, logged) passes control to the next;
// exhaustion produces a ManifestNotFoundError naming what was tried.
func (a *Archiver) acquireBuildManifest(ctx context.Context, gameID, buildID, platform string) (*acquiredManifest, error) {
	strategies := []struct {
		name string
		run  func(context.Context) (*acquiredManifest, error)
	}{
		{"listing-scan", func(ctx context.Context) (*acquiredManifest, error) {
			return a.acquireFromListing(ctx, gameID, buildID, platform)
		}},
		{"v1-repository-probe", func(ctx context.Context) (*acquiredManifest, error) {
			return a.acquireV1Repository(ctx, gameID, buildID, platform)
		}},
		{"v2-meta-probe", func(ctx context.Context) (*acquiredManifest, error) {
			return a.acquireV2Meta(ctx, gameID, buildID)
		}},
		{"v2-collector-probe", func(ctx context.Context) (*acquiredManifest, error) {
			return a.acquireV2Collector(ctx, gameID, buildID)
		}},
	}

	attempts := make([]string, 0, len(strategies))
	for _, s := range strategies {
		attempts = append(attempts, s.name)
		m, err := s.run(ctx)
		if err != nil {
			a.logger.Debug("manifest strategy failed", "strategy", s.name,
				"game", gameID, "build", buildID, "error", err)
			continue
		}
		if m != nil {
			a.logger.Debug("manifest located", "strategy", s.name,
				"game", gameID, "build", buildID, "generation", m.gen.String())
			return m, nil
		}
	}
	return nil, &ManifestNotFoundError{
		GameID:   gameID,
		BuildID:  buildID,
		Platform: platform,
		Attempts: attempts,
	}
}

// acquireFromListing scans the unified builds listing for the build id and
// follows the record's own link and declared generation verbatim: the
// origin's self-description beats any heuristic.
func (a *Archiver) acquireFromListing(ctx context.Context, gameID, buildID, platform string) (*acquiredManifest, error) {
	doc, err := a.client.GetJSON(ctx, a.endpoints.BuildsURL(gameID, platform, 2, 0, 0))
	if err != nil || doc == nil {
		return nil, err
	}
	for _, item := range doc.Documents("items") {
		c := normalizeCandidate(item, platform, 2)
		if c.BuildID != buildID && c.LegacyBuildID != buildID {
			continue
		}
		if c.Link == "" {
			continue
		}
		if c.Gen == content.GenV1 {
			return a.fetchV1BuildManifest(ctx, c.Link, repositoryIDFromLink(c.Link, buildID))
		}
		return a.fetchV2BuildManifest(ctx, c.Link, lastPathSegment(c.Link))
	}
	return nil, nil
}

func (a *Archiver) acquireV1Repository(ctx context.Context, gameID, buildID, platform string) (*acquiredManifest, error) {
	url := a.endpoints.V1ManifestURL(gameID, platform, buildID, "repository.json")
	return a.fetchV1BuildManifest(ctx, url, buildID)
}

func (a *Archiver) acquireV2Meta(ctx context.Context, gameID, buildID string) (*acquiredManifest, error) {
	if !is32Hex(buildID) {
		return nil, nil
	}
	gp, err := content.GalaxyPath(buildID)
	if err != nil {
		return nil, err
	}
	return a.fetchV2BuildManifest(ctx, a.endpoints.V2MetaURL(gp), buildID)
}

func (a *Archiver) acquireV2Collector(ctx context.Context, gameID, buildID string) (*acquiredManifest, error) {
	gp, err := content.GalaxyPath(buildID)
	if err != nil {
		return nil, err
	}
	return a.fetchV2BuildManifest(ctx, a.endpoints.CollectorBuildURL(gp), buildID)
}

// fetchV1BuildManifest fetches a v1 repository document: plain JSON, no
// decompression.
func (a *Archiver) fetchV1BuildManifest(ctx context.Context, url, repositoryID string) (*acquiredManifest, error) {
	raw, err := a.client.GetRawBytes(ctx, url)
	if err != nil || raw == nil {
		return nil, err
	}
	doc, err := gog.ParseDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("v1 build manifest %s: %w", url, err)
	}
	return &acquiredManifest{
		doc:          doc,
		raw:          raw,
		gen:          content.GenV1,
		sourceURL:    url,
		storageID:    repositoryID,
		repositoryID: repositoryID,
	}, nil
}

// fetchV2BuildManifest fetches a v2 meta document: decompress-then-parse,
// keeping the compressed upstream bytes for verbatim persistence.
func (a *Archiver) fetchV2BuildManifest(ctx context.Context, url, manifestID string) (*acquiredManifest, error) {
	doc, raw, _, err := a.client.GetCompressedJSON(ctx, url)
	if err != nil || doc == nil {
		return nil, err
	}
	return &acquiredManifest{
		doc:       doc,
		raw:       raw,
		gen:       content.GenV2,
		sourceURL: url,
		storageID: manifestID,
	}, nil
}

// ArchiveBuild acquires and persists one build manifest plus the depot
// manifests it references, then records the build. Re-archiving an already
// recorded key is an idempotent skip. The build manifest is durably written
// before any depot fetch starts; per-depot failures are collected into res
// and do not abort the remaining depots.
func (a *Archiver) ArchiveBuild(ctx context.Context, gameID, buildID, platform string, res *Result) error {
	if _, ok := a.db.Get(gameID, buildID, platform); ok {
		a.logger.Info("build already archived", "game", gameID, "build", buildID, "platform", platform)
		res.BuildsSkipped++
		return nil
	}

	m, err := a.acquireBuildManifest(ctx, gameID, buildID, platform)
	if err != nil {
		return fmt.Errorf("archive build %s/%s: %w", gameID, buildID, err)
	}

	rel, err := content.BuildManifestPath(m.gen, gameID, platform, m.storageID)
	if err != nil {
		return fmt.Errorf("archive build %s/%s: %w", gameID, buildID, err)
	}
	if err := a.store.Write(rel, m.raw); err != nil {
		return fmt.Errorf("archive build %s/%s: %w: %w", gameID, buildID, ErrPersistence, err)
	}
	a.writeReadable(rel, m.raw)

	refs := make(map[string]struct{})
	for _, manifestID := range extractDepotManifests(m.doc, m.gen, a.logger) {
		refs[manifestID] = struct{}{}
		if err := a.archiveDepotManifest(ctx, gameID, platform, m, manifestID, res); err != nil {
			a.logger.Warn("depot manifest failed", "game", gameID, "build", buildID,
				"manifest", manifestID, "error", err)
			res.addError("depot manifest %s for build %s: %v", manifestID, buildID, err)
		}
	}

	buildHash, err := store.Hash(m.raw, store.MD5)
	if err != nil {
		return fmt.Errorf("archive build %s/%s: %w", gameID, buildID, err)
	}
	b := &Build{
		GameID:       gameID,
		BuildID:      buildID,
		BuildHash:    buildHash,
		Platform:     platform,
		Gen:          m.gen,
		ArchivePath:  rel,
		CDNURL:       m.sourceURL,
		Timestamp:    time.Now().Unix(),
		Dependencies: m.doc.Strings("dependencies"),
		RepositoryID: m.repositoryID,
		VersionName:  m.doc.String("versionName", m.doc.String("version_name", "")),
		Tags:         m.doc.Strings("tags"),
	}
	if b.Dependencies == nil {
		b.Dependencies = []string{}
	}
	b.setManifests(refs)
	a.db.Put(b)
	res.BuildsArchived++

	if err := a.db.Save(); err != nil {
		return fmt.Errorf("archive build %s/%s: %w", gameID, buildID, err)
	}
	a.logger.Info("build archived", "game", gameID, "build", buildID,
		"platform", platform, "generation", m.gen.String(), "depots", len(refs))
	return nil
}

// ArchiveGame resolves every build of gameID on the given platforms and
// archives each. Per-build failures land in the result's error list; the
// call errors only when resolution itself fails outright.
func (a *Archiver) ArchiveGame(ctx context.Context, gameID string, platforms []string) (*Result, error) {
	res := &Result{}
	candidates, err := a.ListBuilds(ctx, gameID, platforms)
	if err != nil {
		return res, err
	}
	a.logger.Info("builds resolved", "game", gameID, "count", len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := a.ArchiveBuild(ctx, gameID, c.BuildID, c.Platform, res); err != nil {
			res.addError("build %s/%s: %v", c.BuildID, c.Platform, err)
		}
	}
	return res, nil
}

// archiveDepotManifest fetches and persists one depot manifest. An already
// present file is the idempotence fast path and is not re-fetched.
func (a *Archiver) archiveDepotManifest(ctx context.Context, gameID, platform string, m *acquiredManifest, manifestID string, res *Result) error {
	rel, err := content.DepotManifestPath(m.gen, gameID, platform, m.repositoryID, manifestID)
	if err != nil {
		return err
	}
	if a.store.Exists(rel) {
		res.ManifestsSkipped++
		return nil
	}

	var raw []byte
	switch m.gen {
	case content.GenV1:
		url := a.endpoints.V1ManifestURL(gameID, platform, m.repositoryID, manifestID)
		raw, err = a.client.GetRawBytes(ctx, url)
		if err != nil {
			return err
		}
	case content.GenV2:
		gp, gpErr := content.GalaxyPath(manifestID)
		if gpErr != nil {
			return gpErr
		}
		for _, url := range a.endpoints.DepotManifestURLs(gp) {
			_, raw, _, err = a.client.GetCompressedJSON(ctx, url)
			if err != nil {
				return err
			}
			if raw != nil {
				break
			}
		}
	}
	if raw == nil {
		return fmt.Errorf("depot manifest %s: %w", manifestID, ErrNotFound)
	}

	if err := a.store.Write(rel, raw); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	a.writeReadable(rel, raw)
	res.ManifestsArchived++
	return nil
}

// writeReadable writes the prettified sibling copy of a raw manifest.
// Best effort: the raw bytes are the archive-critical artifact, so any
// failure here is logged and swallowed.
func (a *Archiver) writeReadable(rawPath string, raw []byte) {
	plain, _ := store.TryDecompress(raw)
	var v any
	if err := json.Unmarshal(plain, &v); err != nil {
		a.logger.Debug("readable copy skipped", "path", rawPath, "error", err)
		return
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		a.logger.Debug("readable copy skipped", "path", rawPath, "error", err)
		return
	}
	if err := a.store.Write(content.ReadablePath(rawPath), pretty); err != nil {
		a.logger.Warn("readable copy write failed", "path", rawPath, "error", err)
	}
}

func is32Hex(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func lastPathSegment(url string) string {
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}

// repositoryIDFromLink pulls the repository directory out of a v1 manifest
// link (.../manifests/{game}/{platform}/{repository}/repository.json),
// falling back to the build id when the link has an unexpected shape.
func repositoryIDFromLink(link, fallback string) string {
	parts := strings.Split(strings.TrimSuffix(link, "/"), "/")
	if len(parts) >= 2 && strings.HasSuffix(link, "repository.json") {
		return parts[len(parts)-2]
	}
	return fallback
}
