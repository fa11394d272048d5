package archive

import (
	"log/slog"

	"github.com/Dimensional/GalaxyDL/pkg/content"
	"github.com/Dimensional/GalaxyDL/pkg/gog"
)

// extractDepotManifests pulls the depot manifest identifiers out of a build
// manifest. Extraction is tolerant: missing or malformed fields yield an
// empty list, since a build with no extractable depots is valid input.
// Entries without a manifest field (redistributables) are skipped, as is
// the offline depot, which duplicates content already covered elsewhere.
func extractDepotManifests(doc gog.Document, gen content.Generation, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}
	var depots []gog.Document
	switch gen {
	case content.GenV1:
		product, ok := doc.GetDocument("product")
		if !ok {
			return nil
		}
		depots = product.Documents("depots")
	case content.GenV2:
		depots = doc.Documents("depots")
	default:
		return nil
	}

	seen := make(map[string]struct{}, len(depots))
	var out []string
	for _, d := range depots {
		manifest, ok := d.GetString("manifest")
		if !ok || manifest == "" {
			continue
		}
		if _, dup := seen[manifest]; dup {
			continue
		}
		seen[manifest] = struct{}{}
		out = append(out, manifest)
	}

	if gen == content.GenV2 {
		if offline, ok := doc.GetDocument("offlineDepot"); ok {
			logger.Debug("skipping offline depot", "manifest", offline.String("manifest", ""))
		}
	}
	return out
}

// chunkRef identifies one v2 chunk as a depot manifest declares it: the md5
// of its compressed bytes (which is also its address) and that size.
type chunkRef struct {
	md5  string
	size int64
}

// collectChunks gathers the chunk references of a v2 depot manifest,
// deduplicated. The manifest nests them under depot.items[].chunks[].
func collectChunks(depot gog.Document, refs map[string]chunkRef) {
	d, ok := depot.GetDocument("depot")
	if !ok {
		return
	}
	for _, item := range d.Documents("items") {
		for _, ch := range item.Documents("chunks") {
			md5sum, ok := ch.GetString("compressedMd5")
			if !ok || md5sum == "" {
				continue
			}
			if _, dup := refs[md5sum]; dup {
				continue
			}
			refs[md5sum] = chunkRef{md5: md5sum, size: ch.Int("compressedSize", -1)}
		}
	}
}

// blobFile is one file window inside a v1 depot blob.
type blobFile struct {
	Path   string
	Offset int64
	Size   int64
	Hash   string
}

// collectBlobFiles gathers the per-file (offset, size, hash) windows of a
// v1 depot manifest. Upstream names the path field inconsistently across
// manifest vintages, so both forms are read.
func collectBlobFiles(depot gog.Document) []blobFile {
	d, ok := depot.GetDocument("depot")
	if !ok {
		return nil
	}
	var out []blobFile
	for _, f := range d.Documents("files") {
		path, ok := f.GetString("path")
		if !ok {
			path = f.String("url", "")
		}
		offset, hasOffset := f.GetInt("offset")
		size, hasSize := f.GetInt("size")
		if !hasOffset || !hasSize {
			continue
		}
		out = append(out, blobFile{
			Path:   path,
			Offset: offset,
			Size:   size,
			Hash:   f.String("hash", ""),
		})
	}
	return out
}
