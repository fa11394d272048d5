package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Dimensional/GalaxyDL/pkg/content"
	"github.com/Dimensional/GalaxyDL/pkg/store"
)

// ExtractBlobFile copies one file out of a v1 blob by its (offset, size)
// window into destPath. When expectedMD5 is non-empty the window is
// verified before anything is written, so a bad extraction leaves no
// output behind.
func (a *Archiver) ExtractBlobFile(blobID string, offset, size int64, expectedMD5, destPath string) error {
	blobRel := content.BlobPath(blobID)
	data, err := a.store.ReadAt(blobRel, offset, size)
	if err != nil {
		return fmt.Errorf("extract from %s: %w", blobRel, err)
	}
	if expectedMD5 != "" {
		sum, err := store.Hash(data, store.MD5)
		if err != nil {
			return fmt.Errorf("extract from %s: %w", blobRel, err)
		}
		if !strings.EqualFold(sum, expectedMD5) {
			return fmt.Errorf("extract from %s at %d: got %s, want %s: %w",
				blobRel, offset, sum, expectedMD5, ErrIntegrityMismatch)
		}
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("extract to %s: %w", destPath, err)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return fmt.Errorf("extract to %s: %w", destPath, err)
	}
	return nil
}

// ExtractBuildFile looks a file path up in a v1 build's depot manifests
// and extracts it. The match is suffix-based so callers can pass the bare
// file name without the depot's directory prefix.
func (a *Archiver) ExtractBuildFile(b *Build, filePath, destPath string) error {
	if b.Gen != content.GenV1 {
		return fmt.Errorf("extract %s: build %s is generation %s, only v1 blobs hold extractable windows",
			filePath, b.Key(), b.Gen)
	}
	for _, manifestID := range b.ManifestsReferenced {
		doc, err := a.loadDepotDocument(content.GenV1, b, manifestID)
		if err != nil {
			return fmt.Errorf("extract %s: depot %s: %w", filePath, manifestID, err)
		}
		for _, f := range collectBlobFiles(doc) {
			if f.Path == filePath || strings.HasSuffix(f.Path, "/"+filePath) {
				blobID := b.RepositoryID
				if blobID == "" {
					blobID = b.BuildID
				}
				return a.ExtractBlobFile(blobID, f.Offset, f.Size, f.Hash, destPath)
			}
		}
	}
	return fmt.Errorf("extract %s: not in any depot of %s: %w", filePath, b.Key(), ErrNotFound)
}
