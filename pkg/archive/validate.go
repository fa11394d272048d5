package archive

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Dimensional/GalaxyDL/pkg/content"
	"github.com/Dimensional/GalaxyDL/pkg/store"
)

// Validate reconciles the database against the filesystem: every chunk a
// v2 build references must be present with bytes hashing to its name, and
// every file window a v1 depot declares must check out inside its blob.
// The pass never mutates the archive; it reports.
func (a *Archiver) Validate(ctx context.Context) (*ValidateResult, error) {
	res := &ValidateResult{}
	for _, b := range a.db.Builds() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.BuildsChecked++
		switch b.Gen {
		case content.GenV2:
			a.validateChunks(b, res)
		case content.GenV1:
			a.validateBlob(b, res)
		default:
			res.Errors = append(res.Errors, fmt.Sprintf("build %s: unknown generation %d", b.Key(), b.Gen))
		}
	}
	return res, nil
}

func (a *Archiver) validateChunks(b *Build, res *ValidateResult) {
	refs := make(map[string]chunkRef)
	for _, manifestID := range b.ManifestsReferenced {
		doc, err := a.loadDepotDocument(content.GenV2, b, manifestID)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("build %s: depot %s: %v", b.Key(), manifestID, err))
			continue
		}
		collectChunks(doc, refs)
	}
	for md5sum, ref := range refs {
		rel, err := content.ChunkPath(md5sum)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("build %s: chunk %s: %v", b.Key(), md5sum, err))
			continue
		}
		if !a.store.Exists(rel) {
			res.ChunksMissing++
			res.Errors = append(res.Errors, fmt.Sprintf("build %s: chunk %s missing", b.Key(), md5sum))
			continue
		}
		if !a.store.Verify(rel, ref.size, md5sum, store.MD5) {
			res.ChunksCorrupt++
			res.Errors = append(res.Errors, fmt.Sprintf("build %s: chunk %s fails verification", b.Key(), md5sum))
			continue
		}
		res.ChunksVerified++
	}
}

func (a *Archiver) validateBlob(b *Build, res *ValidateResult) {
	blobID := b.RepositoryID
	if blobID == "" {
		blobID = b.BuildID
	}
	blobRel := content.BlobPath(blobID)
	if !a.store.Exists(blobRel) {
		// A v1 build archived manifests-only has no blob to check.
		return
	}

	var files []blobFile
	for _, manifestID := range b.ManifestsReferenced {
		doc, err := a.loadDepotDocument(content.GenV1, b, manifestID)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("build %s: depot %s: %v", b.Key(), manifestID, err))
			continue
		}
		files = append(files, collectBlobFiles(doc)...)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Offset < files[j].Offset })

	for _, f := range files {
		data, err := a.store.ReadAt(blobRel, f.Offset, f.Size)
		if err != nil {
			res.FilesFailed++
			res.Errors = append(res.Errors, fmt.Sprintf("build %s: file %s: %v", b.Key(), f.Path, err))
			continue
		}
		if f.Hash != "" {
			sum, err := store.Hash(data, store.MD5)
			if err != nil || !strings.EqualFold(sum, f.Hash) {
				res.FilesFailed++
				res.Errors = append(res.Errors, fmt.Sprintf("build %s: file %s fails checksum", b.Key(), f.Path))
				continue
			}
		}
		res.FilesVerified++
	}
}
