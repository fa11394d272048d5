package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Dimensional/GalaxyDL/pkg/content"
	"github.com/Dimensional/GalaxyDL/pkg/gog"
	"github.com/Dimensional/GalaxyDL/pkg/store"
)

const (
	// blobWindowSize is the Range window for v1 blob transfers. 100 MiB
	// keeps a restart cheap without drowning the CDN in requests.
	blobWindowSize = 100 << 20
	// chunkFetchAttempts bounds retries after a post-fetch verification
	// failure before the chunk is reported as a permanent error.
	chunkFetchAttempts = 3
)

// FetchBuildContent downloads the content payload of an archived build: v2
// chunks through the worker pool, or the v1 blob in resumable windows.
// Per-unit failures are collected into res; the call errors only when the
// build cannot be loaded or no secure link can be obtained.
func (a *Archiver) FetchBuildContent(ctx context.Context, b *Build, res *Result) error {
	switch b.Gen {
	case content.GenV2:
		return a.fetchChunks(ctx, b, res)
	case content.GenV1:
		return a.fetchBlob(ctx, b, res)
	default:
		return fmt.Errorf("fetch content for %s: generation %d: %w", b.Key(), b.Gen, ErrInvalidIdentifier)
	}
}

// loadDepotDocument reads a persisted depot manifest back from the archive
// and parses it, decompressing when the raw bytes are a v2 zlib stream.
func (a *Archiver) loadDepotDocument(gen content.Generation, b *Build, manifestID string) (gog.Document, error) {
	rel, err := content.DepotManifestPath(gen, b.GameID, b.Platform, b.RepositoryID, manifestID)
	if err != nil {
		return nil, err
	}
	raw, err := a.store.Read(rel)
	if err != nil {
		return nil, err
	}
	plain, _ := store.TryDecompress(raw)
	return gog.ParseDocument(plain)
}

func (a *Archiver) fetchChunks(ctx context.Context, b *Build, res *Result) error {
	refs := make(map[string]chunkRef)
	for _, manifestID := range b.ManifestsReferenced {
		doc, err := a.loadDepotDocument(content.GenV2, b, manifestID)
		if err != nil {
			return fmt.Errorf("fetch chunks for %s: depot %s: %w", b.Key(), manifestID, err)
		}
		collectChunks(doc, refs)
	}
	if len(refs) == 0 {
		return nil
	}

	links, err := a.session.SecureLinks(ctx, b.GameID, 2, "/")
	if err != nil {
		return fmt.Errorf("fetch chunks for %s: %w", b.Key(), err)
	}
	if len(links) == 0 {
		return fmt.Errorf("fetch chunks for %s: no secure links issued", b.Key())
	}

	ordered := make([]chunkRef, 0, len(refs))
	for _, ref := range refs {
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].md5 < ordered[j].md5 })

	jobs := make(chan chunkRef)
	var wg sync.WaitGroup
	for i := 0; i < a.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ref := range jobs {
				a.fetchOneChunk(ctx, b.GameID, ref, links, res)
			}
		}()
	}

feed:
	for _, ref := range ordered {
		select {
		case jobs <- ref:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return ctx.Err()
}

// fetchOneChunk brings one chunk into the archive. A chunk already on disk
// and passing verification is skipped, which is what makes identical
// chunks shared across builds cost one stored copy. Verification failures
// after a fetch are retried a bounded number of times.
func (a *Archiver) fetchOneChunk(ctx context.Context, gameID string, ref chunkRef, links []gog.SecureLink, res *Result) {
	rel, err := content.ChunkPath(ref.md5)
	if err != nil {
		res.addError("chunk %s: %v", ref.md5, err)
		return
	}
	if a.store.Verify(rel, ref.size, ref.md5, store.MD5) {
		res.addChunkSkipped()
		return
	}
	storePath, err := content.ChunkStorePath(gameID, ref.md5)
	if err != nil {
		res.addError("chunk %s: %v", ref.md5, err)
		return
	}

	var lastErr error
	for attempt := 0; attempt < chunkFetchAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			res.addError("chunk %s: %v", ref.md5, err)
			return
		}
		link := links[attempt%len(links)]
		data, err := a.client.GetRawBytes(ctx, link.URLWithPath(storePath))
		if err != nil {
			lastErr = fmt.Errorf("%w: %w", ErrTransientFetch, err)
			continue
		}
		if data == nil {
			lastErr = fmt.Errorf("chunk absent upstream: %w", ErrNotFound)
			continue
		}
		sum, err := store.Hash(data, store.MD5)
		if err != nil {
			lastErr = err
			break
		}
		if !strings.EqualFold(sum, ref.md5) {
			lastErr = fmt.Errorf("got %s, want %s: %w", sum, ref.md5, ErrIntegrityMismatch)
			continue
		}
		if err := a.store.Write(rel, data); err != nil {
			res.addError("chunk %s: %v", ref.md5, fmt.Errorf("%w: %w", ErrPersistence, err))
			return
		}
		if !a.store.Verify(rel, ref.size, ref.md5, store.MD5) {
			lastErr = fmt.Errorf("post-write verify failed: %w", ErrIntegrityMismatch)
			continue
		}
		res.addChunkFetched(int64(len(data)))
		return
	}
	res.addError("chunk %s: %v", ref.md5, lastErr)
}

// blobSidecar is the checksum document kept next to a v1 blob. Each
// completed window records its digests, so a restarted transfer can trust
// the bytes already on disk instead of refetching them.
type blobSidecar struct {
	TotalSize int64        `json:"total_size"`
	Windows   []blobWindow `json:"windows"`
}

type blobWindow struct {
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
	MD5    string `json:"md5"`
	SHA1   string `json:"sha1"`
	SHA256 string `json:"sha256"`
	State  string `json:"state"`
}

func (a *Archiver) fetchBlob(ctx context.Context, b *Build, res *Result) error {
	blobID := b.RepositoryID
	if blobID == "" {
		blobID = b.BuildID
	}
	dest := content.BlobPath(blobID)
	sidecarPath := dest + ".json"

	links, err := a.session.SecureLinks(ctx, b.GameID, 1, "/main.bin")
	if err != nil {
		return fmt.Errorf("fetch blob for %s: %w", b.Key(), err)
	}
	if len(links) == 0 {
		return fmt.Errorf("fetch blob for %s: no secure links issued", b.Key())
	}
	url := links[0].URLWithPath("/main.bin")
	if !strings.HasSuffix(url, "main.bin") {
		url = strings.TrimSuffix(links[0].URL(), "/") + "/main.bin"
	}

	total, err := a.client.ContentLength(ctx, url)
	if err != nil {
		return fmt.Errorf("fetch blob for %s: %w: %w", b.Key(), ErrTransientFetch, err)
	}

	sidecar := a.loadSidecar(sidecarPath)
	if total >= 0 {
		sidecar.TotalSize = total
	}

	// Resume from whatever contiguous bytes already exist.
	offset, err := a.store.Size(dest)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("fetch blob for %s: %w", b.Key(), err)
	}
	if total >= 0 && offset > total {
		// A longer-than-declared blob means stale bytes; start over.
		a.logger.Warn("blob larger than declared, refetching", "blob", dest, "have", offset, "declared", total)
		offset = 0
		sidecar.Windows = nil
	}
	if offset > 0 {
		a.logger.Info("resuming blob transfer", "blob", dest, "offset", offset)
	}

	for total < 0 || offset < total {
		if err := ctx.Err(); err != nil {
			return err
		}
		to := offset + blobWindowSize - 1
		if total >= 0 && to >= total {
			to = total - 1
		}
		data, err := a.client.GetRange(ctx, url, offset, to)
		if err != nil {
			return fmt.Errorf("fetch blob for %s at %d: %w: %w", b.Key(), offset, ErrTransientFetch, err)
		}
		if data == nil {
			if total < 0 {
				// No declared length and the window past the end is absent.
				break
			}
			return fmt.Errorf("fetch blob for %s at %d: %w", b.Key(), offset, ErrNotFound)
		}
		if err := a.store.WriteAt(dest, offset, data); err != nil {
			return fmt.Errorf("fetch blob for %s: %w: %w", b.Key(), ErrPersistence, err)
		}

		w := blobWindow{Offset: offset, Size: int64(len(data)), State: "complete"}
		w.MD5, _ = store.Hash(data, store.MD5)
		w.SHA1, _ = store.Hash(data, store.SHA1)
		w.SHA256, _ = store.Hash(data, store.SHA256)
		sidecar.Windows = append(sidecar.Windows, w)
		a.saveSidecar(sidecarPath, sidecar)

		res.BytesFetched += int64(len(data))
		offset += int64(len(data))
		if int64(len(data)) < to-w.Offset+1 {
			// Short read means the server ran out of bytes.
			break
		}
	}

	size, err := a.store.Size(dest)
	if err != nil {
		return fmt.Errorf("fetch blob for %s: %w", b.Key(), err)
	}
	if total >= 0 && size != total {
		return fmt.Errorf("fetch blob for %s: size %d, declared %d: %w", b.Key(), size, total, ErrIntegrityMismatch)
	}
	a.logger.Info("blob complete", "blob", dest, "bytes", size)
	return nil
}

func (a *Archiver) loadSidecar(rel string) *blobSidecar {
	sc := &blobSidecar{TotalSize: -1}
	data, err := a.store.Read(rel)
	if err != nil {
		return sc
	}
	if err := json.Unmarshal(data, sc); err != nil {
		a.logger.Warn("blob sidecar unreadable, starting fresh", "path", rel, "error", err)
		return &blobSidecar{TotalSize: -1}
	}
	return sc
}

func (a *Archiver) saveSidecar(rel string, sc *blobSidecar) {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		a.logger.Warn("blob sidecar marshal failed", "path", rel, "error", err)
		return
	}
	if err := a.store.Write(rel, data); err != nil {
		a.logger.Warn("blob sidecar write failed", "path", rel, "error", err)
	}
}
