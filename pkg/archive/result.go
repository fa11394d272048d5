package archive

import (
	"fmt"
	"sync"
)

// Result accumulates the outcome of one top-level archive operation.
// Partial failures land in Errors; the operation itself only errors for
// precondition violations.
type Result struct {
	mu sync.Mutex

	BuildsArchived    int      `json:"builds_archived"`
	BuildsSkipped     int      `json:"builds_skipped"`
	ManifestsArchived int      `json:"manifests_archived"`
	ManifestsSkipped  int      `json:"manifests_skipped"`
	ChunksFetched     int      `json:"chunks_fetched"`
	ChunksSkipped     int      `json:"chunks_skipped"`
	BytesFetched      int64    `json:"bytes_fetched"`
	Errors            []string `json:"errors"`
}

func (r *Result) addError(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) addChunkFetched(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ChunksFetched++
	r.BytesFetched += n
}

func (r *Result) addChunkSkipped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ChunksSkipped++
}

// Complete reports whether the operation finished with no partial failures.
func (r *Result) Complete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Errors) == 0
}

// ValidateResult is the outcome of a full archive validation pass.
type ValidateResult struct {
	BuildsChecked  int      `json:"builds_checked"`
	ChunksVerified int      `json:"chunks_verified"`
	ChunksMissing  int      `json:"chunks_missing"`
	ChunksCorrupt  int      `json:"chunks_corrupt"`
	FilesVerified  int      `json:"files_verified"`
	FilesFailed    int      `json:"files_failed"`
	Errors         []string `json:"errors"`
}

// OK reports whether every checked unit verified.
func (v *ValidateResult) OK() bool {
	return v.ChunksMissing == 0 && v.ChunksCorrupt == 0 && v.FilesFailed == 0 && len(v.Errors) == 0
}

// Stats summarizes what the archive holds on disk.
type Stats struct {
	Builds      int            `json:"builds"`
	Games       int            `json:"games"`
	BuildsByGen map[string]int `json:"builds_by_generation"`
	Chunks      int            `json:"chunks"`
	ChunkBytes  int64          `json:"chunk_bytes"`
	Blobs       int            `json:"blobs"`
	BlobBytes   int64          `json:"blob_bytes"`
	Manifests   int            `json:"manifests"`
	TotalBytes  int64          `json:"total_bytes"`
}
