package archive

import (
	"errors"
	"fmt"

	"github.com/Dimensional/GalaxyDL/pkg/content"
	"github.com/Dimensional/GalaxyDL/pkg/store"
)

// The archive error taxonomy. NotFound is an expected negative (absent
// upstream or on disk), InvalidIdentifier a malformed id, IntegrityMismatch
// a failed size/hash check on fetched bytes, TransientFetch a retryable
// network-level failure, and Persistence a filesystem write failure, which
// is always fatal to the current unit of work.
var (
	ErrNotFound          = store.ErrNotFound
	ErrInvalidIdentifier = content.ErrInvalidIdentifier
	ErrIntegrityMismatch = errors.New("integrity mismatch")
	ErrTransientFetch    = errors.New("transient fetch failure")
	ErrPersistence       = errors.New("persistence failure")
)

// ManifestNotFoundError reports that every resolution strategy for a build
// manifest was exhausted. It carries the context needed for diagnosis and
// matches ErrNotFound.
type ManifestNotFoundError struct {
	GameID   string
	BuildID  string
	Platform string
	// Attempts names the strategies tried, in order.
	Attempts []string
}

func (e *ManifestNotFoundError) Error() string {
	return fmt.Sprintf("build manifest not found for %s/%s/%s (tried %v)",
		e.GameID, e.BuildID, e.Platform, e.Attempts)
}

func (e *ManifestNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
