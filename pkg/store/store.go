// Package store provides durable, crash-safe byte storage under a single
// archive root, plus the integrity primitives (digests, verification,
// decompression sniffing) the archive engine builds on.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound reports that a path has no bytes in the store. Absence is a
// normal negative result for callers like Verify, not a failure.
var ErrNotFound = errors.New("not found in archive")

const tmpPattern = ".tmp-*"

// Store owns the on-disk bytes of one archive. All paths passed to its
// methods are archive-relative with forward slashes; the store maps them to
// the local filesystem.
type Store struct {
	root string
}

// New creates a Store rooted at dir. Subdirectories are created lazily on
// first write.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the archive root directory.
func (s *Store) Root() string {
	return s.root
}

// Abs maps an archive-relative path to an absolute filesystem path.
func (s *Store) Abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// Write stores data at rel atomically: the bytes go to a temp file in the
// destination directory and are renamed into place, so a reader never
// observes a partially written file. On any failure the temp file is
// removed; a crash can leave at most a stale temp behind, which
// RemoveStaleTemps clears on the next startup.
func (s *Store) Write(rel string, data []byte) error {
	dest := s.Abs(rel)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store write mkdir %s: %w", rel, err)
	}

	tmp, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return fmt.Errorf("store write tmpfile %s: %w", rel, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store write %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store write close %s: %w", rel, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store write rename %s: %w", rel, err)
	}
	return nil
}

// WriteAt writes data into the file at rel starting at offset, creating
// the file if needed. Unlike Write this is not atomic; it exists for large
// payloads assembled in resumable contiguous windows, where the caller
// tracks committed windows in a sidecar document.
func (s *Store) WriteAt(rel string, offset int64, data []byte) error {
	dest := s.Abs(rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("store write-at mkdir %s: %w", rel, err)
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("store write-at open %s: %w", rel, err)
	}
	if _, err := f.WriteAt(data, offset); err != nil {
		f.Close()
		return fmt.Errorf("store write-at %s: %w", rel, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("store write-at sync %s: %w", rel, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("store write-at close %s: %w", rel, err)
	}
	return nil
}

// ReadAt returns the size bytes at offset in the file at rel, or
// ErrNotFound when the file is absent.
func (s *Store) ReadAt(rel string, offset, size int64) ([]byte, error) {
	f, err := os.Open(s.Abs(rel))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("store read-at %s: %w", rel, ErrNotFound)
		}
		return nil, fmt.Errorf("store read-at %s: %w", rel, err)
	}
	defer f.Close()
	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("store read-at %s [%d:%d]: %w", rel, offset, offset+size, err)
	}
	return buf, nil
}

// Read returns the bytes at rel, or ErrNotFound.
func (s *Store) Read(rel string) ([]byte, error) {
	data, err := os.ReadFile(s.Abs(rel))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("store read %s: %w", rel, ErrNotFound)
		}
		return nil, fmt.Errorf("store read %s: %w", rel, err)
	}
	return data, nil
}

// Exists reports whether rel holds a regular file.
func (s *Store) Exists(rel string) bool {
	info, err := os.Stat(s.Abs(rel))
	return err == nil && info.Mode().IsRegular()
}

// Size returns the byte size of the file at rel, or ErrNotFound.
func (s *Store) Size(rel string) (int64, error) {
	info, err := os.Stat(s.Abs(rel))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("store size %s: %w", rel, ErrNotFound)
		}
		return 0, fmt.Errorf("store size %s: %w", rel, err)
	}
	return info.Size(), nil
}

// Verify checks the file at rel against an expected size and hash. A
// missing file is false, never an error. A negative expectedSize skips the
// size check; an empty expectedHash skips the digest check. Hash comparison
// is case-insensitive.
func (s *Store) Verify(rel string, expectedSize int64, expectedHash string, algo Algorithm) bool {
	info, err := os.Stat(s.Abs(rel))
	if err != nil {
		return false
	}
	if expectedSize >= 0 && info.Size() != expectedSize {
		return false
	}
	if expectedHash == "" {
		return true
	}
	data, err := os.ReadFile(s.Abs(rel))
	if err != nil {
		return false
	}
	actual, err := Hash(data, algo)
	if err != nil {
		return false
	}
	return strings.EqualFold(actual, expectedHash)
}

// RemoveStaleTemps deletes temp files left behind by a crash mid-write.
// Safe to run at every startup; committed files are never touched.
func (s *Store) RemoveStaleTemps() error {
	var firstErr error
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(tmpPattern, d.Name()); ok {
			if rmErr := os.Remove(p); rmErr != nil && firstErr == nil {
				firstErr = rmErr
			}
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store temp sweep: %w", err)
	}
	if firstErr != nil {
		return fmt.Errorf("store temp sweep: %w", firstErr)
	}
	return nil
}
