package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Dimensional/GalaxyDL/pkg/content"
	"github.com/Dimensional/GalaxyDL/pkg/store"
)

// Database is the durable index of archived builds: the single source of
// truth for "has this been archived". The filesystem remains the source of
// truth for "do the bytes still exist"; the validation pass reconciles the
// two. Held in memory during a run, flushed with the store's atomic write
// after each top-level operation.
type Database struct {
	mu     sync.Mutex
	builds map[string]*Build
	store  *store.Store
	logger *slog.Logger
}

// databaseDoc is the on-disk shape. Legacy field names from earlier archive
// layouts are accepted on load and rewritten on save.
type databaseDoc struct {
	Builds      []json.RawMessage `json:"builds"`
	LastUpdated int64             `json:"last_updated"`
}

type buildDoc struct {
	Build
	// Legacy aliases.
	ChunksReferenced []string `json:"chunks_referenced,omitempty"`
	ManifestHash     string   `json:"manifest_hash,omitempty"`
}

// OpenDatabase loads the index from s, tolerating absence and parse
// failures: a broken index means "no prior archive", logged, never fatal.
// Losing the index on *write* is a different matter; see Save.
func OpenDatabase(s *store.Store, logger *slog.Logger) *Database {
	if logger == nil {
		logger = slog.Default()
	}
	db := &Database{
		builds: make(map[string]*Build),
		store:  s,
		logger: logger,
	}

	data, err := s.Read(content.DatabasePath)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("archive database unreadable, starting empty", "error", err)
		}
		return db
	}

	var doc databaseDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Warn("archive database corrupt, starting empty", "error", err)
		return db
	}
	for _, raw := range doc.Builds {
		var bd buildDoc
		if err := json.Unmarshal(raw, &bd); err != nil {
			logger.Warn("skipping unreadable build record", "error", err)
			continue
		}
		b := bd.Build
		if len(b.ManifestsReferenced) == 0 && len(bd.ChunksReferenced) > 0 {
			b.ManifestsReferenced = bd.ChunksReferenced
		}
		if b.BuildHash == "" && bd.ManifestHash != "" {
			b.BuildHash = bd.ManifestHash
		}
		if b.Timestamp == 0 {
			b.Timestamp = time.Now().Unix()
		}
		if b.Dependencies == nil {
			b.Dependencies = []string{}
		}
		db.builds[b.Key()] = &b
	}
	return db
}

// Get returns the build for key, if archived.
func (db *Database) Get(gameID, buildID, platform string) (*Build, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	b, ok := db.builds[BuildKey(gameID, buildID, platform)]
	return b, ok
}

// FindByRepository returns the first archived build for gameID whose
// repository id matches.
func (db *Database) FindByRepository(gameID, repositoryID string) (*Build, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, b := range db.builds {
		if b.GameID == gameID && b.RepositoryID == repositoryID {
			return b, true
		}
	}
	return nil, false
}

// Put records a build. Existing keys are left untouched (idempotent skip,
// never destructive overwrite); ok reports whether the record was added.
func (db *Database) Put(b *Build) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.builds[b.Key()]; exists {
		return false
	}
	db.builds[b.Key()] = b
	return true
}

// Builds returns all records sorted by key, for stable iteration.
func (db *Database) Builds() []*Build {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]*Build, 0, len(db.builds))
	for _, b := range db.builds {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Len reports the number of archived builds.
func (db *Database) Len() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.builds)
}

// Save flushes the index through the atomic write path. Unlike load,
// failure here propagates: silently losing the index would desynchronize
// the logical and physical state of the archive.
func (db *Database) Save() error {
	db.mu.Lock()
	records := make([]*Build, 0, len(db.builds))
	for _, b := range db.builds {
		records = append(records, b)
	}
	db.mu.Unlock()
	sort.Slice(records, func(i, j int) bool { return records[i].Key() < records[j].Key() })

	raws := make([]json.RawMessage, 0, len(records))
	for _, b := range records {
		raw, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("database save: marshal %s: %w", b.Key(), err)
		}
		raws = append(raws, raw)
	}
	doc := databaseDoc{Builds: raws, LastUpdated: time.Now().Unix()}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("database save: %w", err)
	}
	if err := db.store.Write(content.DatabasePath, data); err != nil {
		return fmt.Errorf("database save: %w: %w", ErrPersistence, err)
	}
	return nil
}
