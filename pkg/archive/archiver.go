package archive

import (
	"fmt"
	"log/slog"

	"github.com/Dimensional/GalaxyDL/pkg/gog"
	"github.com/Dimensional/GalaxyDL/pkg/store"
)

// Options configures an Archiver. Zero values pick sane defaults.
type Options struct {
	// Workers bounds parallel chunk fetches. Zero means 4.
	Workers int
	// Endpoints overrides the upstream hosts, mainly for tests.
	Endpoints gog.Endpoints
	Logger    *slog.Logger
}

// Archiver ties the pieces together: it resolves builds, acquires
// manifests, fetches content, and records everything in the database. It is
// safe to reuse across operations; the database is the only mutable state.
type Archiver struct {
	store     *store.Store
	db        *Database
	client    *gog.Client
	session   gog.SessionProvider
	endpoints gog.Endpoints
	logger    *slog.Logger
	workers   int
}

// New opens the archive rooted in s. Stale temp files from a previous crash
// are swept before any new write happens.
func New(s *store.Store, client *gog.Client, session gog.SessionProvider, opts Options) (*Archiver, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	endpoints := opts.Endpoints
	if endpoints == (gog.Endpoints{}) {
		endpoints = gog.DefaultEndpoints()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	if err := s.RemoveStaleTemps(); err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	return &Archiver{
		store:     s,
		db:        OpenDatabase(s, logger),
		client:    client,
		session:   session,
		endpoints: endpoints,
		logger:    logger,
		workers:   workers,
	}, nil
}

// Database exposes the build index, read-mostly for callers.
func (a *Archiver) Database() *Database {
	return a.db
}

// Store exposes the underlying byte store.
func (a *Archiver) Store() *store.Store {
	return a.store
}
