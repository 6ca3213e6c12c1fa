// Package persist defines how the record store document is saved and loaded,
// and the registry of persistence backends.
//
// Backends register a constructor from an init() function, the same way the
// storage backends do, and the server selects one by store.backend:
//
//	blob      the whole document as one JSON object in a storage.Storage backend
//	postgres  one JSONB row, registered by internal/db/repositories
//	sqlite    one row in an embedded database, registered by internal/db/sqlite
package persist

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/recordstore/recordstore/internal/config"
	"github.com/recordstore/recordstore/internal/db/models"
)

var (
	// ErrNotFound is returned by Load when nothing has been persisted yet.
	ErrNotFound = errors.New("no persisted document")

	// ErrCorrupt is returned by Load when the stored document cannot be decoded.
	ErrCorrupt = errors.New("persisted document is corrupt")
)

// Persister saves and loads the whole store document. Save must replace the
// previous document atomically.
type Persister interface {
	Load(ctx context.Context) (*models.Document, error)
	Save(ctx context.Context, doc *models.Document) error
	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error
	Close() error
}

// FactoryFunc creates a persister from configuration
type FactoryFunc func(ctx context.Context, cfg *config.Config) (Persister, error)

var factories = make(map[string]FactoryFunc)

// Register registers a persistence backend factory
func Register(name string, factory FactoryFunc) {
	factories[name] = factory
}

// New creates the persister selected by cfg.Store.Backend
func New(ctx context.Context, cfg *config.Config) (Persister, error) {
	factory, ok := factories[cfg.Store.Backend]
	if !ok {
		names := make([]string, 0, len(factories))
		for name := range factories {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unsupported store backend: %s (registered: %v)", cfg.Store.Backend, names)
	}
	return factory(ctx, cfg)
}
