// Package recordstore holds the record store aggregate: access keys,
// registrations and per-email user data.
//
// A single *Store is created at startup and shared by every handler. All
// mutations run under one lock and follow the same sequence: copy the
// document, apply the change to the copy, persist the copy, and only then
// swap it in. A failed persist therefore leaves memory exactly as it was, and
// the caller gets the error.
package recordstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/recordstore/recordstore/internal/auth"
	"github.com/recordstore/recordstore/internal/db/models"
	"github.com/recordstore/recordstore/internal/persist"
	"github.com/recordstore/recordstore/internal/telemetry"
)

// DefaultMaxKeyAttempts bounds token regeneration when a collision occurs.
const DefaultMaxKeyAttempts = 5

// Options configures a Store. Zero values select defaults.
type Options struct {
	// KeyPrefix is prepended to issued keys (default sk_live_)
	KeyPrefix string
	// Backend labels persistence metrics (blob, postgres, sqlite)
	Backend string
	// MaxKeyAttempts bounds collision retries when issuing a key
	MaxKeyAttempts int
	// Now returns the current time
	Now func() time.Time
	// GenerateKey returns a fresh token for prefix
	GenerateKey func(prefix string) (string, error)
}

// Store is the process-wide record store handle.
type Store struct {
	mu        sync.RWMutex
	doc       *models.Document
	persister persist.Persister
	opts      Options
}

// Open loads the persisted document and returns a ready Store.
//
// Loading is best-effort: a missing document starts an empty store, and so
// does a corrupt one (logged as an error). Any other load failure, such as an
// unreachable backend, is returned, because starting empty would overwrite
// the real document on the first write.
func Open(ctx context.Context, persister persist.Persister, opts Options) (*Store, error) {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = auth.DefaultKeyPrefix
	}
	if opts.Backend == "" {
		opts.Backend = "unknown"
	}
	if opts.MaxKeyAttempts <= 0 {
		opts.MaxKeyAttempts = DefaultMaxKeyAttempts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.GenerateKey == nil {
		opts.GenerateKey = auth.GenerateAccessKey
	}

	doc, err := persister.Load(ctx)
	switch {
	case err == nil:
		slog.Info("record store loaded",
			"backend", opts.Backend,
			"keys", len(doc.APIKeys),
			"registrations", len(doc.Registrations))
	case errors.Is(err, persist.ErrNotFound):
		slog.Info("no persisted record store, starting empty", "backend", opts.Backend)
		doc = models.NewDocument()
	case errors.Is(err, persist.ErrCorrupt):
		slog.Error("could not load record store, starting fresh", "backend", opts.Backend, "error", err)
		doc = models.NewDocument()
	default:
		return nil, fmt.Errorf("failed to load record store: %w", err)
	}

	return &Store{doc: doc, persister: persister, opts: opts}, nil
}

// mutate applies fn to a copy of the document and commits the copy only once
// it has been persisted. fn returning an error aborts without persisting.
// fn reports whether it changed anything; unchanged documents are not saved.
func (s *Store) mutate(ctx context.Context, fn func(doc *models.Document) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.Clone()
	changed, err := fn(next)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	start := time.Now()
	err = s.persister.Save(ctx, next)
	telemetry.PersistDuration.WithLabelValues(s.opts.Backend).Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.PersistFailuresTotal.WithLabelValues(s.opts.Backend).Inc()
		return fmt.Errorf("failed to persist record store: %w", err)
	}

	s.doc = next
	return nil
}

// Ping checks that the persistence backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.persister.Ping(ctx)
}

// Close releases the persistence backend.
func (s *Store) Close() error {
	return s.persister.Close()
}
