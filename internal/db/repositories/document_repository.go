// Package repositories implements the PostgreSQL-backed store document persister.
// The whole document lives in a single JSONB row, so every save is one atomic upsert.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/recordstore/recordstore/internal/config"
	"github.com/recordstore/recordstore/internal/db"
	"github.com/recordstore/recordstore/internal/db/models"
	"github.com/recordstore/recordstore/internal/persist"
	"github.com/recordstore/recordstore/internal/telemetry"
)

func init() {
	persist.Register("postgres", func(ctx context.Context, cfg *config.Config) (persist.Persister, error) {
		sqlDB, err := db.Connect(ctx, cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(sqlDB, "up"); err != nil {
			sqlDB.Close()
			return nil, err
		}
		repo := NewDocumentRepository(sqlx.NewDb(sqlDB, "postgres"), cfg.Store.DocumentName)

		statsCtx, cancel := context.WithCancel(context.Background())
		telemetry.StartDBStatsCollector(statsCtx, sqlDB)
		repo.stopStats = cancel
		return repo, nil
	})
}

// DocumentRepository handles database operations for the store document
type DocumentRepository struct {
	db   *sqlx.DB
	name string
	// stopStats cancels the pool stats collector, if one was started
	stopStats context.CancelFunc
}

// NewDocumentRepository creates a repository for the document stored under name
func NewDocumentRepository(db *sqlx.DB, name string) *DocumentRepository {
	return &DocumentRepository{db: db, name: name}
}

// Load retrieves and decodes the document
func (r *DocumentRepository) Load(ctx context.Context) (*models.Document, error) {
	var body []byte
	err := r.db.GetContext(ctx, &body, `SELECT body FROM store_documents WHERE name = $1`, r.name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persist.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	doc, err := models.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", persist.ErrCorrupt, err)
	}
	return doc, nil
}

// Save upserts the document row
func (r *DocumentRepository) Save(ctx context.Context, doc *models.Document) error {
	body, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	query := `
		INSERT INTO store_documents (name, body, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, r.name, body); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (r *DocumentRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection pool
func (r *DocumentRepository) Close() error {
	if r.stopStats != nil {
		r.stopStats()
	}
	return r.db.Close()
}
