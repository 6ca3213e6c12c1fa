package persist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/recordstore/recordstore/internal/config"
	"github.com/recordstore/recordstore/internal/db/models"
	"github.com/recordstore/recordstore/internal/storage"
)

func init() {
	Register("blob", func(_ context.Context, cfg *config.Config) (Persister, error) {
		backend, err := storage.NewStorage(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return NewDocumentPersister(backend, cfg.Store.DocumentName), nil
	})
}

// DocumentPersister stores the document as a single named object.
type DocumentPersister struct {
	backend storage.Storage
	name    string
}

// NewDocumentPersister creates a persister writing to name in backend
func NewDocumentPersister(backend storage.Storage, name string) *DocumentPersister {
	return &DocumentPersister{backend: backend, name: name}
}

// Load reads and decodes the document
func (p *DocumentPersister) Load(ctx context.Context) (*models.Document, error) {
	data, err := p.backend.Get(ctx, p.name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", p.name, err)
	}

	doc, err := models.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, p.name, err)
	}
	return doc, nil
}

// Save encodes the document and replaces the stored object
func (p *DocumentPersister) Save(ctx context.Context, doc *models.Document) error {
	data, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	res, err := p.backend.Put(ctx, p.name, data)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", p.name, err)
	}

	slog.Debug("document saved", "name", res.Name, "size", res.Size, "sha256", res.Checksum)
	return nil
}

// Ping checks that the backend answers for the document name
func (p *DocumentPersister) Ping(ctx context.Context) error {
	if _, err := p.backend.Exists(ctx, p.name); err != nil {
		return fmt.Errorf("storage backend unavailable: %w", err)
	}
	return nil
}

// Close releases the backend client when it holds one
func (p *DocumentPersister) Close() error {
	if c, ok := p.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
