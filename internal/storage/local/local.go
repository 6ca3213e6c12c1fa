// Package local implements the local filesystem storage backend. Objects are
// written atomically: content goes to a temporary file in the same directory,
// is fsynced, and is then renamed over the destination, so a crash mid-write
// leaves the previous object intact. This backend suits single-node
// deployments; several instances must not share one base path.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/recordstore/recordstore/internal/config"
	"github.com/recordstore/recordstore/internal/storage"
)

func init() {
	// Register local storage backend
	storage.Register("local", func(cfg *config.Config) (storage.Storage, error) {
		return New(&cfg.Storage.Local)
	})
}

// LocalStorage implements the Storage interface for local filesystem storage
type LocalStorage struct {
	basePath string
}

// New creates a new local filesystem storage backend
func New(cfg *config.LocalStorageConfig) (*LocalStorage, error) {
	// Ensure base path exists
	if err := os.MkdirAll(cfg.BasePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{basePath: cfg.BasePath}, nil
}

// fullPath resolves name under the base path, rejecting names that escape it.
func (s *LocalStorage) fullPath(name string) (string, error) {
	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("invalid object name: %q", name)
	}
	return filepath.Join(s.basePath, rel), nil
}

// Put writes data to a temp file and renames it over the destination
func (s *LocalStorage) Put(ctx context.Context, name string, data []byte) (*storage.PutResult, error) {
	fullPath, err := s.fullPath(name)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	// Removing after a successful rename fails harmlessly
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0640); err != nil {
		return nil, fmt.Errorf("failed to set file mode: %w", err)
	}

	if err := os.Rename(tmpName, fullPath); err != nil {
		return nil, fmt.Errorf("failed to replace file: %w", err)
	}

	// Persist the rename itself (best effort, not supported on every platform)
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	return storage.NewPutResult(name, data), nil
}

// Get reads the whole object from the local filesystem
func (s *LocalStorage) Get(ctx context.Context, name string) ([]byte, error) {
	fullPath, err := s.fullPath(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return data, nil
}

// Exists checks if a file exists at the specified path
func (s *LocalStorage) Exists(ctx context.Context, name string) (bool, error) {
	fullPath, err := s.fullPath(name)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}

	return true, nil
}
