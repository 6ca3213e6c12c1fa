// Package storage defines the object storage interface used to persist the
// record store document, and the registry of available backends.
//
// New backends are added by implementing the Storage interface and registering
// with the factory via an init() function in the backend's own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (storage.Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// The main package imports each backend with a blank import to trigger init().
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrNotFound is returned by Get when no object exists under the given name.
var ErrNotFound = errors.New("object not found")

// Storage is a flat object store holding whole objects in memory-sized pieces.
// Put must replace the object atomically: a reader sees either the old or the
// new content, never a partial write.
type Storage interface {
	// Put stores data under name, replacing any previous object
	Put(ctx context.Context, name string, data []byte) (*PutResult, error)

	// Get returns the full content of the named object, or ErrNotFound
	Get(ctx context.Context, name string) ([]byte, error)

	// Exists checks if an object exists under name
	Exists(ctx context.Context, name string) (bool, error)
}

// PutResult contains information about a stored object
type PutResult struct {
	// Name is the object name as addressed by the backend
	Name string

	// Size is the object size in bytes
	Size int64

	// Checksum is the SHA256 hash of the object contents
	Checksum string
}

// Checksum returns the hex-encoded SHA256 of data. Backends store it as
// object metadata so operators can compare copies without downloading them.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NewPutResult builds the result every backend returns after a successful write.
func NewPutResult(name string, data []byte) *PutResult {
	return &PutResult{
		Name:     name,
		Size:     int64(len(data)),
		Checksum: Checksum(data),
	}
}
