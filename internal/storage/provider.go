// Package storage provides the object store shared by the pipeline jobs.
package storage

import (
	"context"
	"errors"
	"fmt"

	"blsdata/internal/config"
	"blsdata/pkg/metadata"
)

// Storage errors.
var (
	ErrNotFound           = errors.New("object not found")
	ErrPreconditionFailed = errors.New("object changed since it was read")
	ErrInvalidKey         = errors.New("invalid object key")
)

// Object is a stored blob together with its metadata.
type Object struct {
	Body []byte
	Info metadata.Object
}

// ObjectStore defines the operations the jobs need from a storage backend.
// Writes are atomic per object; there are no multi-object transactions.
type ObjectStore interface {
	// Get returns the object or an error wrapping ErrNotFound.
	Get(ctx context.Context, key string) (*Object, error)

	// Put writes the object unconditionally.
	Put(ctx context.Context, key string, body []byte, contentType string) error

	// PutIfMatch writes only if the current ETag equals etag. An empty etag
	// means the object must not exist yet. A mismatch wraps ErrPreconditionFailed.
	PutIfMatch(ctx context.Context, key string, body []byte, contentType, etag string) error

	// Delete removes the object. Missing objects are not an error.
	Delete(ctx context.Context, key string) error

	// List returns metadata of all objects under prefix.
	List(ctx context.Context, prefix string) ([]metadata.Object, error)
}

// Ensure backends implement ObjectStore.
var (
	_ ObjectStore = (*MemoryStore)(nil)
	_ ObjectStore = (*FSStore)(nil)
	_ ObjectStore = (*S3Store)(nil)
)

// New creates the backend selected in cfg.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Backend {
	case config.BackendS3:
		return NewS3Store(ctx, cfg)
	case config.BackendFilesystem:
		return NewFSStore(cfg.Root)
	case config.BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidBackend, cfg.Backend)
	}
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
