// Package manifest reads and writes the sync manifest and failure log.
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"blsdata/internal/models"
	"blsdata/internal/storage"
	"blsdata/pkg/metadata"
)

// Manifest errors.
var (
	ErrInvalidManifest        = errors.New("invalid manifest")
	ErrConcurrentModification = errors.New("manifest was modified by another run")
)

// Store persists the manifest and the failure log in an object store.
type Store struct {
	objects     storage.ObjectStore
	key         string
	failuresKey string
}

// NewStore creates a manifest store for the given object keys.
func NewStore(objects storage.ObjectStore, key, failuresKey string) *Store {
	return &Store{
		objects:     objects,
		key:         key,
		failuresKey: failuresKey,
	}
}

// Key returns the manifest object key.
func (s *Store) Key() string {
	return s.key
}

// Load returns the stored manifest and its version. A missing manifest is
// empty with an empty version.
func (s *Store) Load(ctx context.Context) (models.Manifest, string, error) {
	obj, err := s.objects.Get(ctx, s.key)
	if err != nil {
		if storage.IsNotFound(err) {
			return models.Manifest{}, "", nil
		}

		return nil, "", fmt.Errorf("failed to read manifest %s: %w", s.key, err)
	}

	var m models.Manifest
	if err := json.Unmarshal(obj.Body, &m); err != nil {
		return nil, "", fmt.Errorf("%w: %s: %w", ErrInvalidManifest, s.key, err)
	}

	if m == nil {
		m = models.Manifest{}
	}

	return m, obj.Info.ETag, nil
}

// Save writes the manifest. With guard set, the write only succeeds if the
// stored manifest still has the given version.
func (s *Store) Save(ctx context.Context, m models.Manifest, version string, guard bool) error {
	body, err := Encode(m)
	if err != nil {
		return err
	}

	if !guard {
		if err := s.objects.Put(ctx, s.key, body, metadata.ContentTypeJSON); err != nil {
			return fmt.Errorf("failed to write manifest %s: %w", s.key, err)
		}

		return nil
	}

	err = s.objects.PutIfMatch(ctx, s.key, body, metadata.ContentTypeJSON, version)
	if errors.Is(err, storage.ErrPreconditionFailed) {
		return fmt.Errorf("%w: %s", ErrConcurrentModification, s.key)
	}

	if err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", s.key, err)
	}

	return nil
}

// LoadFailures returns the failures recorded by the previous run.
func (s *Store) LoadFailures(ctx context.Context) ([]models.SyncFailure, error) {
	obj, err := s.objects.Get(ctx, s.failuresKey)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read failure log %s: %w", s.failuresKey, err)
	}

	var failures []models.SyncFailure
	if err := json.Unmarshal(obj.Body, &failures); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidManifest, s.failuresKey, err)
	}

	return failures, nil
}

// SaveFailures replaces the failure log.
func (s *Store) SaveFailures(ctx context.Context, failures []models.SyncFailure) error {
	if failures == nil {
		failures = []models.SyncFailure{}
	}

	body, err := json.MarshalIndent(failures, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal failure log: %w", err)
	}

	if err := s.objects.Put(ctx, s.failuresKey, body, metadata.ContentTypeJSON); err != nil {
		return fmt.Errorf("failed to write failure log %s: %w", s.failuresKey, err)
	}

	return nil
}

// Encode serializes a manifest as a JSON array indented by two spaces.
// URLs are written without HTML escaping.
func Encode(m models.Manifest) ([]byte, error) {
	if m == nil {
		m = models.Manifest{}
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
