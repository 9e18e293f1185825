package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"blsdata/pkg/metadata"
)

// MemoryStore keeps objects in process memory.
type MemoryStore struct {
	objects map[string]*Object
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]*Object)}
}

// Get returns a copy of the stored object.
func (s *MemoryStore) Get(_ context.Context, key string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return &Object{Body: append([]byte(nil), obj.Body...), Info: obj.Info}, nil
}

// Put stores a copy of body.
func (s *MemoryStore) Put(_ context.Context, key string, body []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.putLocked(key, body, contentType)
}

// PutIfMatch stores body if the current tag matches etag.
func (s *MemoryStore) PutIfMatch(_ context.Context, key string, body []byte, contentType, etag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := ""
	if obj, ok := s.objects[key]; ok {
		current = obj.Info.ETag
	}

	if current != metadata.NormalizeETag(etag) {
		return fmt.Errorf("%w: %s", ErrPreconditionFailed, key)
	}

	return s.putLocked(key, body, contentType)
}

// Delete removes key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)

	return nil
}

// List returns objects under prefix sorted by key.
func (s *MemoryStore) List(_ context.Context, prefix string) ([]metadata.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []metadata.Object

	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, obj.Info)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	return out, nil
}

// Keys returns all stored keys sorted; handy in tests.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

func (s *MemoryStore) putLocked(key string, body []byte, contentType string) error {
	info, err := metadata.New(key, body, contentType)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	s.objects[key] = &Object{Body: append([]byte(nil), body...), Info: *info}

	return nil
}
