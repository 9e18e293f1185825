package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/moby/sys/atomicwriter"

	"blsdata/pkg/metadata"
)

// metaDir holds the metadata sidecars, one JSON file per object.
const metaDir = ".meta"

// FSStore stores objects as files below a root directory.
type FSStore struct {
	rootPath string
	// mu serializes conditional writes within this process only.
	mu sync.Mutex
}

// NewFSStore creates a store rooted at rootPath, creating it if needed.
func NewFSStore(rootPath string) (*FSStore, error) {
	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", rootPath, err)
	}

	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create root %s: %w", absPath, err)
	}

	return &FSStore{rootPath: absPath}, nil
}

// Root returns the absolute root directory.
func (p *FSStore) Root() string {
	return p.rootPath
}

// KeyForPath maps an absolute file path below the root back to its key.
func (p *FSStore) KeyForPath(path string) (string, bool) {
	rel, err := filepath.Rel(p.rootPath, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}

	key := filepath.ToSlash(rel)
	if key == metaDir || strings.HasPrefix(key, metaDir+"/") {
		return "", false
	}

	return key, true
}

// Get reads the object and its sidecar.
func (p *FSStore) Get(_ context.Context, key string) (*Object, error) {
	fullPath, err := p.pathFor(key)
	if err != nil {
		return nil, err
	}

	body, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}

		return nil, fmt.Errorf("failed to read %s: %w", fullPath, err)
	}

	info, err := p.infoFor(key, fullPath, body)
	if err != nil {
		return nil, err
	}

	return &Object{Body: body, Info: *info}, nil
}

// Put writes the object atomically.
func (p *FSStore) Put(_ context.Context, key string, body []byte, contentType string) error {
	return p.write(key, body, contentType)
}

// PutIfMatch writes the object if its current content hashes to etag.
func (p *FSStore) PutIfMatch(_ context.Context, key string, body []byte, contentType, etag string) error {
	fullPath, err := p.pathFor(key)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	current := ""

	existing, err := os.ReadFile(fullPath)
	switch {
	case err == nil:
		current = metadata.ETag(existing)
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("failed to read %s: %w", fullPath, err)
	}

	if current != metadata.NormalizeETag(etag) {
		return fmt.Errorf("%w: %s", ErrPreconditionFailed, key)
	}

	return p.write(key, body, contentType)
}

// Delete removes the object and its sidecar.
func (p *FSStore) Delete(_ context.Context, key string) error {
	fullPath, err := p.pathFor(key)
	if err != nil {
		return err
	}

	for _, path := range []string{fullPath, p.sidecarPath(key)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete %s: %w", path, err)
		}
	}

	return nil
}

// List walks the root and returns objects whose key starts with prefix.
func (p *FSStore) List(_ context.Context, prefix string) ([]metadata.Object, error) {
	var out []metadata.Object

	err := filepath.WalkDir(p.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if d.Name() == metaDir {
				return filepath.SkipDir
			}

			return nil
		}

		key, ok := p.KeyForPath(path)
		if !ok || !strings.HasPrefix(key, prefix) {
			return nil
		}

		body, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		info, err := p.infoFor(key, path, body)
		if err != nil {
			return err
		}

		out = append(out, *info)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory %s: %w", p.rootPath, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	return out, nil
}

func (p *FSStore) write(key string, body []byte, contentType string) error {
	fullPath, err := p.pathFor(key)
	if err != nil {
		return err
	}

	info, err := metadata.New(key, body, contentType)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	sidecar, err := info.MarshalSidecar()
	if err != nil {
		return err
	}

	sidecarPath := p.sidecarPath(key)
	for _, dir := range []string{filepath.Dir(fullPath), filepath.Dir(sidecarPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to ensure directory %s: %w", dir, err)
		}
	}

	if err := atomicwriter.WriteFile(fullPath, body, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", fullPath, err)
	}

	if err := atomicwriter.WriteFile(sidecarPath, sidecar, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata for %s: %w", key, err)
	}

	return nil
}

// infoFor loads the sidecar, falling back to stat data for files written by
// other tools. A sidecar whose ETag no longer matches the content is stale
// and ignored. The ETag is always recomputed from the content.
func (p *FSStore) infoFor(key, fullPath string, body []byte) (*metadata.Object, error) {
	info := &metadata.Object{Key: key, ContentType: metadata.ContentTypeBinary}

	if data, err := os.ReadFile(p.sidecarPath(key)); err == nil {
		if stored, decodeErr := metadata.UnmarshalSidecar(data); decodeErr == nil && metadata.Verify(body, stored.ETag) == nil {
			info = stored
		}
	}

	stat, err := os.Stat(fullPath)
	if err != nil {
		return nil, fmt.Errorf("error stating file %s: %w", fullPath, err)
	}

	info.Key = key
	info.Size = int64(len(body))
	info.ETag = metadata.ETag(body)
	info.LastModified = stat.ModTime().UTC()

	return info, nil
}

func (p *FSStore) pathFor(key string) (string, error) {
	if key == "" || strings.HasSuffix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	fullPath := filepath.Join(p.rootPath, filepath.FromSlash(key))
	if _, ok := p.KeyForPath(fullPath); !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return fullPath, nil
}

func (p *FSStore) sidecarPath(key string) string {
	return filepath.Join(p.rootPath, metaDir, filepath.FromSlash(key)+".json")
}
