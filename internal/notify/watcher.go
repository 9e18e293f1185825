package notify

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"blsdata/internal/logger"
	"blsdata/internal/storage"
)

// Watcher emits a notification whenever an object under prefix is written
// to a filesystem store, as an S3 bucket notification would.
type Watcher struct {
	store   *storage.FSStore
	watcher *fsnotify.Watcher
	logger  *logger.Logger
	prefix  string
}

// NewWatcher creates a watcher for store.
func NewWatcher(store *storage.FSStore, prefix string, log *logger.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		store:   store,
		watcher: w,
		logger:  log,
		prefix:  prefix,
	}, nil
}

// Run watches until ctx ends, calling handle for every matching write.
func (w *Watcher) Run(ctx context.Context, handle func(context.Context, *Notification)) error {
	defer w.watcher.Close()

	if err := w.addTree(w.store.Root()); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}

			if n := w.handleEvent(event); n != nil {
				handle(ctx, n)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}

			w.logger.Warn(fmt.Sprintf("Watcher error: %v", err))
		}
	}
}

// handleEvent returns the notification for event, if any. New directories
// are added to the watch list.
func (w *Watcher) handleEvent(event fsnotify.Event) *Notification {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return nil
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return nil
	}

	if info.IsDir() {
		if strings.HasPrefix(filepath.Base(event.Name), ".") {
			return nil
		}

		if err := w.addTree(event.Name); err != nil {
			w.logger.Warn(fmt.Sprintf("Failed to watch %s: %v", event.Name, err))
		}

		return nil
	}

	// Temporary files of atomic writes are renamed into place.
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return nil
	}

	key, ok := w.store.KeyForPath(event.Name)
	if !ok || !strings.HasPrefix(key, w.prefix) {
		return nil
	}

	w.logger.Debug(fmt.Sprintf("Object written: %s", key))

	return &Notification{Source: SourceFilesystem, Keys: []string{key}}
}

// addTree watches root and every directory below it except hidden ones.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}

		return nil
	})
}
