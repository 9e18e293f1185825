// Package reconciler mirrors a remote directory listing into object storage.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-units"

	"blsdata/internal/logger"
	"blsdata/internal/manifest"
	"blsdata/internal/models"
	"blsdata/internal/storage"
)

// Source lists the remote directory and downloads its files.
type Source interface {
	ListDirectory(ctx context.Context) ([]models.ListingEntry, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Options configures a Reconciler.
type Options struct {
	// FileKey maps a file name to its object key.
	FileKey func(fileName string) string
	// GuardManifest makes the manifest write fail if another run changed it.
	GuardManifest bool
}

// Result summarizes one sync run.
type Result struct {
	Failures  []models.SyncFailure
	FileCount int
	Uploaded  int
	Skipped   int
	Deleted   int
	Failed    int
}

// Message is the handler body for a successful run.
func (r *Result) Message() string {
	return fmt.Sprintf("Success. %d files now in S3.", r.FileCount)
}

// Reconciler runs directory syncs.
type Reconciler struct {
	source    Source
	objects   storage.ObjectStore
	manifests *manifest.Store
	logger    *logger.Logger
	opts      Options
	now       func() time.Time
}

// New creates a reconciler.
func New(source Source, objects storage.ObjectStore, manifests *manifest.Store, opts Options, log *logger.Logger) *Reconciler {
	return &Reconciler{
		source:    source,
		objects:   objects,
		manifests: manifests,
		logger:    log,
		opts:      opts,
		now:       time.Now,
	}
}

// Run performs one sync. Failing to list the remote directory aborts before
// anything is written. A failed download drops the file from the manifest
// and, if it was tracked before, deletes its stored copy.
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	old, version, err := r.manifests.Load(ctx)
	if err != nil {
		return nil, err
	}

	previousFailures, err := r.manifests.LoadFailures(ctx)
	if err != nil {
		// The failure log is advisory; a broken one must not block syncing.
		r.logger.Warn(fmt.Sprintf("Ignoring unreadable failure log: %v", err))
	}

	entries, err := r.source.ListDirectory(ctx)
	if err != nil {
		return nil, err
	}

	r.logger.Info(fmt.Sprintf("Listed %d files, %d tracked in manifest", len(entries), len(old)))
	r.reportVanishedFailures(previousFailures, entries)

	tracked := old.Index()
	result := &Result{}
	current := make(models.Manifest, 0, len(entries))

	for _, d := range Plan(old, entries) {
		if d.Action == ActionSkip {
			result.Skipped++
			current = append(current, d.Entry.Record())

			continue
		}

		r.logger.Info(fmt.Sprintf("Uploading: %s", d.Entry.FileName))

		body, err := r.source.Download(ctx, d.Entry.URL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("sync interrupted: %w", ctx.Err())
			}

			r.logger.Warn(fmt.Sprintf("Failed to download %s: %v", d.Entry.FileName, err))

			_, wasTracked := tracked[d.Entry.FileName]
			result.Failed++
			result.Failures = append(result.Failures, models.SyncFailure{
				AttemptedAt:       r.now().UTC(),
				FileName:          d.Entry.FileName,
				URL:               d.Entry.URL,
				Error:             err.Error(),
				PreviouslyTracked: wasTracked,
			})

			continue
		}

		if err := r.objects.Put(ctx, r.opts.FileKey(d.Entry.FileName), body, ""); err != nil {
			return nil, fmt.Errorf("failed to store %s: %w", d.Entry.FileName, err)
		}

		r.logger.Debug(fmt.Sprintf("Stored %s (%s)", d.Entry.FileName, units.HumanSize(float64(len(body)))))

		result.Uploaded++
		current = append(current, d.Entry.Record())
	}

	for _, name := range Removed(old, current) {
		r.logger.Info(fmt.Sprintf("Deleting removed file from storage: %s", name))

		if err := r.objects.Delete(ctx, r.opts.FileKey(name)); err != nil {
			return nil, fmt.Errorf("failed to delete %s: %w", name, err)
		}

		result.Deleted++
	}

	if err := r.manifests.Save(ctx, current, version, r.opts.GuardManifest); err != nil {
		return nil, err
	}

	if err := r.manifests.SaveFailures(ctx, result.Failures); err != nil {
		return nil, err
	}

	result.FileCount = len(current)

	r.logger.Info(fmt.Sprintf("Sync complete. %d files now in S3.", result.FileCount),
		"uploaded", result.Uploaded,
		"skipped", result.Skipped,
		"deleted", result.Deleted,
		"failed", result.Failed,
	)

	return result, nil
}

// reportVanishedFailures logs files whose last download failed and that the
// remote directory no longer lists.
func (r *Reconciler) reportVanishedFailures(failures []models.SyncFailure, entries []models.ListingEntry) {
	listed := make(map[string]bool, len(entries))
	for _, e := range entries {
		listed[e.FileName] = true
	}

	for _, f := range failures {
		if !listed[f.FileName] {
			r.logger.Warn(fmt.Sprintf("File %s failed to download on %s and has since been removed remotely",
				f.FileName, f.AttemptedAt.Format(time.RFC3339)))
		}
	}
}
