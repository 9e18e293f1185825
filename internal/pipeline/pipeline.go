// Package pipeline assembles the sync, fetch and report jobs from the
// configuration.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"blsdata/internal/config"
	"blsdata/internal/crawler"
	"blsdata/internal/fetcher"
	"blsdata/internal/job"
	"blsdata/internal/ledger"
	"blsdata/internal/logger"
	"blsdata/internal/manifest"
	"blsdata/internal/metrics"
	"blsdata/internal/models"
	"blsdata/internal/notify"
	"blsdata/internal/reconciler"
	"blsdata/internal/report"
	"blsdata/internal/storage"
)

// Job names.
const (
	JobSync   = "sync"
	JobFetch  = "fetch"
	JobReport = "report"
)

// ErrUnknownJob is returned by Func for names other than sync, fetch and report.
var ErrUnknownJob = errors.New("unknown job")

// SkippedMessage is the report body when a notification names no matching object.
const SkippedMessage = "No matching objects; report skipped."

// Pipeline holds the shared collaborators of the three jobs.
type Pipeline struct {
	cfg       *config.Config
	objects   storage.ObjectStore
	manifests *manifest.Store
	ledger    *ledger.Ledger
	logger    *logger.Logger
	client    *http.Client
}

// New opens the configured store and, if configured, the run ledger.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Pipeline, error) {
	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	p := NewWithStore(cfg, objects, log)

	if cfg.Ledger.DSN != "" {
		l, err := ledger.Open(cfg.Ledger.DSN)
		if err != nil {
			return nil, err
		}

		p.ledger = l
	}

	return p, nil
}

// NewWithStore builds a pipeline on an existing store without a ledger.
func NewWithStore(cfg *config.Config, objects storage.ObjectStore, log *logger.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		objects:   objects,
		manifests: manifest.NewStore(objects, cfg.ManifestKey(), cfg.FailuresKey()),
		logger:    log,
		client:    &http.Client{Timeout: cfg.FetchTimeout()},
	}
}

// Config returns the configuration.
func (p *Pipeline) Config() *config.Config {
	return p.cfg
}

// Objects returns the object store.
func (p *Pipeline) Objects() storage.ObjectStore {
	return p.objects
}

// Manifests returns the manifest store.
func (p *Pipeline) Manifests() *manifest.Store {
	return p.manifests
}

// Ledger returns the run ledger, or nil when disabled.
func (p *Pipeline) Ledger() *ledger.Ledger {
	return p.ledger
}

// Runner creates a job runner recording into the ledger, if any.
func (p *Pipeline) Runner() *job.Runner {
	r := job.NewRunner(p.cfg.Retry, p.logger)
	if p.ledger != nil {
		r.SetRecorder(p.ledger)
	}

	return r
}

// Close releases the ledger.
func (p *Pipeline) Close() error {
	if p.ledger == nil {
		return nil
	}

	return p.ledger.Close()
}

// Sync mirrors the remote directory into storage.
func (p *Pipeline) Sync(ctx context.Context) (string, error) {
	scraper := crawler.NewScraper(p.cfg.SyncTimeout(), p.cfg.Sync.Contact)
	source := crawler.NewClient(p.cfg.Sync.BaseURL, scraper)

	rec := reconciler.New(source, p.objects, p.manifests, reconciler.Options{
		FileKey:       p.cfg.FileKey,
		GuardManifest: p.cfg.Sync.GuardManifest,
	}, p.logger.With("job", JobSync))

	result, err := rec.Run(ctx)
	if err != nil {
		return "", err
	}

	metrics.ObserveSync(result.FileCount, result.Uploaded, result.Skipped, result.Deleted, result.Failed)
	p.recordFailures(ctx, result.Failures)

	return result.Message(), nil
}

// Fetch copies the population dataset into storage.
func (p *Pipeline) Fetch(ctx context.Context) (string, error) {
	f := fetcher.New(p.client, p.objects, p.cfg.Fetch.APIURL, p.cfg.Fetch.Key, p.logger.With("job", JobFetch))
	if err := f.Run(ctx); err != nil {
		return "", err
	}

	return fetcher.SuccessMessage, nil
}

// Report returns the report job for notification n. A nil notification is
// a manual invocation.
func (p *Pipeline) Report(n *notify.Notification) job.Func {
	if n == nil {
		n = notify.Manual()
	}

	return func(ctx context.Context) (string, error) {
		log := p.logger.With("job", JobReport)
		log.Info(fmt.Sprintf("Received %s notification for %v", n.Source, n.Keys))

		if !n.Matches(p.cfg.Report.TriggerPrefix) {
			log.Info(fmt.Sprintf("No object matches %q; skipping report", p.cfg.Report.TriggerPrefix))

			return SkippedMessage, nil
		}

		gen := report.New(p.objects, report.Options{
			SeriesKey:     p.cfg.Report.SeriesKey,
			PopulationKey: p.cfg.Report.PopulationKey,
			SeriesID:      p.cfg.Report.SeriesID,
			Period:        p.cfg.Report.Period,
			FromYear:      p.cfg.Report.FromYear,
			ToYear:        p.cfg.Report.ToYear,
		}, log)

		if _, err := gen.Generate(ctx); err != nil {
			return "", err
		}

		return report.SuccessMessage, nil
	}
}

// Func returns the job registered under name.
func (p *Pipeline) Func(name string, n *notify.Notification) (job.Func, error) {
	switch name {
	case JobSync:
		return p.Sync, nil
	case JobFetch:
		return p.Fetch, nil
	case JobReport:
		return p.Report(n), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
}

// RunAll runs sync, then fetch, then the report the fetch's write would
// trigger. It stops at the first failed job.
func (p *Pipeline) RunAll(ctx context.Context, runner *job.Runner) []job.Response {
	written := &notify.Notification{Source: notify.SourceS3, Keys: []string{p.cfg.Fetch.Key}}

	steps := []struct {
		name string
		fn   job.Func
	}{
		{JobSync, p.Sync},
		{JobFetch, p.Fetch},
		{JobReport, p.Report(written)},
	}

	responses := make([]job.Response, 0, len(steps))

	for _, step := range steps {
		resp := runner.Invoke(ctx, step.name, step.fn)
		responses = append(responses, resp)

		if !resp.OK() {
			p.logger.Error(fmt.Sprintf("Pipeline stopped at %s: %s", step.name, resp.Body))

			break
		}
	}

	return responses
}

func (p *Pipeline) recordFailures(ctx context.Context, failures []models.SyncFailure) {
	if p.ledger == nil || len(failures) == 0 {
		return
	}

	if err := p.ledger.RecordFailures(ctx, job.InvocationID(ctx), failures); err != nil {
		p.logger.Warn(fmt.Sprintf("Failed to record sync failures: %v", err))
	}
}
