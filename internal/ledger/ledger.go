// Package ledger keeps a sqlite history of job invocations and sync failures.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"blsdata/internal/models"
)

// Ledger errors.
var (
	ErrNotFound = errors.New("ledger: not found")
	ErrEmptyDSN = errors.New("ledger: dsn is empty")
)

const schema = `
CREATE TABLE IF NOT EXISTS job_runs (
	invocation_id TEXT PRIMARY KEY,
	job           TEXT NOT NULL,
	started_at    TIMESTAMP NOT NULL,
	finished_at   TIMESTAMP NOT NULL,
	status_code   INTEGER NOT NULL,
	message       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_job_runs_started ON job_runs (started_at);

CREATE TABLE IF NOT EXISTS sync_failures (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	invocation_id      TEXT NOT NULL,
	file_name          TEXT NOT NULL,
	url                TEXT NOT NULL,
	error              TEXT NOT NULL,
	attempted_at       TIMESTAMP NOT NULL,
	previously_tracked BOOLEAN NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sync_failures_file ON sync_failures (file_name);
`

// Run is one recorded job invocation.
type Run struct {
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	InvocationID string    `json:"invocation_id"`
	Job          string    `json:"job"`
	Message      string    `json:"message"`
	StatusCode   int       `json:"status_code"`
}

// Ledger wraps the run history database.
type Ledger struct {
	db *sql.DB
}

// Open opens (and if needed creates) the ledger at dsn.
func Open(dsn string) (*Ledger, error) {
	if dsn == "" {
		return nil, ErrEmptyDSN
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// RecordRun stores one invocation.
func (l *Ledger) RecordRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO job_runs (invocation_id, job, started_at, finished_at, status_code, message)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := l.db.ExecContext(ctx, query,
		run.InvocationID,
		run.Job,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		run.StatusCode,
		run.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.InvocationID, err)
	}

	return nil
}

// GetRun retrieves a run by invocation ID.
func (l *Ledger) GetRun(ctx context.Context, invocationID string) (*Run, error) {
	query := `
		SELECT invocation_id, job, started_at, finished_at, status_code, message
		FROM job_runs
		WHERE invocation_id = ?
	`

	run, err := scanRun(l.db.QueryRowContext(ctx, query, invocationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return run, nil
}

// RecentRuns returns up to limit runs, newest first. An empty job matches all.
func (l *Ledger) RecentRuns(ctx context.Context, job string, limit int) ([]*Run, error) {
	query := `
		SELECT invocation_id, job, started_at, finished_at, status_code, message
		FROM job_runs
		WHERE (? = '' OR job = ?)
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := l.db.QueryContext(ctx, query, job, job, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// RecordFailures stores the download failures of one sync invocation.
func (l *Ledger) RecordFailures(ctx context.Context, invocationID string, failures []models.SyncFailure) error {
	if len(failures) == 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := `
		INSERT INTO sync_failures (invocation_id, file_name, url, error, attempted_at, previously_tracked)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	for _, f := range failures {
		if _, err := tx.ExecContext(ctx, query, invocationID, f.FileName, f.URL, f.Error, f.AttemptedAt.UTC(), f.PreviouslyTracked); err != nil {
			return fmt.Errorf("failed to record failure of %s: %w", f.FileName, err)
		}
	}

	return tx.Commit()
}

// FailureCounts returns how often each file failed to download.
func (l *Ledger) FailureCounts(ctx context.Context) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT file_name, COUNT(*) FROM sync_failures GROUP BY file_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)

	for rows.Next() {
		var (
			name  string
			count int
		)

		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}

		counts[name] = count
	}

	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	run := &Run{}

	err := s.Scan(
		&run.InvocationID,
		&run.Job,
		&run.StartedAt,
		&run.FinishedAt,
		&run.StatusCode,
		&run.Message,
	)
	if err != nil {
		return nil, err
	}

	return run, nil
}
