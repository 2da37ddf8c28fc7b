// Package archive keeps a history of finished runs in Postgres.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/thruflo/sightline/internal/results"
)

const schema = `
CREATE TABLE IF NOT EXISTS sightline_runs (
    id SERIAL PRIMARY KEY,
    run_id TEXT NOT NULL UNIQUE,
    test_name TEXT NOT NULL,
    url TEXT,
    status TEXT NOT NULL,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL,
    duration_ms INTEGER NOT NULL,
    total_steps INTEGER NOT NULL,
    passed_steps INTEGER NOT NULL,
    failed_steps INTEGER NOT NULL,
    report_dir TEXT,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sightline_runs_test_name ON sightline_runs(test_name);
CREATE INDEX IF NOT EXISTS idx_sightline_runs_started_at ON sightline_runs(started_at DESC);

CREATE TABLE IF NOT EXISTS sightline_steps (
    id SERIAL PRIMARY KEY,
    run_id INTEGER NOT NULL REFERENCES sightline_runs(id) ON DELETE CASCADE,
    step INTEGER NOT NULL,
    description TEXT NOT NULL,
    status TEXT NOT NULL,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL,
    screenshot TEXT,
    UNIQUE (run_id, step)
);

CREATE INDEX IF NOT EXISTS idx_sightline_steps_run_id ON sightline_steps(run_id);
`

const insertRun = `
	INSERT INTO sightline_runs (run_id, test_name, url, status, started_at, completed_at, duration_ms, total_steps, passed_steps, failed_steps, report_dir)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING id
`

const insertStep = `
	INSERT INTO sightline_steps (run_id, step, description, status, recorded_at, screenshot)
	VALUES ($1, $2, $3, $4, $5, $6)
`

const selectRecent = `
	SELECT run_id, test_name, status, started_at, duration_ms, total_steps, passed_steps, failed_steps
	FROM sightline_runs
	WHERE test_name = $1
	ORDER BY started_at DESC
	LIMIT $2
`

// RunSummary is one archived run.
type RunSummary struct {
	RunID       string
	TestName    string
	Status      results.RunStatus
	StartedAt   time.Time
	DurationMs  int
	TotalSteps  int
	PassedSteps int
	FailedSteps int
}

// Store provides database operations for the run archive.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres and checks the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the archive tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Name identifies the store in logs.
func (s *Store) Name() string { return "archive" }

// Record inserts run and its steps in one transaction.
func (s *Store) Record(ctx context.Context, run *results.TestRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int
	if err := tx.QueryRowContext(ctx, insertRun, runArgs(run)...).Scan(&id); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	for _, step := range run.Steps {
		if _, err := tx.ExecContext(ctx, insertStep, stepArgs(id, step)...); err != nil {
			return fmt.Errorf("failed to insert step %d: %w", step.Step, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// Recent returns up to limit archived runs of the named test, newest first.
func (s *Store) Recent(ctx context.Context, testName string, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, selectRecent, testName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var status string
		if err := rows.Scan(&r.RunID, &r.TestName, &status, &r.StartedAt, &r.DurationMs, &r.TotalSteps, &r.PassedSteps, &r.FailedSteps); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Status = results.RunStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func runArgs(run *results.TestRun) []any {
	counts := run.Counts()
	total := len(run.Steps) - counts[results.StatusInfo]
	failed := counts[results.StatusFail] + counts[results.StatusUnknown]
	return []any{
		run.RunID,
		run.Name,
		nullString(run.URL),
		string(run.Status),
		run.StartTime,
		run.EndTime,
		int(run.Duration().Milliseconds()),
		total,
		counts[results.StatusPass],
		failed,
		nullString(run.Dir),
	}
}

func stepArgs(runID int, step results.StepResult) []any {
	return []any{runID, step.Step, step.Description, string(step.Status), step.Timestamp, nullString(step.Screenshot)}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
