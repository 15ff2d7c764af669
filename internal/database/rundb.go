// Package database keeps a SQLite ledger of extraction runs: one row per
// run and one row per target outcome. The CSV artifacts remain the data
// product; the ledger answers "when was NABIL last fetched, and did it
// finish?".
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"pricehistory-extractor/internal/types"
)

// ErrRunNotFound is returned when a run ID does not exist
var ErrRunNotFound = errors.New("run not found")

// RunDB is the SQLite-backed run ledger
type RunDB struct {
	db     *sql.DB
	dbPath string
}

// Run is one row of the runs table
type Run struct {
	ID       int64     `json:"id"`
	Targets  []string  `json:"targets"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Outcome is one row of the outcomes table
type Outcome struct {
	RunID    int64        `json:"run_id"`
	Target   string       `json:"target"`
	Status   types.Status `json:"status"`
	Pages    int          `json:"pages"`
	Records  int          `json:"records"`
	Artifact string       `json:"artifact,omitempty"`
	Error    string       `json:"error,omitempty"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
}

// Open opens or creates the ledger at dbPath
func Open(dbPath string) (*RunDB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{db: db, dbPath: dbPath}
	if err := rdb.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return rdb, nil
}

// Close closes the database connection
func (r *RunDB) Close() error {
	return r.db.Close()
}

// Path returns the database file path
func (r *RunDB) Path() string {
	return r.dbPath
}

func (r *RunDB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		targets TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		target TEXT NOT NULL,
		status TEXT NOT NULL,
		pages INTEGER NOT NULL,
		records INTEGER NOT NULL,
		artifact TEXT,
		error TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id);
	CREATE INDEX IF NOT EXISTS idx_outcomes_target ON outcomes(target, finished_at);
	`
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// BeginRun inserts a run and returns its ID
func (r *RunDB) BeginRun(ctx context.Context, targets []types.Target, started time.Time) (int64, error) {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = string(t)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (targets, started_at) VALUES (?, ?)`,
		strings.Join(names, ","), started.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun stamps the run's finish time
func (r *RunDB) FinishRun(ctx context.Context, runID int64, finished time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE runs SET finished_at = ? WHERE id = ?`, finished.UTC(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// RecordResult stores one target outcome
func (r *RunDB) RecordResult(ctx context.Context, runID int64, result types.TargetResult) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outcomes (run_id, target, status, pages, records, artifact, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, string(result.Target), string(result.Status), result.Pages, result.Records,
		result.Artifact, result.Error, result.Started.UTC(), result.Finished.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert outcome for %s: %w", result.Target, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first
func (r *RunDB) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, targets, started_at, finished_at FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run      Run
			targets  string
			finished sql.NullTime
		)
		if err := rows.Scan(&run.ID, &targets, &run.Started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if targets != "" {
			run.Targets = strings.Split(targets, ",")
		}
		if finished.Valid {
			run.Finished = finished.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Outcomes returns the outcomes of one run in processing order
func (r *RunDB) Outcomes(ctx context.Context, runID int64) ([]Outcome, error) {
	return r.queryOutcomes(ctx, `WHERE run_id = ? ORDER BY id`, runID)
}

// TargetHistory returns up to limit outcomes of target, newest first
func (r *RunDB) TargetHistory(ctx context.Context, target types.Target, limit int) ([]Outcome, error) {
	return r.queryOutcomes(ctx, `WHERE target = ? ORDER BY id DESC LIMIT ?`, string(target), limit)
}

// LastSuccess returns the most recent successful outcome of target
func (r *RunDB) LastSuccess(ctx context.Context, target types.Target) (*Outcome, error) {
	outcomes, err := r.queryOutcomes(ctx, `WHERE target = ? AND status = ? ORDER BY id DESC LIMIT 1`,
		string(target), string(types.StatusSuccess))
	if err != nil {
		return nil, err
	}
	if len(outcomes) == 0 {
		return nil, nil
	}
	return &outcomes[0], nil
}

func (r *RunDB) queryOutcomes(ctx context.Context, where string, args ...any) ([]Outcome, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, target, status, pages, records, artifact, error, started_at, finished_at
		FROM outcomes `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		var (
			o               Outcome
			status          string
			artifact, cause sql.NullString
		)
		if err := rows.Scan(&o.RunID, &o.Target, &status, &o.Pages, &o.Records,
			&artifact, &cause, &o.Started, &o.Finished); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Status = types.Status(status)
		o.Artifact = artifact.String
		o.Error = cause.String
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
