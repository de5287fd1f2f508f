// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists finished research jobs in SQLite so /status and
// the CLI can look up results after the in-memory run is gone.
//
// See docs/ARCHITECTURE.md § Job Store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

const dbFile = "jobs.db"

// ErrNotFound is returned by Get for unknown job IDs.
var ErrNotFound = errors.New("job not found")

// Store manages the job SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the job database at dataDir/jobs.db, creating the
// schema if needed.
func Open(cfg types.StoreConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			status TEXT NOT NULL,
			progress INTEGER NOT NULL,
			error TEXT,
			sources TEXT,
			findings TEXT,
			report TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Put upserts a job. Sources, findings and the report are stored as JSON
// columns; the job row is the unit of update.
func (s *Store) Put(ctx context.Context, job *types.ResearchJob) error {
	sourcesJSON, err := json.Marshal(job.Sources)
	if err != nil {
		return fmt.Errorf("marshaling sources: %w", err)
	}
	findingsJSON, err := json.Marshal(job.Findings)
	if err != nil {
		return fmt.Errorf("marshaling findings: %w", err)
	}
	reportJSON := []byte("null")
	if job.Report != nil {
		if reportJSON, err = json.Marshal(job.Report); err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, query, status, progress, error, sources, findings, report, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status=excluded.status, progress=excluded.progress, error=excluded.error,
			sources=excluded.sources, findings=excluded.findings, report=excluded.report,
			updated_at=excluded.updated_at`,
		job.ID, job.Query, string(job.Status), job.Progress, job.Error,
		string(sourcesJSON), string(findingsJSON), string(reportJSON),
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
		job.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting job %s: %w", job.ID, err)
	}
	return nil
}

// Get loads a job by ID. Returns ErrNotFound for unknown IDs.
func (s *Store) Get(ctx context.Context, id string) (*types.ResearchJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, query, status, progress, error, sources, findings, report, created_at, updated_at
		 FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", id, err)
	}
	return job, nil
}

// List returns the most recently created jobs, newest first, up to limit.
func (s *Store) List(ctx context.Context, limit int) ([]*types.ResearchJob, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, status, progress, error, sources, findings, report, created_at, updated_at
		 FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*types.ResearchJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*types.ResearchJob, error) {
	var (
		job                                   types.ResearchJob
		status                                string
		sourcesJSON, findingsJSON, reportJSON string
		createdAt, updatedAt                  string
	)
	err := row.Scan(&job.ID, &job.Query, &status, &job.Progress, &job.Error,
		&sourcesJSON, &findingsJSON, &reportJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	job.Status = types.JobStatus(status)

	if err := json.Unmarshal([]byte(sourcesJSON), &job.Sources); err != nil {
		return nil, fmt.Errorf("parsing sources: %w", err)
	}
	if err := json.Unmarshal([]byte(findingsJSON), &job.Findings); err != nil {
		return nil, fmt.Errorf("parsing findings: %w", err)
	}
	if reportJSON != "" && reportJSON != "null" {
		job.Report = &types.Report{}
		if err := json.Unmarshal([]byte(reportJSON), job.Report); err != nil {
			return nil, fmt.Errorf("parsing report: %w", err)
		}
	}

	if job.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if job.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &job, nil
}
