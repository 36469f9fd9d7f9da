package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	// Registers the "postgres" driver.
	_ "github.com/lib/pq"

	gerrors "github.com/gazer-labs/sqlgazer/internal/errors"
	"github.com/gazer-labs/sqlgazer/pkg/models"
)

// PostgresRepository implements FindingsRepository using PostgreSQL.
// This is the production sink.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository opens a PostgreSQL sink and ensures its schema.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, gerrors.NewSinkFailure("postgres", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	r := &PostgresRepository{db: db}
	if err := r.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *PostgresRepository) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_runs (
			run_id       TEXT PRIMARY KEY,
			source       TEXT NOT NULL,
			day          DATE NOT NULL,
			started_at   TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ NOT NULL,
			job_count    BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS job_findings (
			run_id        TEXT NOT NULL,
			job_id        TEXT NOT NULL,
			project_id    TEXT NOT NULL,
			creation_time TIMESTAMPTZ NOT NULL,
			analyzed      BOOLEAN NOT NULL,
			flagged_rules TEXT NOT NULL,
			record        JSONB NOT NULL,
			PRIMARY KEY (run_id, job_id)
		)`,
		`CREATE INDEX IF NOT EXISTS job_findings_project_idx
			ON job_findings (project_id, creation_time)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return gerrors.NewSinkFailure("postgres", fmt.Errorf("ensure schema: %w", err))
		}
	}
	return nil
}

// SaveRun records the run.
func (r *PostgresRepository) SaveRun(ctx context.Context, run models.RunInfo) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO analysis_runs (run_id, source, day, started_at, completed_at, job_count)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (run_id) DO UPDATE SET
			source = EXCLUDED.source, day = EXCLUDED.day,
			started_at = EXCLUDED.started_at, completed_at = EXCLUDED.completed_at,
			job_count = EXCLUDED.job_count`,
		run.RunID, run.Source, run.Day, run.StartedAt, run.CompletedAt, run.JobCount)
	if err != nil {
		return gerrors.NewSinkFailure("postgres", fmt.Errorf("save run %s: %w", run.RunID, err))
	}
	return nil
}

// SaveFindings writes the findings of a run in one transaction.
func (r *PostgresRepository) SaveFindings(ctx context.Context, runID string, findings []*models.JobFindings) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return gerrors.NewSinkFailure("postgres", fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	for _, f := range findings {
		record, err := json.Marshal(f)
		if err != nil {
			return gerrors.NewSinkFailure("postgres", fmt.Errorf("encode job %s: %w", f.JobID, err))
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO job_findings (run_id, job_id, project_id, creation_time, analyzed, flagged_rules, record)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (run_id, job_id) DO UPDATE SET
				project_id = EXCLUDED.project_id, creation_time = EXCLUDED.creation_time,
				analyzed = EXCLUDED.analyzed, flagged_rules = EXCLUDED.flagged_rules,
				record = EXCLUDED.record`,
			runID, f.JobID, f.ProjectID, f.CreationTime, f.Analyzed,
			strings.Join(f.FlaggedRules(), ","), record)
		if err != nil {
			return gerrors.NewSinkFailure("postgres", fmt.Errorf("save job %s: %w", f.JobID, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return gerrors.NewSinkFailure("postgres", fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// Summary counts flagged jobs per rule for one run.
func (r *PostgresRepository) Summary(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT flagged_rules FROM job_findings WHERE run_id = $1 AND flagged_rules <> ''`,
		runID)
	if err != nil {
		return nil, gerrors.NewSinkFailure("postgres", fmt.Errorf("summary for run %s: %w", runID, err))
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var flagged string
		if err := rows.Scan(&flagged); err != nil {
			return nil, gerrors.NewSinkFailure("postgres", fmt.Errorf("scan summary row: %w", err))
		}
		for _, rule := range strings.Split(flagged, ",") {
			counts[rule]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, gerrors.NewSinkFailure("postgres", fmt.Errorf("summary for run %s: %w", runID, err))
	}
	return counts, nil
}

// CheckConnectivity verifies database connectivity.
func (r *PostgresRepository) CheckConnectivity(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return gerrors.NewSinkFailure("postgres", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

var _ FindingsRepository = (*PostgresRepository)(nil)
