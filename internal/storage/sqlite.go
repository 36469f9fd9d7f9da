package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	gerrors "github.com/gazer-labs/sqlgazer/internal/errors"
	"github.com/gazer-labs/sqlgazer/pkg/models"
)

// SQLiteRepository implements FindingsRepository on a local SQLite file.
// It is the development and single-machine sink; the driver is pure Go
// so cross-compiled binaries need no cgo.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens a SQLite sink and ensures its schema.
func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, gerrors.NewSinkFailure("sqlite", err)
	}
	// The driver serializes writes; a single connection avoids
	// SQLITE_BUSY under the concurrent runner.
	db.SetMaxOpenConns(1)

	r := &SQLiteRepository{db: db}
	if err := r.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_runs (
			run_id       TEXT PRIMARY KEY,
			source       TEXT NOT NULL,
			day          TEXT NOT NULL,
			started_at   TEXT NOT NULL,
			completed_at TEXT NOT NULL,
			job_count    INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS job_findings (
			run_id        TEXT NOT NULL,
			job_id        TEXT NOT NULL,
			project_id    TEXT NOT NULL,
			creation_time TEXT NOT NULL,
			analyzed      INTEGER NOT NULL,
			flagged_rules TEXT NOT NULL,
			record        TEXT NOT NULL,
			PRIMARY KEY (run_id, job_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return gerrors.NewSinkFailure("sqlite", fmt.Errorf("ensure schema: %w", err))
		}
	}
	return nil
}

// SaveRun records the run.
func (r *SQLiteRepository) SaveRun(ctx context.Context, run models.RunInfo) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO analysis_runs (run_id, source, day, started_at, completed_at, job_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Source, run.Day.Format("2006-01-02"),
		run.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		run.CompletedAt.Format("2006-01-02T15:04:05Z07:00"),
		run.JobCount)
	if err != nil {
		return gerrors.NewSinkFailure("sqlite", fmt.Errorf("save run %s: %w", run.RunID, err))
	}
	return nil
}

// SaveFindings writes the findings of a run in one transaction.
func (r *SQLiteRepository) SaveFindings(ctx context.Context, runID string, findings []*models.JobFindings) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return gerrors.NewSinkFailure("sqlite", fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	for _, f := range findings {
		record, err := json.Marshal(f)
		if err != nil {
			return gerrors.NewSinkFailure("sqlite", fmt.Errorf("encode job %s: %w", f.JobID, err))
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO job_findings
				(run_id, job_id, project_id, creation_time, analyzed, flagged_rules, record)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, f.JobID, f.ProjectID,
			f.CreationTime.Format("2006-01-02T15:04:05Z07:00"),
			f.Analyzed, strings.Join(f.FlaggedRules(), ","), string(record))
		if err != nil {
			return gerrors.NewSinkFailure("sqlite", fmt.Errorf("save job %s: %w", f.JobID, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return gerrors.NewSinkFailure("sqlite", fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// Summary counts flagged jobs per rule for one run.
func (r *SQLiteRepository) Summary(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT flagged_rules FROM job_findings WHERE run_id = ? AND flagged_rules <> ''`,
		runID)
	if err != nil {
		return nil, gerrors.NewSinkFailure("sqlite", fmt.Errorf("summary for run %s: %w", runID, err))
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var flagged string
		if err := rows.Scan(&flagged); err != nil {
			return nil, gerrors.NewSinkFailure("sqlite", fmt.Errorf("scan summary row: %w", err))
		}
		for _, rule := range strings.Split(flagged, ",") {
			counts[rule]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, gerrors.NewSinkFailure("sqlite", fmt.Errorf("summary for run %s: %w", runID, err))
	}
	return counts, nil
}

// CheckConnectivity verifies the database file is usable.
func (r *SQLiteRepository) CheckConnectivity(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return gerrors.NewSinkFailure("sqlite", err)
	}
	return nil
}

// Close releases the database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

var _ FindingsRepository = (*SQLiteRepository)(nil)
