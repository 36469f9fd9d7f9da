// Package duckdb harvests jobs and catalog metadata from local files
// through an embedded DuckDB instance. It is the offline source: exports
// of warehouse job history (JSON or CSV) are analyzed without any
// network access, which also makes it the source used in development.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gazer-labs/sqlgazer/internal/catalog"
	"github.com/gazer-labs/sqlgazer/internal/warehouse"
	"github.com/gazer-labs/sqlgazer/pkg/models"

	// Registers the "duckdb" driver.
	_ "github.com/marcboeker/go-duckdb"
)

// Config configures the DuckDB source.
type Config struct {
	// Database is the DuckDB database path. Empty means in-memory,
	// which is sufficient when reading from export files.
	Database string

	// JobsFile is a JSON or CSV export of job history with columns
	// job_id, project_id, query_text, creation_time, and optionally
	// bytes_processed and slot_ms.
	JobsFile string

	// CatalogTable names a table inside Database holding catalog rows:
	// qualified_name, partition_column, approx_row_count, columns,
	// datetime_columns. The two list columns are comma-separated.
	// Empty means the source serves no catalog.
	CatalogTable string
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.JobsFile == "" && c.CatalogTable == "" {
		return fmt.Errorf("duckdb: jobs_file or catalog_table is required")
	}
	if c.CatalogTable != "" && c.Database == "" {
		return fmt.Errorf("duckdb: catalog_table requires a database path")
	}
	return nil
}

// Source implements warehouse.MetadataSource over local files.
type Source struct {
	mu     sync.RWMutex
	config Config
	db     *sql.DB
	closed bool
}

// NewSource creates a DuckDB source.
func NewSource(config Config) (*Source, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open("duckdb", config.Database)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open database: %w", err)
	}
	return &Source{config: config, db: db}, nil
}

// Name returns the source name.
func (s *Source) Name() string {
	return "duckdb"
}

// readerFunc picks the DuckDB table function for the export format.
func readerFunc(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		return "read_csv_auto"
	}
	return "read_json_auto"
}

// Jobs reads the export file and returns the jobs created on the given
// day. Rows missing the optional cost columns load as zero.
func (s *Source) Jobs(ctx context.Context, day time.Time) ([]models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("duckdb: source is closed")
	}
	if s.config.JobsFile == "" {
		return nil, fmt.Errorf("duckdb: no jobs_file configured")
	}

	// Table functions do not accept bound parameters; the path is
	// escaped and inlined.
	path := strings.ReplaceAll(s.config.JobsFile, "'", "''")
	query := fmt.Sprintf(`
		SELECT job_id, project_id, query_text, creation_time,
		       COALESCE(TRY_CAST(bytes_processed AS BIGINT), 0),
		       COALESCE(TRY_CAST(slot_ms AS BIGINT), 0)
		FROM %s('%s')
		WHERE CAST(creation_time AS DATE) = CAST(? AS DATE)
		ORDER BY creation_time`, readerFunc(s.config.JobsFile), path)
	rows, err := s.db.QueryContext(ctx, query, day.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("duckdb: read jobs file: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var (
			job               models.Job
			bytesProc, slotMs sql.NullInt64
		)
		if err := rows.Scan(&job.JobID, &job.ProjectID, &job.QueryText,
			&job.CreationTime, &bytesProc, &slotMs); err != nil {
			return nil, fmt.Errorf("duckdb: scan job row: %w", err)
		}
		job.ApproxBytesProcessed = bytesProc.Int64
		job.ApproxSlotMs = slotMs.Int64
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("duckdb: read jobs file: %w", err)
	}
	return jobs, nil
}

// Catalog reads the configured catalog table into a snapshot.
func (s *Source) Catalog(ctx context.Context, minRows int64) (*catalog.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("duckdb: source is closed")
	}
	if s.config.CatalogTable == "" {
		return catalog.NewSnapshot(nil), nil
	}

	query := fmt.Sprintf(`
		SELECT qualified_name,
		       COALESCE(partition_column, ''),
		       COALESCE(approx_row_count, 0),
		       COALESCE(columns, ''),
		       COALESCE(datetime_columns, '')
		FROM %q
		WHERE COALESCE(approx_row_count, 0) >= ?
		ORDER BY qualified_name`, s.config.CatalogTable)
	rows, err := s.db.QueryContext(ctx, query, minRows)
	if err != nil {
		return nil, fmt.Errorf("duckdb: read catalog table: %w", err)
	}
	defer rows.Close()

	var entries []catalog.Entry
	for rows.Next() {
		var (
			entry              catalog.Entry
			columns, datetimes string
		)
		if err := rows.Scan(&entry.QualifiedName, &entry.PartitionColumn,
			&entry.ApproxRowCount, &columns, &datetimes); err != nil {
			return nil, fmt.Errorf("duckdb: scan catalog row: %w", err)
		}
		entry.Columns = splitList(columns)
		entry.DatetimeColumns = splitList(datetimes)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("duckdb: read catalog table: %w", err)
	}
	return catalog.NewSnapshot(entries), nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Ping checks the embedded database is usable.
func (s *Source) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("duckdb: source is closed")
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("duckdb: ping failed: %w", err)
	}
	return nil
}

// Close releases the embedded database.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

var _ warehouse.MetadataSource = (*Source)(nil)
