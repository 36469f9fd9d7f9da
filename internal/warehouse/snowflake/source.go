// Package snowflake harvests job history and table metadata from
// Snowflake.
//
// Jobs come from SNOWFLAKE.ACCOUNT_USAGE.QUERY_HISTORY; the catalog
// comes from the database's INFORMATION_SCHEMA views.
package snowflake

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

	// Registers the "snowflake" driver.
	_ "github.com/snowflakedb/gosnowflake"
)

// Config configures the Snowflake source.
type Config struct {
	// Account is the Snowflake account identifier.
	Account string

	// User is the Snowflake username.
	User string

	// Password for basic auth.
	Password string

	// Database is the database whose tables populate the catalog.
	Database string

	// Warehouse is the compute warehouse used for harvest queries.
	Warehouse string

	// QueryTimeout bounds each harvest query.
	QueryTimeout time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{QueryTimeout: 5 * time.Minute}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Account == "" {
		return fmt.Errorf("snowflake: account is required")
	}
	if c.User == "" {
		return fmt.Errorf("snowflake: user is required")
	}
	if c.Password == "" {
		return fmt.Errorf("snowflake: password is required")
	}
	if c.Database == "" {
		return fmt.Errorf("snowflake: database is required")
	}
	if c.Warehouse == "" {
		return fmt.Errorf("snowflake: warehouse is required")
	}
	return nil
}

// Source implements warehouse.MetadataSource for Snowflake.
type Source struct {
	mu     sync.RWMutex
	config Config
	db     *sql.DB
	closed bool
}

// NewSource creates a Snowflake source.
func NewSource(config Config) (*Source, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = 5 * time.Minute
	}

	dsn := fmt.Sprintf("%s:%s@%s/%s?warehouse=%s",
		config.User, config.Password, config.Account, config.Database, config.Warehouse)
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("snowflake: open connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(10 * time.Minute)
	return &Source{config: config, db: db}, nil
}

// Name returns the source name.
func (s *Source) Name() string {
	return "snowflake"
}

// Jobs returns the finished SELECT queries started on the given day.
func (s *Source) Jobs(ctx context.Context, day time.Time) ([]models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("snowflake: source is closed")
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(queryCtx, `
		SELECT query_id, database_name, query_text, start_time,
		       bytes_scanned, total_elapsed_time
		FROM SNOWFLAKE.ACCOUNT_USAGE.QUERY_HISTORY
		WHERE query_type = 'SELECT'
		  AND execution_status = 'SUCCESS'
		  AND TO_DATE(start_time) = TO_DATE(?)
		ORDER BY start_time`,
		day.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("snowflake: read query history: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var (
			id, text     string
			database     sql.NullString
			started      time.Time
			bytesScanned sql.NullInt64
			elapsedMs    sql.NullInt64
		)
		if err := rows.Scan(&id, &database, &text, &started, &bytesScanned, &elapsedMs); err != nil {
			return nil, fmt.Errorf("snowflake: scan job row: %w", err)
		}
		jobs = append(jobs, models.Job{
			JobID:                id,
			ProjectID:            database.String,
			QueryText:            text,
			CreationTime:         started,
			ApproxBytesProcessed: bytesScanned.Int64,
			ApproxSlotMs:         elapsedMs.Int64,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snowflake: read query history: %w", err)
	}
	return jobs, nil
}

// Catalog builds a snapshot from INFORMATION_SCHEMA. Snowflake tables
// are micro-partitioned automatically, so no partition column is
// reported; the partition rules treat every table as unpartitioned and
// the size rules still apply.
func (s *Source) Catalog(ctx context.Context, minRows int64) (*catalog.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("snowflake: source is closed")
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(queryCtx, `
		SELECT t.table_schema, t.table_name, t.row_count,
		       c.column_name, c.data_type
		FROM information_schema.tables t
		JOIN information_schema.columns c
		  ON c.table_schema = t.table_schema AND c.table_name = t.table_name
		WHERE t.table_type = 'BASE TABLE'
		  AND t.row_count >= ?
		ORDER BY t.table_schema, t.table_name, c.ordinal_position`,
		minRows)
	if err != nil {
		return nil, fmt.Errorf("snowflake: read catalog: %w", err)
	}
	defer rows.Close()

	byName := make(map[string]*catalog.Entry)
	var order []string
	for rows.Next() {
		var (
			schema, table, column, dataType string
			rowCount                        sql.NullInt64
		)
		if err := rows.Scan(&schema, &table, &rowCount, &column, &dataType); err != nil {
			return nil, fmt.Errorf("snowflake: scan catalog row: %w", err)
		}
		qn := fmt.Sprintf("%s.%s.%s", s.config.Database, schema, table)
		entry, ok := byName[qn]
		if !ok {
			entry = &catalog.Entry{QualifiedName: qn, ApproxRowCount: rowCount.Int64}
			byName[qn] = entry
			order = append(order, qn)
		}
		entry.Columns = append(entry.Columns, column)
		switch strings.ToUpper(dataType) {
		case "DATE", "DATETIME", "TIMESTAMP_NTZ", "TIMESTAMP_LTZ", "TIMESTAMP_TZ":
			entry.DatetimeColumns = append(entry.DatetimeColumns, column)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snowflake: read catalog: %w", err)
	}

	entries := make([]catalog.Entry, 0, len(order))
	for _, qn := range order {
		entries = append(entries, *byName[qn])
	}
	return catalog.NewSnapshot(entries), nil
}

// Ping checks if Snowflake is reachable.
func (s *Source) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("snowflake: source is closed")
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("snowflake: ping failed: %w", err)
	}
	return nil
}

// Close releases the connection pool.
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
