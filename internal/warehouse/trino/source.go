// Package trino harvests job history and table metadata from a Trino
// cluster.
//
// Jobs come from the system.runtime.queries view, which only retains
// recent history; for older days use an event-listener sink exported to
// a file and the duckdb source instead. The catalog comes from the
// configured catalog's information_schema.
package trino

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

	// Registers the "trino" driver.
	_ "github.com/trinodb/trino-go-client/trino"
)

// Config configures the Trino source.
type Config struct {
	// Host is the Trino coordinator hostname.
	Host string

	// Port is the Trino coordinator port.
	Port int

	// User is the Trino user for harvest queries.
	User string

	// Catalog is the Trino catalog whose tables populate the snapshot.
	Catalog string

	// QueryTimeout bounds each harvest query.
	QueryTimeout time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Port:         8080,
		User:         "sqlgazer",
		QueryTimeout: 5 * time.Minute,
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("trino: host is required")
	}
	if c.Catalog == "" {
		return fmt.Errorf("trino: catalog is required")
	}
	return nil
}

// Source implements warehouse.MetadataSource for Trino.
type Source struct {
	mu     sync.RWMutex
	config Config
	db     *sql.DB
	closed bool
}

// NewSource creates a Trino source.
func NewSource(config Config) (*Source, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Port <= 0 {
		config.Port = 8080
	}
	if config.User == "" {
		config.User = "sqlgazer"
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = 5 * time.Minute
	}

	dsn := fmt.Sprintf("http://%s@%s:%d?catalog=%s",
		config.User, config.Host, config.Port, config.Catalog)
	db, err := sql.Open("trino", dsn)
	if err != nil {
		return nil, fmt.Errorf("trino: open connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	return &Source{config: config, db: db}, nil
}

// Name returns the source name.
func (s *Source) Name() string {
	return "trino"
}

// Jobs returns the finished SELECT queries created on the given day, as
// far back as the coordinator still remembers them.
func (s *Source) Jobs(ctx context.Context, day time.Time) ([]models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("trino: source is closed")
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(queryCtx, `
		SELECT query_id, user, query, created
		FROM system.runtime.queries
		WHERE state = 'FINISHED'
		  AND CAST(created AS DATE) = CAST(? AS DATE)
		ORDER BY created`,
		day.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("trino: read queries: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var (
			id, user, text string
			created        time.Time
		)
		if err := rows.Scan(&id, &user, &text, &created); err != nil {
			return nil, fmt.Errorf("trino: scan job row: %w", err)
		}
		head := strings.ToUpper(strings.TrimSpace(text))
		if !strings.HasPrefix(head, "SELECT") && !strings.HasPrefix(head, "WITH") {
			continue
		}
		jobs = append(jobs, models.Job{
			JobID:        id,
			ProjectID:    user,
			QueryText:    text,
			CreationTime: created,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trino: read queries: %w", err)
	}
	return jobs, nil
}

// Catalog builds a snapshot from the catalog's information_schema.
// Trino does not expose row counts there, so every entry reports an
// unknown row count of zero and the size-gated rules stay quiet unless
// the row-count threshold is zero. Pair this source with a catalog file
// when sizes matter.
func (s *Source) Catalog(ctx context.Context, minRows int64) (*catalog.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("trino: source is closed")
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(queryCtx, `
		SELECT table_schema, table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema NOT IN ('information_schema')
		ORDER BY table_schema, table_name, ordinal_position`)
	if err != nil {
		return nil, fmt.Errorf("trino: read catalog: %w", err)
	}
	defer rows.Close()

	byName := make(map[string]*catalog.Entry)
	var order []string
	for rows.Next() {
		var schema, table, column, dataType string
		if err := rows.Scan(&schema, &table, &column, &dataType); err != nil {
			return nil, fmt.Errorf("trino: scan catalog row: %w", err)
		}
		qn := fmt.Sprintf("%s.%s.%s", s.config.Catalog, schema, table)
		entry, ok := byName[qn]
		if !ok {
			entry = &catalog.Entry{QualifiedName: qn}
			byName[qn] = entry
			order = append(order, qn)
		}
		entry.Columns = append(entry.Columns, column)
		base := strings.ToLower(dataType)
		if base == "date" || strings.HasPrefix(base, "timestamp") {
			entry.DatetimeColumns = append(entry.DatetimeColumns, column)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trino: read catalog: %w", err)
	}

	// minRows cannot be applied without row counts; every table is kept
	// so column metadata still resolves.
	_ = minRows
	entries := make([]catalog.Entry, 0, len(order))
	for _, qn := range order {
		entries = append(entries, *byName[qn])
	}
	return catalog.NewSnapshot(entries), nil
}

// Ping checks if the coordinator is reachable.
func (s *Source) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("trino: source is closed")
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("trino: ping failed: %w", err)
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
