// Package bigquery harvests job history and table metadata from Google
// BigQuery.
//
// Jobs come from the region's INFORMATION_SCHEMA.JOBS view; the catalog
// comes from the dataset's TABLE_STORAGE and COLUMNS views.
package bigquery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/gazer-labs/sqlgazer/internal/catalog"
	"github.com/gazer-labs/sqlgazer/internal/warehouse"
	"github.com/gazer-labs/sqlgazer/pkg/models"
)

// Config configures the BigQuery source.
type Config struct {
	// Project is the GCP project whose job history is harvested.
	Project string

	// Region is the BigQuery region of the JOBS view, e.g. "us" or
	// "europe-west1".
	Region string

	// Dataset is the dataset whose tables populate the catalog.
	Dataset string

	// CredentialsFile is a service account key path. Empty means
	// Application Default Credentials.
	CredentialsFile string

	// QueryTimeout bounds each harvest query.
	QueryTimeout time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Region:       "us",
		QueryTimeout: 5 * time.Minute,
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Project == "" {
		return fmt.Errorf("bigquery: project is required")
	}
	if c.Dataset == "" {
		return fmt.Errorf("bigquery: dataset is required")
	}
	return nil
}

// Source implements warehouse.MetadataSource for BigQuery.
type Source struct {
	mu     sync.RWMutex
	config Config
	client *bigquery.Client
	closed bool
}

// NewSource creates a BigQuery source.
func NewSource(ctx context.Context, config Config) (*Source, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = 5 * time.Minute
	}

	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}
	client, err := bigquery.NewClient(ctx, config.Project, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery: create client: %w", err)
	}
	return &Source{config: config, client: client}, nil
}

// Name returns the source name.
func (s *Source) Name() string {
	return "bigquery"
}

// jobRow mirrors the columns selected from INFORMATION_SCHEMA.JOBS.
type jobRow struct {
	JobID          string              `bigquery:"job_id"`
	ProjectID      string              `bigquery:"project_id"`
	Query          string              `bigquery:"query"`
	CreationTime   time.Time           `bigquery:"creation_time"`
	BytesProcessed bigquery.NullInt64  `bigquery:"total_bytes_processed"`
	SlotMs         bigquery.NullInt64  `bigquery:"total_slot_ms"`
}

// Jobs returns the finished SELECT jobs created on the given day.
// Failed jobs and non-query jobs carry no antipattern signal and are
// filtered at the source.
func (s *Source) Jobs(ctx context.Context, day time.Time) ([]models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("bigquery: source is closed")
	}

	q := s.client.Query(fmt.Sprintf(`
		SELECT job_id, project_id, query, creation_time,
		       total_bytes_processed, total_slot_ms
		FROM `+"`region-%s`"+`.INFORMATION_SCHEMA.JOBS
		WHERE job_type = 'QUERY'
		  AND state = 'DONE'
		  AND error_result IS NULL
		  AND DATE(creation_time) = DATE(@day)
		ORDER BY creation_time`, s.config.Region))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "day", Value: day.Format("2006-01-02")},
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()
	it, err := q.Read(queryCtx)
	if err != nil {
		return nil, fmt.Errorf("bigquery: read jobs: %w", err)
	}

	var jobs []models.Job
	for {
		var row jobRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bigquery: scan job row: %w", err)
		}
		jobs = append(jobs, models.Job{
			JobID:                row.JobID,
			ProjectID:            row.ProjectID,
			QueryText:            row.Query,
			CreationTime:         row.CreationTime,
			ApproxBytesProcessed: row.BytesProcessed.Int64,
			ApproxSlotMs:         row.SlotMs.Int64,
		})
	}
	return jobs, nil
}

type storageRow struct {
	TableName string             `bigquery:"table_name"`
	RowCount  bigquery.NullInt64 `bigquery:"total_rows"`
}

type columnRow struct {
	TableName    string `bigquery:"table_name"`
	ColumnName   string `bigquery:"column_name"`
	DataType     string `bigquery:"data_type"`
	Partitioning string `bigquery:"is_partitioning_column"`
}

// Catalog builds a snapshot from the dataset's storage and column
// metadata. Entries are keyed project.dataset.table so partially
// qualified references in job SQL still resolve.
func (s *Source) Catalog(ctx context.Context, minRows int64) (*catalog.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("bigquery: source is closed")
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	rows := make(map[string]*catalog.Entry)
	order := make([]string, 0)

	sq := s.client.Query(fmt.Sprintf(`
		SELECT table_name, total_rows
		FROM `+"`%s.%s`"+`.INFORMATION_SCHEMA.TABLE_STORAGE
		WHERE total_rows >= @min_rows
		ORDER BY table_name`, s.config.Project, s.config.Dataset))
	sq.Parameters = []bigquery.QueryParameter{{Name: "min_rows", Value: minRows}}
	it, err := sq.Read(queryCtx)
	if err != nil {
		return nil, fmt.Errorf("bigquery: read table storage: %w", err)
	}
	for {
		var row storageRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bigquery: scan storage row: %w", err)
		}
		qn := fmt.Sprintf("%s.%s.%s", s.config.Project, s.config.Dataset, row.TableName)
		rows[row.TableName] = &catalog.Entry{
			QualifiedName:  qn,
			ApproxRowCount: row.RowCount.Int64,
		}
		order = append(order, row.TableName)
	}

	cq := s.client.Query(fmt.Sprintf(`
		SELECT table_name, column_name, data_type, is_partitioning_column
		FROM `+"`%s.%s`"+`.INFORMATION_SCHEMA.COLUMNS
		ORDER BY table_name, ordinal_position`, s.config.Project, s.config.Dataset))
	it, err = cq.Read(queryCtx)
	if err != nil {
		return nil, fmt.Errorf("bigquery: read columns: %w", err)
	}
	for {
		var row columnRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bigquery: scan column row: %w", err)
		}
		entry, ok := rows[row.TableName]
		if !ok {
			continue
		}
		entry.Columns = append(entry.Columns, row.ColumnName)
		switch row.DataType {
		case "DATE", "DATETIME", "TIMESTAMP":
			entry.DatetimeColumns = append(entry.DatetimeColumns, row.ColumnName)
		}
		if row.Partitioning == "YES" {
			entry.PartitionColumn = row.ColumnName
		}
	}

	entries := make([]catalog.Entry, 0, len(order))
	for _, name := range order {
		entries = append(entries, *rows[name])
	}
	return catalog.NewSnapshot(entries), nil
}

// Ping checks if BigQuery is reachable.
func (s *Source) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("bigquery: source is closed")
	}
	q := s.client.Query("SELECT 1")
	_, err := q.Read(ctx)
	if err != nil {
		return fmt.Errorf("bigquery: ping failed: %w", err)
	}
	return nil
}

// Close releases the client.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

var _ warehouse.MetadataSource = (*Source)(nil)
