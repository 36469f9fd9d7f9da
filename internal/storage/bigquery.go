package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	gerrors "github.com/gazer-labs/sqlgazer/internal/errors"
	"github.com/gazer-labs/sqlgazer/pkg/models"
)

// BigQueryRepository implements FindingsRepository on a BigQuery
// dataset, so findings land next to the warehouse they were harvested
// from. The findings table is day-partitioned on creation_time.
type BigQueryRepository struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewBigQueryRepository creates a BigQuery sink and ensures its tables.
func NewBigQueryRepository(ctx context.Context, client *bigquery.Client, dataset, table string) (*BigQueryRepository, error) {
	r := &BigQueryRepository{client: client, dataset: dataset, table: table}
	if err := r.ensureTables(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

type findingRow struct {
	RunID        string    `bigquery:"run_id"`
	JobID        string    `bigquery:"job_id"`
	ProjectID    string    `bigquery:"project_id"`
	CreationTime time.Time `bigquery:"creation_time"`
	Analyzed     bool      `bigquery:"analyzed"`
	FlaggedRules string    `bigquery:"flagged_rules"`
	Record       string    `bigquery:"record"`
}

type runRow struct {
	RunID       string    `bigquery:"run_id"`
	Source      string    `bigquery:"source"`
	Day         string    `bigquery:"day"`
	StartedAt   time.Time `bigquery:"started_at"`
	CompletedAt time.Time `bigquery:"completed_at"`
	JobCount    int64     `bigquery:"job_count"`
}

func (r *BigQueryRepository) runsTable() string {
	return r.table + "_runs"
}

func (r *BigQueryRepository) ensureTables(ctx context.Context) error {
	findingsSchema, err := bigquery.InferSchema(findingRow{})
	if err != nil {
		return gerrors.NewSinkFailure("bigquery", err)
	}
	ds := r.client.Dataset(r.dataset)
	err = ds.Table(r.table).Create(ctx, &bigquery.TableMetadata{
		Schema: findingsSchema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "creation_time",
		},
	})
	if err != nil && !alreadyExists(err) {
		return gerrors.NewSinkFailure("bigquery", fmt.Errorf("create table %s: %w", r.table, err))
	}

	runsSchema, err := bigquery.InferSchema(runRow{})
	if err != nil {
		return gerrors.NewSinkFailure("bigquery", err)
	}
	err = ds.Table(r.runsTable()).Create(ctx, &bigquery.TableMetadata{Schema: runsSchema})
	if err != nil && !alreadyExists(err) {
		return gerrors.NewSinkFailure("bigquery", fmt.Errorf("create table %s: %w", r.runsTable(), err))
	}
	return nil
}

func alreadyExists(err error) bool {
	if apiErr, ok := err.(*googleapi.Error); ok {
		return apiErr.Code == 409
	}
	return false
}

// SaveRun records the run.
func (r *BigQueryRepository) SaveRun(ctx context.Context, run models.RunInfo) error {
	ins := r.client.Dataset(r.dataset).Table(r.runsTable()).Inserter()
	err := ins.Put(ctx, runRow{
		RunID:       run.RunID,
		Source:      run.Source,
		Day:         run.Day.Format("2006-01-02"),
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		JobCount:    int64(run.JobCount),
	})
	if err != nil {
		return gerrors.NewSinkFailure("bigquery", fmt.Errorf("save run %s: %w", run.RunID, err))
	}
	return nil
}

// SaveFindings streams the findings of a run. Streaming inserts append
// rather than replace, so re-running a day into BigQuery should use a
// fresh run ID.
func (r *BigQueryRepository) SaveFindings(ctx context.Context, runID string, findings []*models.JobFindings) error {
	rows := make([]findingRow, 0, len(findings))
	for _, f := range findings {
		record, err := json.Marshal(f)
		if err != nil {
			return gerrors.NewSinkFailure("bigquery", fmt.Errorf("encode job %s: %w", f.JobID, err))
		}
		rows = append(rows, findingRow{
			RunID:        runID,
			JobID:        f.JobID,
			ProjectID:    f.ProjectID,
			CreationTime: f.CreationTime,
			Analyzed:     f.Analyzed,
			FlaggedRules: strings.Join(f.FlaggedRules(), ","),
			Record:       string(record),
		})
	}
	ins := r.client.Dataset(r.dataset).Table(r.table).Inserter()
	if err := ins.Put(ctx, rows); err != nil {
		return gerrors.NewSinkFailure("bigquery", fmt.Errorf("save findings: %w", err))
	}
	return nil
}

// Summary counts flagged jobs per rule for one run.
func (r *BigQueryRepository) Summary(ctx context.Context, runID string) (map[string]int, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT rule, COUNT(*) AS jobs
		FROM `+"`%s.%s`"+`, UNNEST(SPLIT(flagged_rules, ',')) AS rule
		WHERE run_id = @run_id AND flagged_rules != ''
		GROUP BY rule`, r.dataset, r.table))
	q.Parameters = []bigquery.QueryParameter{{Name: "run_id", Value: runID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, gerrors.NewSinkFailure("bigquery", fmt.Errorf("summary for run %s: %w", runID, err))
	}
	counts := make(map[string]int)
	for {
		var row struct {
			Rule string `bigquery:"rule"`
			Jobs int64  `bigquery:"jobs"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, gerrors.NewSinkFailure("bigquery", fmt.Errorf("scan summary row: %w", err))
		}
		counts[row.Rule] = int(row.Jobs)
	}
	return counts, nil
}

// CheckConnectivity verifies the dataset is reachable.
func (r *BigQueryRepository) CheckConnectivity(ctx context.Context) error {
	if _, err := r.client.Dataset(r.dataset).Metadata(ctx); err != nil {
		return gerrors.NewSinkFailure("bigquery", err)
	}
	return nil
}

// Close releases the client.
func (r *BigQueryRepository) Close() error {
	return r.client.Close()
}

var _ FindingsRepository = (*BigQueryRepository)(nil)
