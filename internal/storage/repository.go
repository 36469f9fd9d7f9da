// Package storage persists analysis runs and per-job findings.
//
// A run is one harvest-and-analyze pass over one day of jobs. Findings
// are stored with their full record as JSON next to the columns reports
// filter on, so downstream dashboards never re-run the analysis.
package storage

import (
	"context"

	"github.com/gazer-labs/sqlgazer/pkg/models"
)

// FindingsRepository is the interface all findings sinks implement.
// Implementations must be thread-safe, context-aware, and explicit
// about errors.
type FindingsRepository interface {
	// SaveRun records the run itself. Called once per run, before the
	// findings are written.
	SaveRun(ctx context.Context, run models.RunInfo) error

	// SaveFindings writes the findings of a run. Re-writing the same
	// run and job overwrites the previous record.
	SaveFindings(ctx context.Context, runID string, findings []*models.JobFindings) error

	// Summary returns, for one run, how many jobs flagged each rule.
	// Rules no job flagged are absent from the map.
	Summary(ctx context.Context, runID string) (map[string]int, error)

	// CheckConnectivity verifies the sink is reachable. Called at
	// startup so a misconfigured sink fails before any harvesting.
	CheckConnectivity(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
