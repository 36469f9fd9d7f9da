// Package runner fans a batch of jobs out over a fixed worker pool.
//
// Each worker analyzes jobs independently against the shared read-only
// catalog; one pathological query never blocks or corrupts the rest of
// the batch. Results come back in input order regardless of which
// worker finished first.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/gazer-labs/sqlgazer/internal/analysis"
	"github.com/gazer-labs/sqlgazer/internal/observability"
	"github.com/gazer-labs/sqlgazer/pkg/models"
)

// Runner executes analysis over a job batch.
type Runner struct {
	analyzer *analysis.Analyzer
	logger   observability.AnalysisLogger
	workers  int
}

// New creates a Runner. workers below 1 is clamped to 1.
func New(analyzer *analysis.Analyzer, logger observability.AnalysisLogger, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Runner{analyzer: analyzer, logger: logger, workers: workers}
}

// Run analyzes every job and returns one findings record per job, in
// input order. A cancelled context stops dispatching new jobs; records
// for jobs never analyzed are nil.
func (r *Runner) Run(ctx context.Context, jobs []models.Job) []*models.JobFindings {
	results := make([]*models.JobFindings, len(jobs))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = r.analyzeOne(ctx, jobs[i])
			}
		}()
	}

	for i := range jobs {
		select {
		case <-ctx.Done():
			close(indexes)
			wg.Wait()
			return results
		case indexes <- i:
		}
	}
	close(indexes)
	wg.Wait()
	return results
}

func (r *Runner) analyzeOne(ctx context.Context, job models.Job) *models.JobFindings {
	start := time.Now()
	f := r.analyzer.AnalyzeJob(job)

	entry := observability.AnalysisLogEntry{
		JobID:        f.JobID,
		Project:      f.ProjectID,
		Tables:       f.Tables,
		Statements:   f.Statements,
		FlaggedRules: f.FlaggedRules(),
		ParseError:   f.ParseError,
		Duration:     time.Since(start),
	}
	if len(f.RuleErrors) > 0 {
		entry.RuleErrors = make(map[string]string, len(f.RuleErrors))
		for _, re := range f.RuleErrors {
			entry.RuleErrors[re.Rule] = re.Message
		}
	}
	// A logging failure must not lose the findings.
	_ = r.logger.LogAnalysis(ctx, entry)
	return f
}
