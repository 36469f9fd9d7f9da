package runner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gazer-labs/sqlgazer/internal/analysis"
	"github.com/gazer-labs/sqlgazer/internal/observability"
	"github.com/gazer-labs/sqlgazer/pkg/models"
)

func newTestAnalyzer(t *testing.T) *analysis.Analyzer {
	t.Helper()
	a, err := analysis.New(analysis.Options{
		Dialect: "ansi",
		Now:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("analysis.New: %v", err)
	}
	return a
}

func makeJobs(n int) []models.Job {
	jobs := make([]models.Job, n)
	for i := range jobs {
		sql := fmt.Sprintf("SELECT c%d FROM t%d", i, i)
		if i%2 == 0 {
			sql = fmt.Sprintf("SELECT * FROM t%d", i)
		}
		jobs[i] = models.Job{
			JobID:     fmt.Sprintf("job-%03d", i),
			ProjectID: "proj",
			QueryText: sql,
		}
	}
	return jobs
}

// recordingLogger captures entries for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []observability.AnalysisLogEntry
}

func (l *recordingLogger) LogAnalysis(ctx context.Context, entry observability.AnalysisLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

func (l *recordingLogger) Summary() *observability.RunSummary {
	return &observability.RunSummary{}
}

func TestRunPreservesInputOrder(t *testing.T) {
	jobs := makeJobs(50)
	r := New(newTestAnalyzer(t), nil, 8)

	results := r.Run(context.Background(), jobs)
	if len(results) != len(jobs) {
		t.Fatalf("got %d results for %d jobs", len(results), len(jobs))
	}
	for i, f := range results {
		if f == nil {
			t.Fatalf("result %d is nil", i)
		}
		if f.JobID != jobs[i].JobID {
			t.Errorf("result %d has JobID %q, want %q", i, f.JobID, jobs[i].JobID)
		}
		if wantStar := i%2 == 0; f.SelectStar != wantStar {
			t.Errorf("job %d: SelectStar = %v, want %v", i, f.SelectStar, wantStar)
		}
	}
}

func TestRunLogsEveryJob(t *testing.T) {
	jobs := makeJobs(10)
	logger := &recordingLogger{}
	r := New(newTestAnalyzer(t), logger, 4)

	r.Run(context.Background(), jobs)

	if len(logger.entries) != len(jobs) {
		t.Fatalf("logged %d entries for %d jobs", len(logger.entries), len(jobs))
	}
	seen := make(map[string]bool)
	for _, e := range logger.entries {
		if e.JobID == "" {
			t.Error("log entry missing job id")
		}
		seen[e.JobID] = true
	}
	if len(seen) != len(jobs) {
		t.Errorf("logged %d distinct jobs, want %d", len(seen), len(jobs))
	}
}

func TestRunClampsWorkerCount(t *testing.T) {
	jobs := makeJobs(3)
	r := New(newTestAnalyzer(t), nil, 0)

	results := r.Run(context.Background(), jobs)
	for i, f := range results {
		if f == nil {
			t.Fatalf("result %d is nil with clamped worker count", i)
		}
	}
}

func TestRunCancelledContextStopsDispatch(t *testing.T) {
	jobs := makeJobs(100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(newTestAnalyzer(t), nil, 2)

	results := r.Run(ctx, jobs)
	if len(results) != len(jobs) {
		t.Fatalf("got %d results for %d jobs", len(results), len(jobs))
	}
	var analyzed int
	for _, f := range results {
		if f != nil {
			analyzed++
		}
	}
	if analyzed == len(jobs) {
		t.Error("a pre-cancelled context should leave most jobs unanalyzed")
	}
}

func TestRunEmptyBatch(t *testing.T) {
	r := New(newTestAnalyzer(t), nil, 4)
	results := r.Run(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("empty batch should yield no results, got %d", len(results))
	}
}
