package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gazer-labs/sqlgazer/pkg/models"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "findings.db")
	repo, err := NewSQLiteRepository(context.Background(), path)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testRun(runID string) models.RunInfo {
	day := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	return models.RunInfo{
		RunID:       runID,
		Source:      "duckdb",
		Day:         day,
		StartedAt:   day.Add(8 * time.Hour),
		CompletedAt: day.Add(8*time.Hour + 3*time.Minute),
		JobCount:    2,
	}
}

func testFindings() []*models.JobFindings {
	ts := time.Date(2024, 3, 14, 7, 0, 0, 0, time.UTC)
	return []*models.JobFindings{
		{
			JobID:        "job-1",
			ProjectID:    "proj",
			CreationTime: ts,
			Analyzed:     true,
			Statements:   1,
			Tables:       []string{"proj.ds.t"},
			SelectStar:   true,
			BigDateRange: true,
			BigDateRangeColumns: []models.DateRangeHint{
				{Column: "dt", SpanDays: 900},
			},
		},
		{
			JobID:        "job-2",
			ProjectID:    "proj",
			CreationTime: ts,
			Analyzed:     true,
			Statements:   1,
			Tables:       []string{"proj.ds.u"},
			SelectStar:   true,
		},
		{
			JobID:        "job-3",
			ProjectID:    "proj",
			CreationTime: ts,
			Analyzed:     false,
			ParseError:   "syntax error",
			Tables:       []string{},
		},
	}
}

func TestSQLiteSaveAndSummarize(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CheckConnectivity(ctx); err != nil {
		t.Fatalf("CheckConnectivity: %v", err)
	}
	if err := repo.SaveRun(ctx, testRun("run-1")); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := repo.SaveFindings(ctx, "run-1", testFindings()); err != nil {
		t.Fatalf("SaveFindings: %v", err)
	}

	counts, err := repo.Summary(ctx, "run-1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if counts["select_star"] != 2 {
		t.Errorf("select_star count = %d, want 2", counts["select_star"])
	}
	if counts["big_date_range"] != 1 {
		t.Errorf("big_date_range count = %d, want 1", counts["big_date_range"])
	}
	if _, ok := counts["order_without_limit"]; ok {
		t.Error("rules never flagged must not appear in the summary")
	}
}

func TestSQLiteSummaryScopedToRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveRun(ctx, testRun("run-1")); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := repo.SaveFindings(ctx, "run-1", testFindings()); err != nil {
		t.Fatalf("SaveFindings: %v", err)
	}

	counts, err := repo.Summary(ctx, "run-other")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(counts) != 0 {
		t.Errorf("other run should have no counts, got %v", counts)
	}
}

func TestSQLiteReRunOverwritesFindings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveRun(ctx, testRun("run-1")); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := repo.SaveFindings(ctx, "run-1", testFindings()); err != nil {
		t.Fatalf("first SaveFindings: %v", err)
	}

	// Same run and jobs again: the record is replaced, not duplicated.
	updated := testFindings()
	updated[1].SelectStar = false
	if err := repo.SaveFindings(ctx, "run-1", updated); err != nil {
		t.Fatalf("second SaveFindings: %v", err)
	}

	counts, err := repo.Summary(ctx, "run-1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if counts["select_star"] != 1 {
		t.Errorf("select_star count = %d after overwrite, want 1", counts["select_star"])
	}
}

func TestSQLiteSaveRunUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	run := testRun("run-1")
	if err := repo.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	run.JobCount = 99
	if err := repo.SaveRun(ctx, run); err != nil {
		t.Errorf("re-saving the same run must not conflict: %v", err)
	}
}

func TestSQLiteEmptyFindingsBatch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveFindings(ctx, "run-1", nil); err != nil {
		t.Errorf("an empty batch is not an error: %v", err)
	}
}
