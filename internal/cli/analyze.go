package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gazer-labs/sqlgazer/internal/analysis"
	"github.com/gazer-labs/sqlgazer/internal/analysis/rules"
	"github.com/gazer-labs/sqlgazer/internal/catalog"
	gerrors "github.com/gazer-labs/sqlgazer/internal/errors"
	"github.com/gazer-labs/sqlgazer/internal/observability"
	"github.com/gazer-labs/sqlgazer/internal/runner"
	"github.com/gazer-labs/sqlgazer/internal/warehouse"
	"github.com/gazer-labs/sqlgazer/pkg/models"
)

func (c *CLI) newAnalyzeCmd() *cobra.Command {
	var (
		day       string
		queryText string
		queryFile string
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Harvest a day of jobs and evaluate the antipattern rules",
		Long: `Harvest the configured source's job history for one day, evaluate
every enabled rule against each job, and write findings to the sink.

With --query or --file, a single statement is analyzed directly against
the catalog and no job history is harvested.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if queryText != "" || queryFile != "" {
				return c.runAnalyzeQuery(cmd.Context(), queryText, queryFile)
			}
			return c.runAnalyzeDay(cmd.Context(), day)
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "day to harvest, YYYY-MM-DD (default: yesterday)")
	cmd.Flags().StringVar(&queryText, "query", "", "analyze this SQL text instead of harvesting")
	cmd.Flags().StringVar(&queryFile, "file", "", "analyze the SQL in this file instead of harvesting")
	return cmd
}

func (c *CLI) newAnalyzer(ctx context.Context, src warehouse.MetadataSource) (*analysis.Analyzer, error) {
	snap, err := c.loadCatalog(ctx, src)
	if err != nil {
		return nil, err
	}
	return analysis.New(analysis.Options{
		Dialect: c.cfg.Analysis.Dialect,
		Catalog: snap,
		Thresholds: rules.Thresholds{
			LargeTableRowCount:       c.cfg.Rules.LargeTableRowCount,
			DistinctFunctionRowCount: c.cfg.Rules.DistinctFunctionRowCount,
		},
		Enabled: c.cfg.Rules.RuleEnabled,
	})
}

// loadCatalog prefers a catalog file when configured; otherwise the
// snapshot is harvested from the source. No source and no file means an
// empty catalog, which only mutes the size-gated rules.
func (c *CLI) loadCatalog(ctx context.Context, src warehouse.MetadataSource) (*catalog.Snapshot, error) {
	if c.cfg.Source.CatalogFile != "" {
		snap, err := catalog.LoadFile(c.cfg.Source.CatalogFile)
		if err != nil {
			return nil, gerrors.NewSourceFailure("catalog_file", "catalog file could not be loaded", err)
		}
		return snap, nil
	}
	if src == nil {
		return catalog.NewSnapshot(nil), nil
	}
	snap, err := src.Catalog(ctx, c.cfg.Source.MinRowCount)
	if err != nil {
		return nil, gerrors.NewSourceFailure(src.Name(), "catalog harvest failed", err)
	}
	return snap, nil
}

// runAnalyzeQuery analyzes one statement supplied on the command line.
func (c *CLI) runAnalyzeQuery(ctx context.Context, queryText, queryFile string) error {
	if queryFile != "" {
		data, err := os.ReadFile(queryFile)
		if err != nil {
			return fmt.Errorf("read query file: %w", err)
		}
		queryText = string(data)
	}

	analyzer, err := c.newAnalyzer(ctx, nil)
	if err != nil {
		return err
	}
	f := analyzer.AnalyzeJob(models.Job{
		JobID:        "adhoc",
		QueryText:    queryText,
		CreationTime: time.Now().UTC(),
	})
	return c.outputJSON(f)
}

// runAnalyzeDay harvests one day of jobs and analyzes the batch.
func (c *CLI) runAnalyzeDay(ctx context.Context, dayFlag string) error {
	day := time.Now().UTC().AddDate(0, 0, -1)
	if dayFlag != "" {
		var err error
		day, err = time.Parse("2006-01-02", dayFlag)
		if err != nil {
			return gerrors.NewConfigInvalid("day", "must be YYYY-MM-DD")
		}
	}

	src, err := c.openSource(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	sink, err := c.openSink(ctx)
	if err != nil {
		return err
	}
	if sink != nil {
		defer sink.Close()
		if err := sink.CheckConnectivity(ctx); err != nil {
			return err
		}
	}

	analyzer, err := c.newAnalyzer(ctx, src)
	if err != nil {
		return err
	}

	jobs, err := src.Jobs(ctx, day)
	if err != nil {
		return gerrors.NewSourceFailure(src.Name(), "job harvest failed", err)
	}
	if max := c.cfg.Analysis.MaxJobs; max > 0 && len(jobs) > max {
		jobs = jobs[:max]
	}
	c.printf("analyzing %d jobs from %s for %s\n", len(jobs), src.Name(), day.Format("2006-01-02"))

	var logger observability.AnalysisLogger = observability.NewNoopLogger()
	if !c.quiet && c.cfg.Logging.Format == "json" {
		logger = observability.NewJSONLogger(os.Stderr)
	}

	started := time.Now().UTC()
	results := runner.New(analyzer, logger, c.cfg.Analysis.Workers).Run(ctx, jobs)
	findings := make([]*models.JobFindings, 0, len(results))
	for _, f := range results {
		if f != nil {
			findings = append(findings, f)
		}
	}

	if sink != nil {
		run := models.RunInfo{
			RunID:       uuid.NewString(),
			Source:      src.Name(),
			Day:         day,
			StartedAt:   started,
			CompletedAt: time.Now().UTC(),
			JobCount:    len(findings),
		}
		if err := sink.SaveRun(ctx, run); err != nil {
			return err
		}
		if err := sink.SaveFindings(ctx, run.RunID, findings); err != nil {
			return err
		}
		c.printf("run %s: %d findings saved\n", run.RunID, len(findings))
	}

	if c.jsonOutput {
		return c.outputJSON(findings)
	}
	c.printRunSummary(logger.Summary())
	return nil
}

func (c *CLI) printRunSummary(summary *observability.RunSummary) {
	if summary == nil {
		return
	}
	c.printf("jobs analyzed: %d, parse failures: %d\n",
		summary.JobsAnalyzed, summary.ParseFailures)
	for _, rule := range rules.All() {
		if n := summary.FlagCounts[rule.Name]; n > 0 {
			c.printf("  %-32s %d\n", rule.Name, n)
		}
	}
	for _, stat := range summary.ErrorCounts {
		c.printf("  rule %s faulted on %d jobs\n", stat.Rule, stat.Count)
	}
}
