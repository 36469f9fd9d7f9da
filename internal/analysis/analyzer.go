// Package analysis orchestrates the per-job pipeline: parse the script,
// resolve table references, flatten predicates, build the CTE graph,
// evaluate every rule, and fold the statement results into one findings
// record.
package analysis

import (
	"fmt"
	"time"

	"github.com/gazer-labs/sqlgazer/internal/analysis/cte"
	"github.com/gazer-labs/sqlgazer/internal/analysis/findings"
	"github.com/gazer-labs/sqlgazer/internal/analysis/predicate"
	"github.com/gazer-labs/sqlgazer/internal/analysis/rules"
	"github.com/gazer-labs/sqlgazer/internal/analysis/tableref"
	"github.com/gazer-labs/sqlgazer/internal/catalog"
	gerrors "github.com/gazer-labs/sqlgazer/internal/errors"
	"github.com/gazer-labs/sqlgazer/internal/sqlparse"
	"github.com/gazer-labs/sqlgazer/pkg/models"
)

// Options configure an Analyzer.
type Options struct {
	// Dialect names the SQL dialect jobs were written in.
	Dialect string

	// Catalog is the table metadata snapshot. May be empty, never nil
	// after New.
	Catalog *catalog.Snapshot

	// Thresholds are the row-count parameters for the size-sensitive
	// rules. Zero values are legal and flag every known table.
	Thresholds rules.Thresholds

	// Enabled filters rules by name. Nil enables every rule.
	Enabled func(name string) bool

	// Now is the reference instant for relative date expressions such as
	// CURRENT_DATE(). Zero means time.Now at construction; pinning it
	// makes a whole run reproducible.
	Now time.Time
}

// Analyzer evaluates jobs against the rule set. It is immutable after
// construction and safe for concurrent use.
type Analyzer struct {
	parser     *sqlparse.Parser
	catalog    *catalog.Snapshot
	thresholds rules.Thresholds
	enabled    func(name string) bool
	now        time.Time
}

// New creates an Analyzer.
func New(opts Options) (*Analyzer, error) {
	p, err := sqlparse.NewParser(opts.Dialect)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	snap := opts.Catalog
	if snap == nil {
		snap = catalog.NewSnapshot(nil)
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return &Analyzer{
		parser:     p,
		catalog:    snap,
		thresholds: opts.Thresholds,
		enabled:    opts.Enabled,
		now:        now,
	}, nil
}

// AnalyzeJob evaluates one job and always returns a findings record.
// A script that cannot be parsed or resolved yields an unanalyzed record
// with the failure message; it never aborts the batch.
func (a *Analyzer) AnalyzeJob(job models.Job) *models.JobFindings {
	stmts, err := a.parser.ParseScript(job.QueryText)
	if err != nil {
		return findings.Unanalyzed(job, gerrors.NewParseFailure(job.JobID, err))
	}

	var (
		tables     []string
		resultSets = make([][]rules.Result, 0, len(stmts))
	)
	for _, stmt := range stmts {
		res, err := tableref.Resolve(stmt.Tree)
		if err != nil {
			return findings.Unanalyzed(job,
				gerrors.NewParseFailure(job.JobID, fmt.Errorf("statement %d: %w", stmt.Index+1, err)))
		}
		in := &rules.Input{
			Tree:       stmt.Tree,
			Tables:     res,
			Predicates: predicate.Extract(stmt.Tree, res, a.now),
			CTEs:       cte.Build(stmt.Tree),
			Catalog:    a.catalog,
			Thresholds: a.thresholds,
		}
		resultSets = append(resultSets, rules.Evaluate(in, a.enabled))
		tables = mergeTables(tables, res.BaseTables())
	}
	return findings.Aggregate(job, tables, len(stmts), resultSets)
}

func mergeTables(have, add []string) []string {
	seen := make(map[string]bool, len(have))
	for _, t := range have {
		seen[t] = true
	}
	for _, t := range add {
		if !seen[t] {
			seen[t] = true
			have = append(have, t)
		}
	}
	return have
}
