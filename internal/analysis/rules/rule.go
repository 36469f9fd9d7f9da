// Package rules holds the twelve antipattern detectors and the engine
// that evaluates them.
//
// Each rule is a pure function over the parsed tree, the resolved table
// references, the flattened predicates, the CTE reference graph, and the
// catalog snapshot. Rules never perform I/O and never observe each
// other's output. A rule file registers itself in init(); evaluation
// order is name order and is irrelevant to the result.
package rules

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/parser"

	"github.com/gazer-labs/sqlgazer/internal/analysis/cte"
	"github.com/gazer-labs/sqlgazer/internal/analysis/predicate"
	"github.com/gazer-labs/sqlgazer/internal/analysis/tableref"
	"github.com/gazer-labs/sqlgazer/internal/catalog"
	"github.com/gazer-labs/sqlgazer/pkg/models"
)

// BigDateRangeDays is the fixed day boundary for big_date_range.
// The comparison is strict: a span of exactly 365 days does not flag.
const BigDateRangeDays = 365

// Thresholds are the tunable row-count parameters, passed explicitly so
// rule evaluation has no ambient configuration state. Row-count
// comparisons use >=.
type Thresholds struct {
	LargeTableRowCount       int64
	DistinctFunctionRowCount int64
}

// Input is everything one rule may consume for one statement. All fields
// are read-only during evaluation.
type Input struct {
	Tree       *parser.SelectStmt
	Tables     *tableref.Resolution
	Predicates *predicate.Extraction
	CTEs       *cte.Graph
	Catalog    *catalog.Snapshot
	Thresholds Thresholds
}

// Result is one rule's verdict plus its helper payload. Exactly one of
// the helper slices is populated per rule; Err is set when the evaluator
// faulted, in which case Flagged is meaningless.
type Result struct {
	Rule    string
	Flagged bool

	Partitions []models.PartitionHint
	DateRanges []models.DateRangeHint
	Tables     []string
	CTEs       []models.CTEHint
	Pairs      []models.PredicatePair
	Columns    []string

	Err error
}

// Rule is one registered detector.
type Rule struct {
	Name        string
	Description string
	Check       func(in *Input) Result
}

var registry = make(map[string]Rule)

// Register adds a rule to the registry. Called from init() in the rule
// files; a duplicate name is a programming error.
func Register(r Rule) {
	if r.Name == "" || r.Check == nil {
		panic("rules: Register requires a name and a check function")
	}
	if _, dup := registry[r.Name]; dup {
		panic("rules: duplicate rule " + r.Name)
	}
	registry[r.Name] = r
}

// All returns every registered rule sorted by name.
func All() []Rule {
	out := make([]Rule, 0, len(registry))
	for _, r := range registry {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns a rule by name.
func Get(name string) (Rule, bool) {
	r, ok := registry[name]
	return r, ok
}

// tableFact pairs a referenced base table with its catalog entry.
// A nil entry means the table is unknown to the catalog; rules treat
// that as "cannot determine", never as an error.
type tableFact struct {
	name  string
	entry *catalog.Entry
}

// baseTableFacts returns the statement's distinct base tables with their
// catalog entries, in name order.
func baseTableFacts(in *Input) []tableFact {
	if in.Tables == nil {
		return nil
	}
	names := in.Tables.BaseTables()
	facts := make([]tableFact, 0, len(names))
	for _, name := range names {
		facts = append(facts, tableFact{name: name, entry: in.Catalog.Lookup(name)})
	}
	return facts
}

// sameTable reports whether two dotted table names refer to the same
// table, allowing one side to carry fewer qualifiers.
func sameTable(a, b string) bool {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return true
	}
	return strings.HasSuffix(a, "."+b) || strings.HasSuffix(b, "."+a)
}
