package rules

import (
	"github.com/gazer-labs/sqlgazer/internal/sqlparse"
)

func init() {
	Register(Rule{
		Name:        "distinct_on_big_table",
		Description: "SELECT DISTINCT is applied while a large table is referenced",
		Check:       checkDistinctOnBigTable,
	})
}

// checkDistinctOnBigTable matches any DISTINCT occurrence: the select
// list form and the aggregate-argument form both force a dedup of the
// scanned rows. COUNT(DISTINCT) on a large table trips this rule and the
// count-distinct rule.
func checkDistinctOnBigTable(in *Input) Result {
	distinct := false
	for _, core := range sqlparse.AllCores(in.Tree) {
		if core.Distinct {
			distinct = true
			break
		}
	}
	if !distinct {
		for _, fc := range sqlparse.CollectFuncCalls(in.Tree) {
			if fc.Distinct {
				distinct = true
				break
			}
		}
	}
	if !distinct {
		return Result{}
	}

	for _, fact := range baseTableFacts(in) {
		if fact.entry != nil && fact.entry.ApproxRowCount >= in.Thresholds.LargeTableRowCount {
			return Result{Flagged: true}
		}
	}
	return Result{}
}
