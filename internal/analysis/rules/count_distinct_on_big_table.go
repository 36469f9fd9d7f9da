package rules

import (
	"github.com/gazer-labs/sqlgazer/internal/sqlparse"
)

func init() {
	Register(Rule{
		Name:        "count_distinct_on_big_table",
		Description: "COUNT(DISTINCT ...) is applied while a large table is referenced",
		Check:       checkCountDistinctOnBigTable,
	})
}

func checkCountDistinctOnBigTable(in *Input) Result {
	found := false
	for _, fc := range sqlparse.CollectFuncCalls(in.Tree) {
		if fc.Distinct && fc.Name == "COUNT" {
			found = true
			break
		}
	}
	if !found {
		return Result{}
	}

	for _, fact := range baseTableFacts(in) {
		if fact.entry != nil && fact.entry.ApproxRowCount >= in.Thresholds.DistinctFunctionRowCount {
			return Result{Flagged: true}
		}
	}
	return Result{}
}
