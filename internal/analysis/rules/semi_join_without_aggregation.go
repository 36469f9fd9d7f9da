package rules

import (
	"github.com/leapstack-labs/leapsql/pkg/parser"

	"github.com/gazer-labs/sqlgazer/internal/sqlparse"
)

func init() {
	Register(Rule{
		Name:        "semi_join_without_aggregation",
		Description: "an IN/NOT IN subquery projects duplicate values instead of a DISTINCT or grouped set",
		Check:       checkSemiJoinWithoutAggregation,
	})
}

func checkSemiJoinWithoutAggregation(in *Input) Result {
	flagged := false
	sqlparse.Walk(in.Tree, func(n any) bool {
		ie, ok := n.(*parser.InExpr)
		if !ok || ie.Query == nil {
			return true
		}
		if !subqueryAggregates(ie.Query) {
			flagged = true
			return false
		}
		return true
	})
	return Result{Flagged: flagged}
}

func subqueryAggregates(stmt *parser.SelectStmt) bool {
	for _, core := range sqlparse.MainCores(stmt) {
		if core.Distinct || len(core.GroupBy) > 0 {
			return true
		}
	}
	return false
}
