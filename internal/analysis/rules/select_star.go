package rules

import (
	"github.com/gazer-labs/sqlgazer/internal/sqlparse"
)

func init() {
	Register(Rule{
		Name:        "select_star",
		Description: "the query selects * in its main body instead of naming columns",
		Check:       checkSelectStar,
	})
}

// checkSelectStar flags a star projection in the main query body. Stars
// confined to CTE or subquery definitions do not flag, and COUNT(*) is a
// function argument, not a projection, so it never triggers this rule.
func checkSelectStar(in *Input) Result {
	for _, core := range sqlparse.MainCores(in.Tree) {
		for _, item := range core.Columns {
			if item.Star || item.TableStar != "" {
				return Result{Flagged: true}
			}
		}
	}
	return Result{}
}
