package rules

import (
	"github.com/gazer-labs/sqlgazer/internal/sqlparse"
)

func init() {
	Register(Rule{
		Name:        "order_without_limit",
		Description: "the outermost query sorts its full result without a LIMIT",
		Check:       checkOrderWithoutLimit,
	})
}

// checkOrderWithoutLimit looks only at the outermost scope: an ORDER BY
// inside a subquery or CTE feeds a bounded consumer and is a different
// concern.
func checkOrderWithoutLimit(in *Input) Result {
	for _, core := range sqlparse.MainCores(in.Tree) {
		if len(core.OrderBy) > 0 && core.Limit == nil && core.Fetch == nil {
			return Result{Flagged: true}
		}
	}
	return Result{}
}
