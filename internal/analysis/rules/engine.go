package rules

import (
	"fmt"

	gerrors "github.com/gazer-labs/sqlgazer/internal/errors"
)

// Evaluate runs every enabled rule against one statement's input and
// returns one Result per rule, in name order.
//
// Each rule runs isolated: a panic or error inside one evaluator becomes
// that Result's Err and never halts the sibling rules. Evaluating the
// same input twice yields identical results.
func Evaluate(in *Input, enabled func(name string) bool) []Result {
	all := All()
	out := make([]Result, 0, len(all))
	for _, rule := range all {
		if enabled != nil && !enabled(rule.Name) {
			continue
		}
		out = append(out, run(rule, in))
	}
	return out
}

func run(rule Rule, in *Input) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Rule: rule.Name,
				Err:  gerrors.NewRuleFailure(rule.Name, fmt.Errorf("panic: %v", r)),
			}
		}
	}()

	res = rule.Check(in)
	res.Rule = rule.Name
	if res.Err != nil {
		res.Err = gerrors.NewRuleFailure(rule.Name, res.Err)
		res.Flagged = false
	}
	return res
}
