package rules

import (
	"github.com/gazer-labs/sqlgazer/internal/analysis/predicate"
	"github.com/gazer-labs/sqlgazer/pkg/models"
)

func init() {
	Register(Rule{
		Name:        "like_before_more_selective",
		Description: "a pattern-match predicate precedes a more selective comparison in the same AND chain",
		Check:       checkLikeBeforeMoreSelective,
	})
}

func checkLikeBeforeMoreSelective(in *Input) Result {
	if in.Predicates == nil {
		return Result{}
	}

	var pairs []models.PredicatePair
	for chain := 0; chain < in.Predicates.Chains(); chain++ {
		preds := in.Predicates.ChainPredicates(chain)
		for i, low := range preds {
			if low.Tier != predicate.TierLow {
				continue
			}
			for _, high := range preds[i+1:] {
				if high.Tier == predicate.TierHigh {
					pairs = append(pairs, models.PredicatePair{
						Low:  low.Text,
						High: high.Text,
					})
				}
			}
		}
	}
	return Result{Flagged: len(pairs) > 0, Pairs: pairs}
}
