package rules

import (
	"sort"
)

func init() {
	Register(Rule{
		Name:        "regexp_in_where",
		Description: "a WHERE or JOIN predicate applies a regular-expression match",
		Check:       checkRegexpInWhere,
	})
}

func checkRegexpInWhere(in *Input) Result {
	if in.Predicates == nil {
		return Result{}
	}

	seen := make(map[string]bool)
	for _, p := range in.Predicates.Predicates {
		if p.Operator != "REGEXP" {
			continue
		}
		col := p.Column
		if col == "" {
			col = p.Text
		}
		seen[col] = true
	}
	if len(seen) == 0 {
		return Result{}
	}

	cols := make([]string, 0, len(seen))
	for col := range seen {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return Result{Flagged: true, Columns: cols}
}
