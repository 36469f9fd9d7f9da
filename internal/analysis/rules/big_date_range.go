package rules

import (
	"sort"

	"github.com/gazer-labs/sqlgazer/pkg/models"
)

func init() {
	Register(Rule{
		Name:        "big_date_range",
		Description: "a date filter spans more than a year of data",
		Check:       checkBigDateRange,
	})
}

func checkBigDateRange(in *Input) Result {
	if in.Predicates == nil {
		return Result{}
	}

	// Keep the widest span per column.
	widest := make(map[string]int)
	for _, dr := range in.Predicates.DateRanges {
		if dr.SpanDays == nil || *dr.SpanDays <= BigDateRangeDays {
			continue
		}
		if span, ok := widest[dr.Column]; !ok || *dr.SpanDays > span {
			widest[dr.Column] = *dr.SpanDays
		}
	}
	if len(widest) == 0 {
		return Result{}
	}

	cols := make([]string, 0, len(widest))
	for col := range widest {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	hints := make([]models.DateRangeHint, 0, len(cols))
	for _, col := range cols {
		hints = append(hints, models.DateRangeHint{Column: col, SpanDays: widest[col]})
	}
	return Result{Flagged: true, DateRanges: hints}
}
