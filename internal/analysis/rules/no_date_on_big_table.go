package rules

func init() {
	Register(Rule{
		Name:        "no_date_on_big_table",
		Description: "a large table is read without any date filter",
		Check:       checkNoDateOnBigTable,
	})
}

func checkNoDateOnBigTable(in *Input) Result {
	var tables []string
	for _, fact := range baseTableFacts(in) {
		if fact.entry == nil || fact.entry.ApproxRowCount < in.Thresholds.LargeTableRowCount {
			continue
		}
		if !hasDateFilter(in, fact) {
			tables = append(tables, fact.name)
		}
	}
	return Result{Flagged: len(tables) > 0, Tables: tables}
}

// hasDateFilter reports whether any predicate bounds a date column of the
// table. A date column used only as a join key to another table is not a
// filter: it does not narrow the scanned rows on its own.
func hasDateFilter(in *Input, fact tableFact) bool {
	if in.Predicates == nil {
		return false
	}
	for _, p := range in.Predicates.Predicates {
		if p.ColumnToColumn || p.Column == "" {
			continue
		}
		if p.Table != "" && !sameTable(p.Table, fact.name) {
			continue
		}
		if p.IsDateFilter || fact.entry.HasDatetimeColumn(p.Column) {
			return true
		}
	}
	return false
}
