package rules

func init() {
	Register(Rule{
		Name:        "queries_unpartitioned_table",
		Description: "the query reads a large table that has no partition column at all",
		Check:       checkQueriesUnpartitionedTable,
	})
}

func checkQueriesUnpartitionedTable(in *Input) Result {
	var tables []string
	for _, fact := range baseTableFacts(in) {
		if fact.entry == nil || fact.entry.Partitioned() {
			continue
		}
		if fact.entry.ApproxRowCount >= in.Thresholds.LargeTableRowCount {
			tables = append(tables, fact.name)
		}
	}
	return Result{Flagged: len(tables) > 0, Tables: tables}
}
