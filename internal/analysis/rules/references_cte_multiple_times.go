package rules

func init() {
	Register(Rule{
		Name:        "references_cte_multiple_times",
		Description: "a CTE is referenced more than once, re-running its body on engines without CTE materialization",
		Check:       checkReferencesCteMultipleTimes,
	})
}

func checkReferencesCteMultipleTimes(in *Input) Result {
	if in.CTEs == nil {
		return Result{}
	}
	hints := in.CTEs.Hints()
	return Result{Flagged: len(hints) > 0, CTEs: hints}
}
