package rules

import (
	"strings"

	"github.com/gazer-labs/sqlgazer/internal/analysis/predicate"
	"github.com/gazer-labs/sqlgazer/pkg/models"
)

func init() {
	Register(Rule{
		Name:        "partition_used",
		Description: "a large partitioned table is read without filtering its partition column",
		Check:       checkPartitionUsed,
	})
}

func checkPartitionUsed(in *Input) Result {
	var hints []models.PartitionHint
	for _, fact := range baseTableFacts(in) {
		e := fact.entry
		if e == nil || !e.Partitioned() {
			continue
		}
		if e.ApproxRowCount < in.Thresholds.LargeTableRowCount {
			continue
		}
		if partitionFiltered(in.Predicates, fact.name, e.PartitionColumn) {
			continue
		}
		hints = append(hints, models.PartitionHint{
			Table:           fact.name,
			PartitionColumn: e.PartitionColumn,
		})
	}
	return Result{Flagged: len(hints) > 0, Partitions: hints}
}

// partitionFiltered reports whether any WHERE or JOIN predicate touches
// the table's partition column. A join key on the partition column counts:
// it can still prune partitions.
func partitionFiltered(ex *predicate.Extraction, table, column string) bool {
	if ex == nil {
		return false
	}
	want := strings.ToLower(column)
	touches := func(col, owner string) bool {
		if col != want {
			return false
		}
		return owner == "" || sameTable(owner, table)
	}
	for _, p := range ex.Predicates {
		if touches(p.Column, p.Table) || touches(p.RightColumn, p.RightTable) {
			return true
		}
	}
	return false
}
