// Package models provides shared data models for sqlgazer inputs and outputs.
package models

import (
	"time"
)

// Job is one harvested job-history record: a query that already ran in the
// warehouse, together with the execution metadata the source exposes.
type Job struct {
	JobID                string    `json:"job_id" yaml:"job_id"`
	ProjectID            string    `json:"project_id" yaml:"project_id"`
	QueryText            string    `json:"query_text" yaml:"query_text"`
	CreationTime         time.Time `json:"creation_time" yaml:"creation_time"`
	ApproxBytesProcessed int64     `json:"approx_bytes_processed" yaml:"approx_bytes_processed"`
	ApproxSlotMs         int64     `json:"approx_slot_ms" yaml:"approx_slot_ms"`
}

// PartitionHint names a partitioned table whose partition column was not
// filtered by the analyzed query.
type PartitionHint struct {
	Table           string `json:"table"`
	PartitionColumn string `json:"partition_column"`
}

// DateRangeHint names a date column whose filtered range exceeded the
// day boundary, with the measured span.
type DateRangeHint struct {
	Column   string `json:"column"`
	SpanDays int    `json:"span_days"`
}

// CTEHint names a CTE and the number of places that reference it.
type CTEHint struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// PredicatePair records a low-selectivity predicate that appears before a
// more selective one in the same AND chain.
type PredicatePair struct {
	Low  string `json:"low"`
	High string `json:"high"`
}

// RuleError records a single rule evaluator fault for one job. The other
// rules' verdicts in the same record remain valid.
type RuleError struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// JobFindings is the complete per-job output record: one boolean verdict per
// rule plus the helper evidence lists. A job whose query text failed to parse
// has Analyzed=false, ParseError set, and every verdict absent (false).
type JobFindings struct {
	JobID        string    `json:"job_id"`
	ProjectID    string    `json:"project_id"`
	CreationTime time.Time `json:"creation_time"`
	Analyzed     bool      `json:"analyzed"`
	ParseError   string    `json:"parse_error,omitempty"`
	Statements   int       `json:"statements"`
	Tables       []string  `json:"tables"`

	SelectStar                 bool            `json:"select_star"`
	PartitionUsed              bool            `json:"partition_used"`
	AvailablePartitions        []PartitionHint `json:"available_partitions,omitempty"`
	BigDateRange               bool            `json:"big_date_range"`
	BigDateRangeColumns        []DateRangeHint `json:"big_date_range_columns,omitempty"`
	NoDateOnBigTable           bool            `json:"no_date_on_big_table"`
	TablesWithoutDateFilter    []string        `json:"tables_without_date_filter,omitempty"`
	QueriesUnpartitionedTable  bool            `json:"queries_unpartitioned_table"`
	UnpartitionedTables        []string        `json:"unpartitioned_tables,omitempty"`
	DistinctOnBigTable         bool            `json:"distinct_on_big_table"`
	CountDistinctOnBigTable    bool            `json:"count_distinct_on_big_table"`
	ReferencesCteMultipleTimes bool            `json:"references_cte_multiple_times"`
	CteReferences              []CTEHint       `json:"cte_references,omitempty"`
	SemiJoinWithoutAggregation bool            `json:"semi_join_without_aggregation"`
	OrderWithoutLimit          bool            `json:"order_without_limit"`
	LikeBeforeMoreSelective    bool            `json:"like_before_more_selective"`
	PredicatePairs             []PredicatePair `json:"predicate_pairs,omitempty"`
	RegexpInWhere              bool            `json:"regexp_in_where"`
	RegexpColumns              []string        `json:"regexp_columns,omitempty"`

	RuleErrors []RuleError `json:"rule_errors,omitempty"`
}

// Flagged reports whether any rule verdict in the record is true.
func (f *JobFindings) Flagged() bool {
	return f.SelectStar || f.PartitionUsed || f.BigDateRange ||
		f.NoDateOnBigTable || f.QueriesUnpartitionedTable ||
		f.DistinctOnBigTable || f.CountDistinctOnBigTable ||
		f.ReferencesCteMultipleTimes || f.SemiJoinWithoutAggregation ||
		f.OrderWithoutLimit || f.LikeBeforeMoreSelective || f.RegexpInWhere
}

// FlaggedRules returns the names of the rules whose verdict is true, in
// rule-name order.
func (f *JobFindings) FlaggedRules() []string {
	var names []string
	for _, v := range []struct {
		name    string
		flagged bool
	}{
		{"big_date_range", f.BigDateRange},
		{"count_distinct_on_big_table", f.CountDistinctOnBigTable},
		{"distinct_on_big_table", f.DistinctOnBigTable},
		{"like_before_more_selective", f.LikeBeforeMoreSelective},
		{"no_date_on_big_table", f.NoDateOnBigTable},
		{"order_without_limit", f.OrderWithoutLimit},
		{"partition_used", f.PartitionUsed},
		{"queries_unpartitioned_table", f.QueriesUnpartitionedTable},
		{"references_cte_multiple_times", f.ReferencesCteMultipleTimes},
		{"regexp_in_where", f.RegexpInWhere},
		{"select_star", f.SelectStar},
		{"semi_join_without_aggregation", f.SemiJoinWithoutAggregation},
	} {
		if v.flagged {
			names = append(names, v.name)
		}
	}
	return names
}

// RunInfo identifies one batch analysis run for persistence.
type RunInfo struct {
	RunID       string    `json:"run_id"`
	Source      string    `json:"source"`
	Day         time.Time `json:"day"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	JobCount    int       `json:"job_count"`
}
