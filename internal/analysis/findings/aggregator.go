// Package findings merges per-statement rule results into one record per
// job.
//
// A job script may hold several statements. Any statement flagging a rule
// flags the job; helper lists are unioned and deduplicated; a rule error
// on one statement is preserved without invalidating the verdicts the
// other statements produced.
package findings

import (
	"sort"
	"strings"

	"github.com/gazer-labs/sqlgazer/internal/analysis/rules"
	"github.com/gazer-labs/sqlgazer/pkg/models"
)

// Aggregate builds the findings record for one job from the rule results
// of each of its statements.
func Aggregate(job models.Job, tables []string, statements int, resultSets [][]rules.Result) *models.JobFindings {
	f := &models.JobFindings{
		JobID:        job.JobID,
		ProjectID:    job.ProjectID,
		CreationTime: job.CreationTime,
		Analyzed:     true,
		Statements:   statements,
		Tables:       tables,
	}
	for _, results := range resultSets {
		for _, res := range results {
			merge(f, res)
		}
	}
	finalize(f)
	return f
}

// Unanalyzed builds the record for a job whose script could not be
// parsed. Every verdict stays absent; the batch continues.
func Unanalyzed(job models.Job, parseErr error) *models.JobFindings {
	return &models.JobFindings{
		JobID:        job.JobID,
		ProjectID:    job.ProjectID,
		CreationTime: job.CreationTime,
		Analyzed:     false,
		ParseError:   parseErr.Error(),
		Tables:       []string{},
	}
}

func merge(f *models.JobFindings, res rules.Result) {
	if res.Err != nil {
		addRuleError(f, res.Rule, res.Err.Error())
		return
	}
	if !res.Flagged {
		return
	}

	switch res.Rule {
	case "select_star":
		f.SelectStar = true
	case "partition_used":
		f.PartitionUsed = true
		f.AvailablePartitions = mergePartitions(f.AvailablePartitions, res.Partitions)
	case "big_date_range":
		f.BigDateRange = true
		f.BigDateRangeColumns = mergeDateRanges(f.BigDateRangeColumns, res.DateRanges)
	case "no_date_on_big_table":
		f.NoDateOnBigTable = true
		f.TablesWithoutDateFilter = mergeStrings(f.TablesWithoutDateFilter, res.Tables)
	case "queries_unpartitioned_table":
		f.QueriesUnpartitionedTable = true
		f.UnpartitionedTables = mergeStrings(f.UnpartitionedTables, res.Tables)
	case "distinct_on_big_table":
		f.DistinctOnBigTable = true
	case "count_distinct_on_big_table":
		f.CountDistinctOnBigTable = true
	case "references_cte_multiple_times":
		f.ReferencesCteMultipleTimes = true
		f.CteReferences = mergeCTEs(f.CteReferences, res.CTEs)
	case "semi_join_without_aggregation":
		f.SemiJoinWithoutAggregation = true
	case "order_without_limit":
		f.OrderWithoutLimit = true
	case "like_before_more_selective":
		f.LikeBeforeMoreSelective = true
		f.PredicatePairs = mergePairs(f.PredicatePairs, res.Pairs)
	case "regexp_in_where":
		f.RegexpInWhere = true
		f.RegexpColumns = mergeStrings(f.RegexpColumns, res.Columns)
	}
}

func addRuleError(f *models.JobFindings, rule, message string) {
	for _, e := range f.RuleErrors {
		if e.Rule == rule && e.Message == message {
			return
		}
	}
	f.RuleErrors = append(f.RuleErrors, models.RuleError{Rule: rule, Message: message})
}

func mergeStrings(have, add []string) []string {
	seen := make(map[string]bool, len(have))
	for _, s := range have {
		seen[strings.ToLower(s)] = true
	}
	for _, s := range add {
		if !seen[strings.ToLower(s)] {
			seen[strings.ToLower(s)] = true
			have = append(have, s)
		}
	}
	return have
}

func mergePartitions(have, add []models.PartitionHint) []models.PartitionHint {
	for _, h := range add {
		dup := false
		for _, e := range have {
			if strings.EqualFold(e.Table, h.Table) && strings.EqualFold(e.PartitionColumn, h.PartitionColumn) {
				dup = true
				break
			}
		}
		if !dup {
			have = append(have, h)
		}
	}
	return have
}

func mergeDateRanges(have, add []models.DateRangeHint) []models.DateRangeHint {
	for _, h := range add {
		found := false
		for i, e := range have {
			if strings.EqualFold(e.Column, h.Column) {
				found = true
				if h.SpanDays > e.SpanDays {
					have[i].SpanDays = h.SpanDays
				}
				break
			}
		}
		if !found {
			have = append(have, h)
		}
	}
	return have
}

func mergeCTEs(have, add []models.CTEHint) []models.CTEHint {
	for _, h := range add {
		found := false
		for i, e := range have {
			if strings.EqualFold(e.Name, h.Name) {
				found = true
				if h.Count > e.Count {
					have[i].Count = h.Count
				}
				break
			}
		}
		if !found {
			have = append(have, h)
		}
	}
	return have
}

func mergePairs(have, add []models.PredicatePair) []models.PredicatePair {
	for _, h := range add {
		dup := false
		for _, e := range have {
			if e.Low == h.Low && e.High == h.High {
				dup = true
				break
			}
		}
		if !dup {
			have = append(have, h)
		}
	}
	return have
}

// finalize sorts the helper lists so records are byte-identical across
// evaluations of the same input.
func finalize(f *models.JobFindings) {
	sort.Strings(f.TablesWithoutDateFilter)
	sort.Strings(f.UnpartitionedTables)
	sort.Strings(f.RegexpColumns)
	sort.Slice(f.AvailablePartitions, func(i, j int) bool {
		return f.AvailablePartitions[i].Table < f.AvailablePartitions[j].Table
	})
	sort.Slice(f.BigDateRangeColumns, func(i, j int) bool {
		return f.BigDateRangeColumns[i].Column < f.BigDateRangeColumns[j].Column
	})
	sort.Slice(f.CteReferences, func(i, j int) bool {
		return f.CteReferences[i].Name < f.CteReferences[j].Name
	})
	sort.Slice(f.RuleErrors, func(i, j int) bool {
		return f.RuleErrors[i].Rule < f.RuleErrors[j].Rule
	})
	if f.Tables == nil {
		f.Tables = []string{}
	}
	sort.Strings(f.Tables)
}
