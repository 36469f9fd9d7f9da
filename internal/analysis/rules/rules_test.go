package rules

import (
	"testing"
	"time"

	"github.com/leapstack-labs/leapsql/pkg/dialect"
	"github.com/leapstack-labs/leapsql/pkg/parser"

	_ "github.com/leapstack-labs/leapsql/pkg/dialects/ansi"

	"github.com/gazer-labs/sqlgazer/internal/analysis/cte"
	"github.com/gazer-labs/sqlgazer/internal/analysis/predicate"
	"github.com/gazer-labs/sqlgazer/internal/analysis/tableref"
	"github.com/gazer-labs/sqlgazer/internal/catalog"
)

var testNow = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func testCatalog() []catalog.Entry {
	return []catalog.Entry{
		{
			QualifiedName:   "proj.ds.big_table",
			PartitionColumn: "dt",
			ApproxRowCount:  2000000,
			Columns:         []string{"dt", "region", "amount"},
			DatetimeColumns: []string{"dt"},
		},
		{
			QualifiedName:   "proj.ds.plain_big",
			ApproxRowCount:  2000000,
			Columns:         []string{"created_at", "uid"},
			DatetimeColumns: []string{"created_at"},
		},
		{
			QualifiedName:   "proj.ds.small_table",
			PartitionColumn: "dt",
			ApproxRowCount:  10,
			Columns:         []string{"dt", "id"},
			DatetimeColumns: []string{"dt"},
		},
	}
}

func buildInput(t *testing.T, sql string) *Input {
	t.Helper()
	d, ok := dialect.Get("ansi")
	if !ok {
		t.Fatal("ansi dialect not registered")
	}
	stmt, err := parser.ParseWithDialect(sql, d)
	if err != nil {
		t.Fatalf("parse %q: %v", sql, err)
	}
	res, err := tableref.Resolve(stmt)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return &Input{
		Tree:       stmt,
		Tables:     res,
		Predicates: predicate.Extract(stmt, res, testNow),
		CTEs:       cte.Build(stmt),
		Catalog:    catalog.NewSnapshot(testCatalog()),
		Thresholds: Thresholds{LargeTableRowCount: 1000, DistinctFunctionRowCount: 1000},
	}
}

func check(t *testing.T, name string, in *Input) Result {
	t.Helper()
	rule, ok := Get(name)
	if !ok {
		t.Fatalf("rule %s not registered", name)
	}
	res := rule.Check(in)
	res.Rule = name
	return res
}

func TestSelectStar(t *testing.T) {
	cases := []struct {
		name string
		sql  string
		want bool
	}{
		{"bare star", "SELECT * FROM big_table", true},
		{"table star", "SELECT b.* FROM big_table b", true},
		{"star in union branch", "SELECT a FROM t1 UNION ALL SELECT * FROM t2", true},
		{"explicit columns", "SELECT dt, region FROM big_table", false},
		{"count star", "SELECT COUNT(*) FROM big_table", false},
		{"star inside cte only", "WITH c AS (SELECT * FROM big_table) SELECT dt FROM c", false},
		{"star inside derived table only", "SELECT x.dt FROM (SELECT * FROM big_table) x", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := check(t, "select_star", buildInput(t, tc.sql))
			if res.Flagged != tc.want {
				t.Errorf("flagged = %v, want %v", res.Flagged, tc.want)
			}
		})
	}
}

func TestPartitionUsed(t *testing.T) {
	t.Run("no filter on partition column flags", func(t *testing.T) {
		res := check(t, "partition_used", buildInput(t, "SELECT region FROM proj.ds.big_table WHERE region = 'eu'"))
		if !res.Flagged {
			t.Fatal("expected flag: partitioned large table without partition filter")
		}
		if len(res.Partitions) != 1 || res.Partitions[0].PartitionColumn != "dt" {
			t.Errorf("partitions payload = %v, want dt hint", res.Partitions)
		}
	})
	t.Run("partition filter suppresses", func(t *testing.T) {
		res := check(t, "partition_used", buildInput(t, "SELECT region FROM proj.ds.big_table WHERE dt >= '2024-01-01'"))
		if res.Flagged {
			t.Error("partition column is filtered")
		}
	})
	t.Run("partition column as join key suppresses", func(t *testing.T) {
		res := check(t, "partition_used", buildInput(t, "SELECT a FROM proj.ds.big_table b JOIN proj.ds.plain_big p ON b.dt = p.created_at"))
		if res.Flagged {
			t.Error("a join key on the partition column can still prune")
		}
	})
	t.Run("partition column on the right of a join key suppresses", func(t *testing.T) {
		res := check(t, "partition_used", buildInput(t, "SELECT a FROM proj.ds.plain_big p JOIN proj.ds.big_table b ON p.created_at = b.dt"))
		if res.Flagged {
			t.Error("either side of the join key can prune the partition")
		}
	})
	t.Run("small partitioned table ignored", func(t *testing.T) {
		res := check(t, "partition_used", buildInput(t, "SELECT id FROM proj.ds.small_table"))
		if res.Flagged {
			t.Error("table below the row threshold should not flag")
		}
	})
	t.Run("unknown table is a catalog gap", func(t *testing.T) {
		res := check(t, "partition_used", buildInput(t, "SELECT a FROM proj.ds.mystery"))
		if res.Flagged || res.Err != nil {
			t.Errorf("catalog gap must yield false without error, got %+v", res)
		}
	})
}

func TestBigDateRange(t *testing.T) {
	t.Run("1247 day span flags", func(t *testing.T) {
		res := check(t, "big_date_range", buildInput(t,
			"SELECT a FROM big_table WHERE dt >= '2020-01-01' AND dt <= '2023-06-01'"))
		if !res.Flagged {
			t.Fatal("expected flag for a 1247-day span")
		}
		if len(res.DateRanges) != 1 || res.DateRanges[0].SpanDays != 1247 {
			t.Errorf("date range payload = %v, want dt span 1247", res.DateRanges)
		}
	})
	t.Run("152 day span passes", func(t *testing.T) {
		res := check(t, "big_date_range", buildInput(t,
			"SELECT a FROM big_table WHERE dt BETWEEN '2020-01-01' AND '2020-06-01'"))
		if res.Flagged {
			t.Error("a 152-day span is within a year")
		}
	})
	t.Run("exactly 365 days passes", func(t *testing.T) {
		res := check(t, "big_date_range", buildInput(t,
			"SELECT a FROM big_table WHERE dt >= '2020-01-01' AND dt <= '2020-12-31'"))
		if res.Flagged {
			t.Error("the comparison is strict: exactly 365 days does not flag")
		}
	})
	t.Run("366 days flags", func(t *testing.T) {
		res := check(t, "big_date_range", buildInput(t,
			"SELECT a FROM big_table WHERE dt >= '2020-01-01' AND dt <= '2021-01-01'"))
		if !res.Flagged {
			t.Error("366 days exceeds the boundary")
		}
	})
	t.Run("single-sided bound passes", func(t *testing.T) {
		res := check(t, "big_date_range", buildInput(t,
			"SELECT a FROM big_table WHERE dt >= '2015-01-01'"))
		if res.Flagged {
			t.Error("no span can be computed from one literal bound")
		}
	})
	t.Run("now-relative lower bound flags", func(t *testing.T) {
		res := check(t, "big_date_range", buildInput(t,
			"SELECT a FROM big_table WHERE dt >= DATE_SUB(CURRENT_DATE(), 400)"))
		if !res.Flagged {
			t.Error("a 400-day trailing window exceeds the boundary")
		}
	})
}

func TestNoDateOnBigTable(t *testing.T) {
	t.Run("no date filter flags", func(t *testing.T) {
		res := check(t, "no_date_on_big_table", buildInput(t,
			"SELECT uid FROM proj.ds.plain_big WHERE uid = 7"))
		if !res.Flagged {
			t.Fatal("large table with datetime columns and no date filter should flag")
		}
		if len(res.Tables) != 1 || res.Tables[0] != "proj.ds.plain_big" {
			t.Errorf("tables payload = %v, want [proj.ds.plain_big]", res.Tables)
		}
	})
	t.Run("date filter suppresses", func(t *testing.T) {
		res := check(t, "no_date_on_big_table", buildInput(t,
			"SELECT uid FROM proj.ds.plain_big WHERE created_at >= '2024-01-01'"))
		if res.Flagged {
			t.Error("the table has a date filter")
		}
	})
	t.Run("join key on date column does not count as filter", func(t *testing.T) {
		res := check(t, "no_date_on_big_table", buildInput(t,
			"SELECT a FROM proj.ds.big_table b JOIN proj.ds.plain_big p ON b.dt = p.created_at"))
		if !res.Flagged {
			t.Error("column-to-column comparison is not a date filter")
		}
	})
	t.Run("small tables ignored", func(t *testing.T) {
		res := check(t, "no_date_on_big_table", buildInput(t,
			"SELECT id FROM proj.ds.small_table"))
		if res.Flagged {
			t.Error("table below the row threshold should not flag")
		}
	})
}

func TestQueriesUnpartitionedTable(t *testing.T) {
	t.Run("large unpartitioned flags", func(t *testing.T) {
		res := check(t, "queries_unpartitioned_table", buildInput(t,
			"SELECT uid FROM proj.ds.plain_big"))
		if !res.Flagged {
			t.Fatal("expected flag for a large unpartitioned table")
		}
		if len(res.Tables) != 1 || res.Tables[0] != "proj.ds.plain_big" {
			t.Errorf("tables payload = %v", res.Tables)
		}
	})
	t.Run("partitioned table passes", func(t *testing.T) {
		res := check(t, "queries_unpartitioned_table", buildInput(t,
			"SELECT region FROM proj.ds.big_table"))
		if res.Flagged {
			t.Error("big_table is partitioned")
		}
	})
}

func TestDistinctOnBigTable(t *testing.T) {
	t.Run("distinct over large table flags", func(t *testing.T) {
		res := check(t, "distinct_on_big_table", buildInput(t,
			"SELECT DISTINCT region FROM proj.ds.big_table"))
		if !res.Flagged {
			t.Error("expected flag")
		}
	})
	t.Run("distinct over small table passes", func(t *testing.T) {
		res := check(t, "distinct_on_big_table", buildInput(t,
			"SELECT DISTINCT id FROM proj.ds.small_table"))
		if res.Flagged {
			t.Error("small table should not flag")
		}
	})
	t.Run("count distinct also trips the distinct rule", func(t *testing.T) {
		res := check(t, "distinct_on_big_table", buildInput(t,
			"SELECT COUNT(DISTINCT region) FROM proj.ds.big_table"))
		if !res.Flagged {
			t.Error("DISTINCT inside an aggregate still forces a dedup")
		}
	})
	t.Run("count distinct over small table passes", func(t *testing.T) {
		res := check(t, "distinct_on_big_table", buildInput(t,
			"SELECT COUNT(DISTINCT id) FROM proj.ds.small_table"))
		if res.Flagged {
			t.Error("small table should not flag")
		}
	})
}

func TestCountDistinctOnBigTable(t *testing.T) {
	t.Run("count distinct over large table flags", func(t *testing.T) {
		res := check(t, "count_distinct_on_big_table", buildInput(t,
			"SELECT COUNT(DISTINCT region) FROM proj.ds.big_table"))
		if !res.Flagged {
			t.Error("expected flag")
		}
	})
	t.Run("count distinct over small table passes", func(t *testing.T) {
		res := check(t, "count_distinct_on_big_table", buildInput(t,
			"SELECT COUNT(DISTINCT id) FROM proj.ds.small_table"))
		if res.Flagged {
			t.Error("small table should not flag")
		}
	})
	t.Run("plain count passes", func(t *testing.T) {
		res := check(t, "count_distinct_on_big_table", buildInput(t,
			"SELECT COUNT(region) FROM proj.ds.big_table"))
		if res.Flagged {
			t.Error("COUNT without DISTINCT should not flag")
		}
	})
}

func TestReferencesCteMultipleTimes(t *testing.T) {
	t.Run("double reference flags", func(t *testing.T) {
		res := check(t, "references_cte_multiple_times", buildInput(t,
			"WITH c AS (SELECT 1 AS x) SELECT * FROM c JOIN c AS c2 ON true"))
		if !res.Flagged {
			t.Fatal("expected flag")
		}
		if len(res.CTEs) != 1 || res.CTEs[0].Name != "c" || res.CTEs[0].Count != 2 {
			t.Errorf("cte payload = %v, want c:2", res.CTEs)
		}
	})
	t.Run("single reference passes", func(t *testing.T) {
		res := check(t, "references_cte_multiple_times", buildInput(t,
			"WITH c AS (SELECT 1 AS x) SELECT x FROM c"))
		if res.Flagged {
			t.Error("single reference should not flag")
		}
	})
}

func TestSemiJoinWithoutAggregation(t *testing.T) {
	t.Run("plain subquery flags", func(t *testing.T) {
		res := check(t, "semi_join_without_aggregation", buildInput(t,
			"SELECT a FROM t WHERE uid IN (SELECT uid FROM proj.ds.plain_big)"))
		if !res.Flagged {
			t.Error("expected flag for non-deduplicated IN subquery")
		}
	})
	t.Run("distinct subquery passes", func(t *testing.T) {
		res := check(t, "semi_join_without_aggregation", buildInput(t,
			"SELECT a FROM t WHERE uid IN (SELECT DISTINCT uid FROM proj.ds.plain_big)"))
		if res.Flagged {
			t.Error("DISTINCT subquery should not flag")
		}
	})
	t.Run("grouped subquery passes", func(t *testing.T) {
		res := check(t, "semi_join_without_aggregation", buildInput(t,
			"SELECT a FROM t WHERE uid IN (SELECT uid FROM proj.ds.plain_big GROUP BY uid)"))
		if res.Flagged {
			t.Error("grouped subquery should not flag")
		}
	})
	t.Run("value list passes", func(t *testing.T) {
		res := check(t, "semi_join_without_aggregation", buildInput(t,
			"SELECT a FROM t WHERE uid IN (1, 2, 3)"))
		if res.Flagged {
			t.Error("IN over a value list is not a semi join")
		}
	})
}

func TestOrderWithoutLimit(t *testing.T) {
	t.Run("order without limit flags", func(t *testing.T) {
		res := check(t, "order_without_limit", buildInput(t,
			"SELECT a FROM t ORDER BY a"))
		if !res.Flagged {
			t.Error("expected flag")
		}
	})
	t.Run("order with limit passes", func(t *testing.T) {
		res := check(t, "order_without_limit", buildInput(t,
			"SELECT a FROM t ORDER BY a LIMIT 100"))
		if res.Flagged {
			t.Error("LIMIT bounds the sort")
		}
	})
	t.Run("order inside derived table passes", func(t *testing.T) {
		res := check(t, "order_without_limit", buildInput(t,
			"SELECT x.a FROM (SELECT a FROM t ORDER BY a LIMIT 10) x"))
		if res.Flagged {
			t.Error("inner ORDER BY feeds a bounded consumer")
		}
	})
}

func TestLikeBeforeMoreSelective(t *testing.T) {
	t.Run("like before equality flags", func(t *testing.T) {
		res := check(t, "like_before_more_selective", buildInput(t,
			"SELECT a FROM t WHERE name LIKE 'x%' AND id = 5"))
		if !res.Flagged {
			t.Fatal("expected flag")
		}
		if len(res.Pairs) != 1 {
			t.Fatalf("expected 1 pair, got %d", len(res.Pairs))
		}
		if res.Pairs[0].Low != "name LIKE 'x%'" || res.Pairs[0].High != "id = 5" {
			t.Errorf("pair = %+v", res.Pairs[0])
		}
	})
	t.Run("equality before like passes", func(t *testing.T) {
		res := check(t, "like_before_more_selective", buildInput(t,
			"SELECT a FROM t WHERE id = 5 AND name LIKE 'x%'"))
		if res.Flagged {
			t.Error("selective predicate already leads the chain")
		}
	})
	t.Run("chains do not mix", func(t *testing.T) {
		res := check(t, "like_before_more_selective", buildInput(t,
			"SELECT a FROM t1 JOIN t2 ON t1.name LIKE 'x%' WHERE t1.id = 5"))
		if res.Flagged {
			t.Error("the LIKE and the equality live in different chains")
		}
	})
}

func TestRegexpInWhere(t *testing.T) {
	t.Run("regexp function flags", func(t *testing.T) {
		res := check(t, "regexp_in_where", buildInput(t,
			"SELECT a FROM t WHERE REGEXP_CONTAINS(city, 'york')"))
		if !res.Flagged {
			t.Fatal("expected flag")
		}
		if len(res.Columns) != 1 || res.Columns[0] != "city" {
			t.Errorf("columns payload = %v, want [city]", res.Columns)
		}
	})
	t.Run("negated regexp still flags", func(t *testing.T) {
		res := check(t, "regexp_in_where", buildInput(t,
			"SELECT a FROM t WHERE NOT REGEXP_CONTAINS(city, 'york') AND dt = '2024-01-01'"))
		if !res.Flagged {
			t.Fatal("NOT around a regexp match still applies the regexp")
		}
		if len(res.Columns) != 1 || res.Columns[0] != "city" {
			t.Errorf("columns payload = %v, want [city]", res.Columns)
		}
	})
	t.Run("like is not regexp", func(t *testing.T) {
		res := check(t, "regexp_in_where", buildInput(t,
			"SELECT a FROM t WHERE city LIKE 'york%'"))
		if res.Flagged {
			t.Error("LIKE should not trip the regexp rule")
		}
	})
}

func TestAllRulesSortedAndComplete(t *testing.T) {
	names := map[string]bool{}
	for _, r := range All() {
		names[r.Name] = true
	}
	want := []string{
		"select_star", "partition_used", "big_date_range",
		"no_date_on_big_table", "queries_unpartitioned_table",
		"distinct_on_big_table", "count_distinct_on_big_table",
		"references_cte_multiple_times", "semi_join_without_aggregation",
		"order_without_limit", "like_before_more_selective", "regexp_in_where",
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("rule %s missing from registry", name)
		}
	}
}
