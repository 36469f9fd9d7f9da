package predicate

import (
	"testing"
	"time"

	"github.com/leapstack-labs/leapsql/pkg/dialect"
	"github.com/leapstack-labs/leapsql/pkg/parser"

	_ "github.com/leapstack-labs/leapsql/pkg/dialects/ansi"

	"github.com/gazer-labs/sqlgazer/internal/analysis/tableref"
)

var testNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func extract(t *testing.T, sql string) *Extraction {
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
	return Extract(stmt, res, testNow)
}

func TestFlattenPreservesSourceOrder(t *testing.T) {
	ex := extract(t, "SELECT a FROM t WHERE name LIKE 'x%' AND id = 5 AND region IN ('eu', 'us')")

	preds := ex.ChainPredicates(0)
	if len(preds) != 3 {
		t.Fatalf("expected 3 leaves, got %d", len(preds))
	}
	if preds[0].Operator != "LIKE" || preds[0].Position != 0 {
		t.Errorf("first leaf = %q at %d, want LIKE at 0", preds[0].Operator, preds[0].Position)
	}
	if preds[1].Operator != "=" || preds[1].Position != 1 {
		t.Errorf("second leaf = %q at %d, want = at 1", preds[1].Operator, preds[1].Position)
	}
	if preds[2].Operator != "IN" || preds[2].Position != 2 {
		t.Errorf("third leaf = %q at %d, want IN at 2", preds[2].Operator, preds[2].Position)
	}
}

func TestTiers(t *testing.T) {
	ex := extract(t, "SELECT a FROM t WHERE id = 5 AND name LIKE 'x%' AND region IN ('eu') AND amount <> 0 AND REGEXP_CONTAINS(city, 'york')")

	preds := ex.ChainPredicates(0)
	if len(preds) != 5 {
		t.Fatalf("expected 5 leaves, got %d", len(preds))
	}
	wantTiers := []Tier{TierHigh, TierLow, TierModerate, TierModerate, TierLow}
	for i, want := range wantTiers {
		if preds[i].Tier != want {
			t.Errorf("leaf %d (%s): tier = %s, want %s", i, preds[i].Operator, preds[i].Tier, want)
		}
	}
	if preds[4].Operator != "REGEXP" {
		t.Errorf("regexp leaf operator = %q, want REGEXP", preds[4].Operator)
	}
}

func TestOrSubtreeStaysOpaque(t *testing.T) {
	ex := extract(t, "SELECT a FROM t WHERE (name LIKE 'x%' OR id = 5) AND region = 'eu'")

	preds := ex.ChainPredicates(0)
	if len(preds) != 2 {
		t.Fatalf("expected 2 leaves (OR kept opaque), got %d", len(preds))
	}
	if preds[0].Operator != "OR" {
		t.Errorf("first leaf = %q, want opaque OR", preds[0].Operator)
	}
	if preds[1].Operator != "=" {
		t.Errorf("second leaf = %q, want =", preds[1].Operator)
	}
}

func TestEachJoinConditionIsOwnChain(t *testing.T) {
	ex := extract(t, "SELECT a FROM t1 JOIN t2 ON t1.id = t2.id WHERE t1.x = 1")

	if ex.Chains() != 2 {
		t.Fatalf("expected 2 chains (WHERE and JOIN), got %d", ex.Chains())
	}
}

func TestColumnToColumnComparison(t *testing.T) {
	ex := extract(t, "SELECT a FROM t1 JOIN t2 ON t1.dt = t2.dt")

	var joinPred *Predicate
	for i := range ex.Predicates {
		if ex.Predicates[i].Operator == "=" {
			joinPred = &ex.Predicates[i]
		}
	}
	if joinPred == nil {
		t.Fatal("join predicate not found")
	}
	if !joinPred.ColumnToColumn {
		t.Error("t1.dt = t2.dt should be marked column-to-column")
	}
	if joinPred.IsDateFilter {
		t.Error("a join key comparison is not a date filter")
	}
	if joinPred.Column != "dt" || joinPred.Table != "t1" {
		t.Errorf("left side = %s.%s, want t1.dt", joinPred.Table, joinPred.Column)
	}
	if joinPred.RightColumn != "dt" || joinPred.RightTable != "t2" {
		t.Errorf("right side = %s.%s, want t2.dt", joinPred.RightTable, joinPred.RightColumn)
	}
}

func TestColumnToColumnKeepsBothSides(t *testing.T) {
	ex := extract(t, "SELECT a FROM proj.sales.orders o JOIN proj.sales.events e ON o.created_at = e.dt")

	if len(ex.Predicates) != 1 {
		t.Fatalf("expected 1 predicate, got %d", len(ex.Predicates))
	}
	p := ex.Predicates[0]
	if p.Column != "created_at" || p.Table != "proj.sales.orders" {
		t.Errorf("left side = %s.%s, want proj.sales.orders.created_at", p.Table, p.Column)
	}
	if p.RightColumn != "dt" || p.RightTable != "proj.sales.events" {
		t.Errorf("right side = %s.%s, want proj.sales.events.dt", p.RightTable, p.RightColumn)
	}
}

func TestPatternUnderNotStillClassified(t *testing.T) {
	ex := extract(t, "SELECT a FROM t WHERE NOT REGEXP_CONTAINS(city, 'york') AND dt = '2024-01-01'")

	preds := ex.ChainPredicates(0)
	if len(preds) != 2 {
		t.Fatalf("expected 2 leaves, got %d", len(preds))
	}
	p := preds[0]
	if p.Operator != "REGEXP" {
		t.Errorf("operator = %q, want REGEXP through the NOT", p.Operator)
	}
	if p.Tier != TierLow {
		t.Errorf("tier = %s, want low", p.Tier)
	}
	if p.Column != "city" {
		t.Errorf("column = %q, want city", p.Column)
	}
}

func TestPatternUnderNotParenLike(t *testing.T) {
	ex := extract(t, "SELECT a FROM t WHERE NOT (name LIKE 'x%') AND id = 5")

	preds := ex.ChainPredicates(0)
	if len(preds) != 2 {
		t.Fatalf("expected 2 leaves, got %d", len(preds))
	}
	if preds[0].Operator != "LIKE" || preds[0].Tier != TierLow {
		t.Errorf("leaf = %q tier %s, want LIKE at low tier", preds[0].Operator, preds[0].Tier)
	}
	if preds[0].Column != "name" {
		t.Errorf("column = %q, want name", preds[0].Column)
	}
}

func TestUnqualifiedColumnAttributedToSingleSource(t *testing.T) {
	ex := extract(t, "SELECT a FROM proj.sales.orders WHERE dt >= '2024-01-01'")

	if len(ex.Predicates) != 1 {
		t.Fatalf("expected 1 predicate, got %d", len(ex.Predicates))
	}
	p := ex.Predicates[0]
	if p.Column != "dt" {
		t.Errorf("column = %q, want dt", p.Column)
	}
	if p.Table != "proj.sales.orders" {
		t.Errorf("table = %q, want proj.sales.orders", p.Table)
	}
	if !p.IsDateFilter {
		t.Error("dt >= '2024-01-01' should be a date filter")
	}
}

func TestDateRangeFromTwoBounds(t *testing.T) {
	ex := extract(t, "SELECT a FROM t WHERE dt >= '2020-01-01' AND dt <= '2023-06-01'")

	if len(ex.DateRanges) != 1 {
		t.Fatalf("expected 1 date range, got %d", len(ex.DateRanges))
	}
	dr := ex.DateRanges[0]
	if dr.SpanDays == nil {
		t.Fatal("span should be computed from both bounds")
	}
	if *dr.SpanDays != 1247 {
		t.Errorf("span = %d days, want 1247", *dr.SpanDays)
	}
}

func TestDateRangeFromBetween(t *testing.T) {
	ex := extract(t, "SELECT a FROM t WHERE dt BETWEEN '2020-01-01' AND '2020-06-01'")

	if len(ex.DateRanges) != 1 {
		t.Fatalf("expected 1 date range, got %d", len(ex.DateRanges))
	}
	dr := ex.DateRanges[0]
	if dr.SpanDays == nil {
		t.Fatal("span should be computed from BETWEEN")
	}
	if *dr.SpanDays != 152 {
		t.Errorf("span = %d days, want 152", *dr.SpanDays)
	}
}

func TestSingleSidedLiteralBoundHasNoSpan(t *testing.T) {
	ex := extract(t, "SELECT a FROM t WHERE dt >= '2020-01-01'")

	if len(ex.DateRanges) != 1 {
		t.Fatalf("expected 1 date range, got %d", len(ex.DateRanges))
	}
	if ex.DateRanges[0].SpanDays != nil {
		t.Errorf("single-sided literal bound should have no span, got %d", *ex.DateRanges[0].SpanDays)
	}
}

func TestNowRelativeLowerBoundAnchorsAtNow(t *testing.T) {
	ex := extract(t, "SELECT a FROM t WHERE dt >= DATE_SUB(CURRENT_DATE(), 400)")

	if len(ex.DateRanges) != 1 {
		t.Fatalf("expected 1 date range, got %d", len(ex.DateRanges))
	}
	dr := ex.DateRanges[0]
	if dr.SpanDays == nil {
		t.Fatal("now-relative lower bound should anchor the upper bound at now")
	}
	if *dr.SpanDays != 400 {
		t.Errorf("span = %d days, want 400", *dr.SpanDays)
	}
}

func TestTightestRangeWins(t *testing.T) {
	ex := extract(t, "SELECT a FROM t WHERE dt >= '2020-01-01' AND dt >= '2021-01-01' AND dt <= '2021-03-01'")

	if len(ex.DateRanges) != 1 {
		t.Fatalf("expected 1 date range, got %d", len(ex.DateRanges))
	}
	dr := ex.DateRanges[0]
	if dr.SpanDays == nil {
		t.Fatal("span should be computed")
	}
	// The later lower bound (2021-01-01) wins: 59 days to 2021-03-01.
	if *dr.SpanDays != 59 {
		t.Errorf("span = %d days, want 59", *dr.SpanDays)
	}
}

func TestEqualityBoundYieldsZeroSpan(t *testing.T) {
	ex := extract(t, "SELECT a FROM t WHERE dt = '2024-01-01'")

	if len(ex.DateRanges) != 1 {
		t.Fatalf("expected 1 date range, got %d", len(ex.DateRanges))
	}
	dr := ex.DateRanges[0]
	if dr.SpanDays == nil || *dr.SpanDays != 0 {
		t.Errorf("equality bound should yield a zero-day span, got %v", dr.SpanDays)
	}
}

func TestRangesSeparatePerChain(t *testing.T) {
	ex := extract(t, "SELECT a FROM t1 JOIN t2 ON t1.id = t2.id AND t2.dt >= '2024-01-01' WHERE t1.dt >= '2020-01-01' AND t1.dt <= '2020-02-01'")

	spans := 0
	for _, dr := range ex.DateRanges {
		if dr.SpanDays != nil {
			spans++
		}
	}
	if spans != 1 {
		t.Errorf("bounds must not combine across chains: got %d complete spans, want 1", spans)
	}
}

func TestExtractionIsDeterministic(t *testing.T) {
	sql := "SELECT a FROM t WHERE name LIKE 'x%' AND dt >= '2020-01-01' AND dt <= '2022-01-01' AND id = 7"
	first := extract(t, sql)
	for i := 0; i < 10; i++ {
		again := extract(t, sql)
		if len(again.Predicates) != len(first.Predicates) {
			t.Fatal("predicate count differs across runs")
		}
		for j := range first.Predicates {
			if first.Predicates[j] != again.Predicates[j] {
				t.Fatalf("predicate %d differs across runs", j)
			}
		}
	}
}
