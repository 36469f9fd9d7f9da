package cte

import (
	"testing"

	"github.com/leapstack-labs/leapsql/pkg/dialect"
	"github.com/leapstack-labs/leapsql/pkg/parser"

	_ "github.com/leapstack-labs/leapsql/pkg/dialects/ansi"
)

func parse(t *testing.T, sql string) *parser.SelectStmt {
	t.Helper()
	d, ok := dialect.Get("ansi")
	if !ok {
		t.Fatal("ansi dialect not registered")
	}
	stmt, err := parser.ParseWithDialect(sql, d)
	if err != nil {
		t.Fatalf("parse %q: %v", sql, err)
	}
	return stmt
}

func TestSingleReferenceNotMultiplyReferenced(t *testing.T) {
	g := Build(parse(t, "WITH c AS (SELECT 1 AS x) SELECT x FROM c"))

	count, ok := g.Count("c")
	if !ok {
		t.Fatal("CTE c should be defined")
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if len(g.MultiplyReferenced()) != 0 {
		t.Error("single reference should not be multiply referenced")
	}
}

func TestSelfJoinOnCTECountsTwice(t *testing.T) {
	g := Build(parse(t, "WITH c AS (SELECT 1 AS x) SELECT * FROM c JOIN c AS c2 ON true"))

	count, ok := g.Count("c")
	if !ok {
		t.Fatal("CTE c should be defined")
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	multi := g.MultiplyReferenced()
	if multi["c"] != 2 {
		t.Errorf("MultiplyReferenced()[c] = %d, want 2", multi["c"])
	}
}

func TestReferenceFromAnotherCTECounts(t *testing.T) {
	g := Build(parse(t, "WITH a AS (SELECT 1 AS x), b AS (SELECT x FROM a) SELECT x FROM a JOIN b ON true"))

	count, _ := g.Count("a")
	if count != 2 {
		t.Errorf("a referenced from b and from the main body: count = %d, want 2", count)
	}
	count, _ = g.Count("b")
	if count != 1 {
		t.Errorf("b count = %d, want 1", count)
	}
}

func TestBaseTableWithSameNameElsewhereDoesNotCount(t *testing.T) {
	// Only unqualified references can point at the CTE.
	g := Build(parse(t, "WITH orders AS (SELECT 1 AS x) SELECT x FROM orders JOIN sales.orders ON true"))

	count, _ := g.Count("orders")
	if count != 1 {
		t.Errorf("qualified sales.orders must not count: count = %d, want 1", count)
	}
}

func TestHintsSortedByName(t *testing.T) {
	g := Build(parse(t, "WITH z AS (SELECT 1 AS x), a AS (SELECT 2 AS y) SELECT * FROM z JOIN z AS z2 ON true JOIN a ON true JOIN a AS a2 ON true"))

	hints := g.Hints()
	if len(hints) != 2 {
		t.Fatalf("expected 2 hints, got %d", len(hints))
	}
	if hints[0].Name != "a" || hints[1].Name != "z" {
		t.Errorf("hints should be name-sorted, got %v", hints)
	}
	if hints[0].Count != 2 || hints[1].Count != 2 {
		t.Errorf("both CTEs referenced twice, got %v", hints)
	}
}

func TestUndefinedCTE(t *testing.T) {
	g := Build(parse(t, "SELECT a FROM t"))
	if _, ok := g.Count("missing"); ok {
		t.Error("undefined name should report ok=false")
	}
	if len(g.Defined()) != 0 {
		t.Errorf("no CTEs defined, got %v", g.Defined())
	}
}
