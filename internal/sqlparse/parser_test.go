package sqlparse

import (
	"strings"
	"testing"
)

func TestNewParserUnknownDialect(t *testing.T) {
	_, err := NewParser("no-such-dialect")
	if err == nil {
		t.Fatal("expected error for unknown dialect")
	}
	if !strings.Contains(err.Error(), "no-such-dialect") {
		t.Errorf("error should name the dialect: %v", err)
	}
}

func TestParseScriptSingleStatement(t *testing.T) {
	p, err := NewParser("ansi")
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}

	stmts, err := p.ParseScript("SELECT id FROM users WHERE id = 1")
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	if stmts[0].Tree == nil {
		t.Fatal("statement tree is nil")
	}
}

func TestParseScriptSplitsMultipleStatements(t *testing.T) {
	p, err := NewParser("ansi")
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}

	script := "SELECT a FROM t1; SELECT b FROM t2;"
	stmts, err := p.ParseScript(script)
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}
	if stmts[0].Index == stmts[1].Index {
		t.Error("statements should keep distinct indexes")
	}
}

func TestParseScriptSkipsScriptControlStatements(t *testing.T) {
	p, err := NewParser("ansi")
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}

	script := "SET search_path = analytics; SELECT a FROM t1"
	stmts, err := p.ParseScript(script)
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("expected only the SELECT, got %d statements", len(stmts))
	}
	if !strings.HasPrefix(stmts[0].Text, "SELECT") {
		t.Errorf("kept statement should be the SELECT, got %q", stmts[0].Text)
	}
}

func TestParseScriptWithCTE(t *testing.T) {
	p, err := NewParser("ansi")
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}

	stmts, err := p.ParseScript("WITH c AS (SELECT 1 AS x) SELECT x FROM c")
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	if stmts[0].Tree.With == nil {
		t.Error("WITH clause should be preserved in the tree")
	}
}

func TestParseScriptFailsWholeScriptOnBadStatement(t *testing.T) {
	p, err := NewParser("ansi")
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}

	_, err = p.ParseScript("SELECT a FROM t1; SELECT FROM WHERE")
	if err == nil {
		t.Fatal("expected error when one statement fails to parse")
	}
}

func TestWalkVisitsWhereSubqueries(t *testing.T) {
	p, err := NewParser("ansi")
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	stmts, err := p.ParseScript("SELECT a FROM t1 WHERE a IN (SELECT b FROM t2)")
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}

	cores := AllCores(stmts[0].Tree)
	if len(cores) != 2 {
		t.Errorf("expected outer core plus subquery core, got %d", len(cores))
	}
	main := MainCores(stmts[0].Tree)
	if len(main) != 1 {
		t.Errorf("expected 1 main core, got %d", len(main))
	}
}

func TestMainCoresCoversUnionBranches(t *testing.T) {
	p, err := NewParser("ansi")
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	stmts, err := p.ParseScript("SELECT a FROM t1 UNION ALL SELECT a FROM t2")
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}

	main := MainCores(stmts[0].Tree)
	if len(main) != 2 {
		t.Errorf("expected both union branches, got %d cores", len(main))
	}
}
