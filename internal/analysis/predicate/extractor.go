// Package predicate flattens WHERE and JOIN condition trees into ordered
// leaf predicates with selectivity tiers and extracted date ranges.
//
// Only AND chains are flattened. An OR-connected subtree is kept as one
// opaque predicate: reordering inside OR carries no cost signal.
package predicate

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/leapsql/pkg/parser"
	"github.com/leapstack-labs/leapsql/pkg/token"

	"github.com/gazer-labs/sqlgazer/internal/analysis/tableref"
	"github.com/gazer-labs/sqlgazer/internal/sqlparse"
)

// Tier ranks how strongly a predicate narrows the candidate row set.
type Tier int

const (
	// TierHigh covers equality and range comparisons plus explicit date
	// bounds.
	TierHigh Tier = iota

	// TierModerate covers membership lists and everything without a
	// stronger signal.
	TierModerate

	// TierLow covers pattern matching: LIKE and regular expressions.
	TierLow
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierModerate:
		return "moderate"
	case TierLow:
		return "low"
	default:
		return "unknown"
	}
}

// Predicate is one flattened leaf of an AND chain.
type Predicate struct {
	// Chain identifies the WHERE clause or JOIN condition the leaf came
	// from. Position is the leaf's source order within that chain.
	Chain    int
	Position int

	// Operator is the leaf's operator shape: "=", ">=", "IN", "LIKE",
	// "REGEXP", "OR" for opaque OR subtrees.
	Operator string

	// Column is the leading referenced column name, lowercased, without
	// qualifier. Empty when the leaf references no column.
	Column string

	// Table is the resolved qualified table name the column belongs to,
	// lowercased. Empty when the owner could not be determined.
	Table string

	Tier Tier

	// ColumnToColumn marks comparisons between two column references,
	// i.e. join keys rather than standalone filter bounds.
	ColumnToColumn bool

	// RightColumn and RightTable record the second side of a
	// column-to-column comparison. A join key prunes partitions on
	// either side, so both columns must stay visible.
	RightColumn string
	RightTable  string

	// IsDateFilter marks comparisons of a column against a date literal
	// or date function.
	IsDateFilter bool

	// Text is a short rendering of the leaf for helper payloads.
	Text string
}

// DateRange is the combined date bound for one column within one AND chain.
type DateRange struct {
	Chain  int
	Column string
	Table  string
	Lower  *time.Time
	Upper  *time.Time

	// SpanDays is the whole-day distance between the bounds. Nil when a
	// side is unbounded.
	SpanDays *int
}

// Extraction holds every flattened predicate and date range of one
// statement.
type Extraction struct {
	Predicates []Predicate
	DateRanges []DateRange
	chains     int
}

// Chains returns the number of AND chains seen.
func (e *Extraction) Chains() int { return e.chains }

// ChainPredicates returns the chain's predicates in source order.
func (e *Extraction) ChainPredicates(chain int) []Predicate {
	var out []Predicate
	for _, p := range e.Predicates {
		if p.Chain == chain {
			out = append(out, p)
		}
	}
	return out
}

// Extract flattens all WHERE clauses and JOIN conditions of a statement.
// The reference time anchors now-relative date expressions such as
// DATE_SUB(CURRENT_DATE(), n) so evaluation stays deterministic per run.
func Extract(stmt *parser.SelectStmt, res *tableref.Resolution, now time.Time) *Extraction {
	ex := &Extraction{}
	for _, core := range sqlparse.AllCores(stmt) {
		var scope *tableref.Scope
		if res != nil {
			scope = res.ScopeOf(core)
		}
		if core.Where != nil {
			ex.addChain(core.Where, scope, now)
		}
		if core.From != nil {
			for _, join := range core.From.Joins {
				if join.Condition != nil {
					ex.addChain(join.Condition, scope, now)
				}
			}
		}
	}
	return ex
}

func (ex *Extraction) addChain(expr parser.Expr, scope *tableref.Scope, now time.Time) {
	chain := ex.chains
	ex.chains++

	leaves := flattenAnd(expr)
	bounds := newBoundSet()

	for i, leaf := range leaves {
		p := classify(leaf, scope)
		p.Chain = chain
		p.Position = i
		ex.Predicates = append(ex.Predicates, p)
		collectBounds(leaf, scope, now, bounds)
	}

	ex.DateRanges = append(ex.DateRanges, bounds.ranges(chain, now)...)
}

// flattenAnd splits an expression on AND, preserving source order.
// Parentheses around nested ANDs are transparent; OR stays opaque.
func flattenAnd(expr parser.Expr) []parser.Expr {
	switch n := expr.(type) {
	case *parser.BinaryExpr:
		if n.Op == token.AND {
			return append(flattenAnd(n.Left), flattenAnd(n.Right)...)
		}
	case *parser.ParenExpr:
		if inner, ok := n.Expr.(*parser.BinaryExpr); ok && inner.Op == token.AND {
			return flattenAnd(n.Expr)
		}
	}
	if expr == nil {
		return nil
	}
	return []parser.Expr{expr}
}

var regexpFuncs = map[string]bool{
	"REGEXP_CONTAINS": true,
	"REGEXP_LIKE":     true,
	"REGEXP_MATCHES":  true,
	"RLIKE":           true,
}

func classify(leaf parser.Expr, scope *tableref.Scope) Predicate {
	p := Predicate{Tier: TierModerate, Text: render(leaf)}

	switch n := leaf.(type) {
	case *parser.BinaryExpr:
		p.Operator = n.Op.String()
		if n.Op == token.OR {
			p.Operator = "OR"
			return p
		}
		switch n.Op {
		case token.EQ, token.LT, token.GT, token.LE, token.GE:
			p.Tier = TierHigh
		}
		left := firstColumn(n.Left)
		right := firstColumn(n.Right)
		switch {
		case left != nil && right != nil:
			p.ColumnToColumn = true
			setColumn(&p, left, scope)
			p.RightColumn = strings.ToLower(right.Column)
			p.RightTable = ownerTable(right, scope)
		case left != nil:
			setColumn(&p, left, scope)
			if _, _, ok := evalDate(n.Right, time.Time{}); ok {
				p.IsDateFilter = true
			}
		case right != nil:
			setColumn(&p, right, scope)
			if _, _, ok := evalDate(n.Left, time.Time{}); ok {
				p.IsDateFilter = true
			}
		}
		if !p.ColumnToColumn {
			if op, col, ok := patternIn(n.Left); ok {
				applyPattern(&p, op, col, scope)
			} else if op, col, ok := patternIn(n.Right); ok {
				applyPattern(&p, op, col, scope)
			}
		}

	case *parser.BetweenExpr:
		p.Operator = "BETWEEN"
		p.Tier = TierHigh
		if col := firstColumn(n.Expr); col != nil {
			setColumn(&p, col, scope)
			if _, _, ok := evalDate(n.Low, time.Time{}); ok {
				p.IsDateFilter = true
			}
		}

	case *parser.InExpr:
		p.Operator = "IN"
		if col := firstColumn(n.Expr); col != nil {
			setColumn(&p, col, scope)
		}

	case *parser.LikeExpr:
		p.Operator = "LIKE"
		p.Tier = TierLow
		if col := firstColumn(n.Expr); col != nil {
			setColumn(&p, col, scope)
		}

	case *parser.FuncCall:
		p.Operator = n.Name
		if regexpFuncs[n.Name] {
			p.Operator = "REGEXP"
			p.Tier = TierLow
		}
		if len(n.Args) > 0 {
			if col := firstColumn(n.Args[0]); col != nil {
				setColumn(&p, col, scope)
			}
		}

	case *parser.IsNullExpr:
		p.Operator = "IS NULL"
		if col := firstColumn(n.Expr); col != nil {
			setColumn(&p, col, scope)
		}

	case *parser.IsBoolExpr:
		p.Operator = "IS"
		if col := firstColumn(n.Expr); col != nil {
			setColumn(&p, col, scope)
		}

	case *parser.UnaryExpr:
		p.Operator = "NOT"
		if op, col, ok := patternIn(n.Expr); ok {
			applyPattern(&p, op, col, scope)
		}

	case *parser.ExistsExpr:
		p.Operator = "EXISTS"

	default:
		p.Operator = "EXPR"
	}

	return p
}

// patternIn finds a LIKE or regular-expression match anywhere inside a
// leaf, short of subqueries. A pattern wrapped in NOT or a comparison
// still carries its low-selectivity signal.
func patternIn(expr parser.Expr) (string, *parser.ColumnRef, bool) {
	switch n := expr.(type) {
	case *parser.LikeExpr:
		return "LIKE", firstColumn(n.Expr), true
	case *parser.FuncCall:
		if regexpFuncs[n.Name] {
			var col *parser.ColumnRef
			if len(n.Args) > 0 {
				col = firstColumn(n.Args[0])
			}
			return "REGEXP", col, true
		}
		for _, arg := range n.Args {
			if op, col, ok := patternIn(arg); ok {
				return op, col, true
			}
		}
	case *parser.UnaryExpr:
		return patternIn(n.Expr)
	case *parser.ParenExpr:
		return patternIn(n.Expr)
	case *parser.CastExpr:
		return patternIn(n.Expr)
	case *parser.BinaryExpr:
		if op, col, ok := patternIn(n.Left); ok {
			return op, col, true
		}
		return patternIn(n.Right)
	}
	return "", nil, false
}

func applyPattern(p *Predicate, op string, col *parser.ColumnRef, scope *tableref.Scope) {
	p.Operator = op
	p.Tier = TierLow
	if col != nil {
		setColumn(p, col, scope)
	}
}

func setColumn(p *Predicate, col *parser.ColumnRef, scope *tableref.Scope) {
	p.Column = strings.ToLower(col.Column)
	p.Table = ownerTable(col, scope)
}

// ownerTable resolves a column's qualifier to the qualified table name it
// refers to. An unqualified column in a single-source scope is attributed
// to that source.
func ownerTable(col *parser.ColumnRef, scope *tableref.Scope) string {
	if col.Table != "" {
		if scope != nil {
			if ref := scope.ResolveAlias(col.Table); ref != nil {
				return strings.ToLower(ref.QualifiedName)
			}
		}
		return strings.ToLower(col.Table)
	}
	if scope != nil && len(scope.Refs) == 1 {
		return strings.ToLower(scope.Refs[0].QualifiedName)
	}
	return ""
}

// firstColumn finds the leading column reference of an expression,
// unwrapping parentheses, casts, arithmetic, and function calls such as
// DATE(col). It never descends into subqueries.
func firstColumn(expr parser.Expr) *parser.ColumnRef {
	switch n := expr.(type) {
	case *parser.ColumnRef:
		// A bare CURRENT_DATE keyword parses as a column reference.
		if n.Table == "" && dateFuncsNow[strings.ToUpper(n.Column)] {
			return nil
		}
		return n
	case *parser.ParenExpr:
		return firstColumn(n.Expr)
	case *parser.CastExpr:
		return firstColumn(n.Expr)
	case *parser.UnaryExpr:
		return firstColumn(n.Expr)
	case *parser.BinaryExpr:
		if c := firstColumn(n.Left); c != nil {
			return c
		}
		return firstColumn(n.Right)
	case *parser.FuncCall:
		for _, arg := range n.Args {
			if c := firstColumn(arg); c != nil {
				return c
			}
		}
	}
	return nil
}

// render produces a short textual form of a leaf for helper payloads.
func render(expr parser.Expr) string {
	switch n := expr.(type) {
	case *parser.ColumnRef:
		if n.Table != "" {
			return n.Table + "." + n.Column
		}
		return n.Column
	case *parser.Literal:
		if n.Type == parser.LiteralString {
			return "'" + n.Value + "'"
		}
		return n.Value
	case *parser.BinaryExpr:
		return fmt.Sprintf("%s %s %s", render(n.Left), n.Op.String(), render(n.Right))
	case *parser.UnaryExpr:
		return fmt.Sprintf("%s %s", n.Op.String(), render(n.Expr))
	case *parser.ParenExpr:
		return "(" + render(n.Expr) + ")"
	case *parser.CastExpr:
		return fmt.Sprintf("CAST(%s AS %s)", render(n.Expr), n.TypeName)
	case *parser.FuncCall:
		args := make([]string, 0, len(n.Args))
		if n.Star {
			args = append(args, "*")
		}
		for _, a := range n.Args {
			args = append(args, render(a))
		}
		return n.Name + "(" + strings.Join(args, ", ") + ")"
	case *parser.BetweenExpr:
		return fmt.Sprintf("%s BETWEEN %s AND %s", render(n.Expr), render(n.Low), render(n.High))
	case *parser.InExpr:
		if n.Query != nil {
			return render(n.Expr) + " IN (subquery)"
		}
		vals := make([]string, 0, len(n.Values))
		for _, v := range n.Values {
			vals = append(vals, render(v))
		}
		return render(n.Expr) + " IN (" + strings.Join(vals, ", ") + ")"
	case *parser.LikeExpr:
		return fmt.Sprintf("%s LIKE %s", render(n.Expr), render(n.Pattern))
	case *parser.IsNullExpr:
		if n.Not {
			return render(n.Expr) + " IS NOT NULL"
		}
		return render(n.Expr) + " IS NULL"
	case *parser.StarExpr:
		return "*"
	case nil:
		return ""
	default:
		return fmt.Sprintf("<%T>", expr)
	}
}
