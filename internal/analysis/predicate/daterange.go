package predicate

import (
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leapsql/pkg/parser"
	"github.com/leapstack-labs/leapsql/pkg/token"

	"github.com/gazer-labs/sqlgazer/internal/analysis/tableref"
)

// bound is one side of a date comparison. relative marks bounds derived
// from the current date (CURRENT_DATE, DATE_SUB(CURRENT_DATE(), n)).
type bound struct {
	at       time.Time
	relative bool
}

// columnBounds accumulates the bounds seen for one column in one chain.
// The effective range is the tightest one: the latest lower bound and the
// earliest upper bound.
type columnBounds struct {
	column string
	table  string
	lower  *bound
	upper  *bound
}

type boundSet struct {
	order []string
	cols  map[string]*columnBounds
}

func newBoundSet() *boundSet {
	return &boundSet{cols: make(map[string]*columnBounds)}
}

func (b *boundSet) get(col *parser.ColumnRef, scope *tableref.Scope) *columnBounds {
	key := strings.ToLower(render(col))
	cb, ok := b.cols[key]
	if !ok {
		cb = &columnBounds{
			column: key,
			table:  ownerTable(col, scope),
		}
		b.cols[key] = cb
		b.order = append(b.order, key)
	}
	return cb
}

func (cb *columnBounds) addLower(v bound) {
	if cb.lower == nil || v.at.After(cb.lower.at) {
		cb.lower = &v
	}
}

func (cb *columnBounds) addUpper(v bound) {
	if cb.upper == nil || v.at.Before(cb.upper.at) {
		cb.upper = &v
	}
}

// collectBounds inspects one AND-chain leaf for date bounds on a column.
func collectBounds(leaf parser.Expr, scope *tableref.Scope, now time.Time, set *boundSet) {
	switch n := leaf.(type) {
	case *parser.BinaryExpr:
		col, value, op := orientComparison(n)
		if col == nil {
			return
		}
		v, relative, ok := evalDate(value, now)
		if !ok {
			return
		}
		cb := set.get(col, scope)
		switch op {
		case token.GE, token.GT:
			cb.addLower(bound{at: v, relative: relative})
		case token.LE, token.LT:
			cb.addUpper(bound{at: v, relative: relative})
		case token.EQ:
			cb.addLower(bound{at: v, relative: relative})
			cb.addUpper(bound{at: v, relative: relative})
		}

	case *parser.BetweenExpr:
		col := firstColumn(n.Expr)
		if col == nil || n.Not {
			return
		}
		low, lowRel, lowOK := evalDate(n.Low, now)
		high, highRel, highOK := evalDate(n.High, now)
		if !lowOK && !highOK {
			return
		}
		cb := set.get(col, scope)
		if lowOK {
			cb.addLower(bound{at: low, relative: lowRel})
		}
		if highOK {
			cb.addUpper(bound{at: high, relative: highRel})
		}
	}
}

// orientComparison normalizes a comparison so the column is on the left.
// Returns nil when neither side is a plain column or both sides are.
func orientComparison(n *parser.BinaryExpr) (*parser.ColumnRef, parser.Expr, token.TokenType) {
	switch n.Op {
	case token.EQ, token.GE, token.GT, token.LE, token.LT:
	default:
		return nil, nil, n.Op
	}

	left := firstColumn(n.Left)
	right := firstColumn(n.Right)
	switch {
	case left != nil && right == nil:
		return left, n.Right, n.Op
	case left == nil && right != nil:
		return right, n.Left, flipOp(n.Op)
	default:
		return nil, nil, n.Op
	}
}

func flipOp(op token.TokenType) token.TokenType {
	switch op {
	case token.GE:
		return token.LE
	case token.GT:
		return token.LT
	case token.LE:
		return token.GE
	case token.LT:
		return token.GT
	default:
		return op
	}
}

// ranges materializes the chain's accumulated bounds in first-seen order.
// A single-sided literal bound yields no span; a single lower bound that is
// anchored at the current date spans to now.
func (b *boundSet) ranges(chain int, now time.Time) []DateRange {
	var out []DateRange
	for _, key := range b.order {
		cb := b.cols[key]
		dr := DateRange{Chain: chain, Column: cb.column, Table: cb.table}

		lower, upper := cb.lower, cb.upper
		if upper == nil && lower != nil && lower.relative {
			upper = &bound{at: dateOnly(now)}
		}

		if lower != nil {
			t := lower.at
			dr.Lower = &t
		}
		if upper != nil {
			t := upper.at
			dr.Upper = &t
		}
		if dr.Lower != nil && dr.Upper != nil {
			days := int(dr.Upper.Sub(*dr.Lower).Hours() / 24)
			if days >= 0 {
				dr.SpanDays = &days
			}
		}
		out = append(out, dr)
	}
	return out
}

var dateFuncsNow = map[string]bool{
	"CURRENT_DATE":      true,
	"CURRENT_TIMESTAMP": true,
	"CURRENT_DATETIME":  true,
	"NOW":               true,
	"GETDATE":           true,
}

var dateFuncsCast = map[string]bool{
	"DATE":      true,
	"DATETIME":  true,
	"TIMESTAMP": true,
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"20060102",
}

// evalDate evaluates an expression to a point in time where possible.
// relative is true when the value is derived from the current date.
func evalDate(expr parser.Expr, now time.Time) (time.Time, bool, bool) {
	switch n := expr.(type) {
	case *parser.Literal:
		if n.Type != parser.LiteralString {
			return time.Time{}, false, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, n.Value); err == nil {
				return t, false, true
			}
		}
		return time.Time{}, false, false

	case *parser.ColumnRef:
		// Bare CURRENT_DATE keyword without parentheses.
		if n.Table == "" && dateFuncsNow[strings.ToUpper(n.Column)] {
			return dateOnly(now), true, true
		}
		return time.Time{}, false, false

	case *parser.ParenExpr:
		return evalDate(n.Expr, now)

	case *parser.CastExpr:
		return evalDate(n.Expr, now)

	case *parser.FuncCall:
		name := strings.ToUpper(n.Name)
		if dateFuncsNow[name] {
			return dateOnly(now), true, true
		}
		if dateFuncsCast[name] && len(n.Args) >= 1 {
			return evalDate(n.Args[0], now)
		}
		// DATE_SUB(base, n) / DATE_ADD(base, n) with a plain day count.
		// The INTERVAL keyword form is dialect syntax the parser
		// rejects, so only the numeric form is evaluated.
		if (name == "DATE_SUB" || name == "DATE_ADD") && len(n.Args) == 2 {
			base, relative, ok := evalDate(n.Args[0], now)
			if !ok {
				return time.Time{}, false, false
			}
			days, ok := evalDays(n.Args[1])
			if !ok {
				return time.Time{}, false, false
			}
			if name == "DATE_SUB" {
				days = -days
			}
			return base.AddDate(0, 0, days), relative, true
		}
		return time.Time{}, false, false

	case *parser.BinaryExpr:
		// CURRENT_DATE() - n and date arithmetic.
		if n.Op != token.MINUS && n.Op != token.PLUS {
			return time.Time{}, false, false
		}
		base, relative, ok := evalDate(n.Left, now)
		if !ok {
			return time.Time{}, false, false
		}
		days, ok := evalDays(n.Right)
		if !ok {
			return time.Time{}, false, false
		}
		if n.Op == token.MINUS {
			days = -days
		}
		return base.AddDate(0, 0, days), relative, true
	}
	return time.Time{}, false, false
}

// evalDays evaluates a day-count operand: a numeric literal or
// INTERVAL-like function wrapping one.
func evalDays(expr parser.Expr) (int, bool) {
	switch n := expr.(type) {
	case *parser.Literal:
		if n.Type != parser.LiteralNumber {
			return 0, false
		}
		v, err := strconv.Atoi(n.Value)
		if err != nil {
			return 0, false
		}
		return v, true
	case *parser.ParenExpr:
		return evalDays(n.Expr)
	case *parser.CastExpr:
		return evalDays(n.Expr)
	case *parser.UnaryExpr:
		v, ok := evalDays(n.Expr)
		if !ok {
			return 0, false
		}
		if n.Op == token.MINUS {
			return -v, true
		}
		return v, true
	}
	return 0, false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
