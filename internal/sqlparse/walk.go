package sqlparse

import (
	"github.com/leapstack-labs/leapsql/pkg/parser"
)

// Walk traverses a syntax tree depth-first and calls fn for each node.
// If fn returns false, traversal below that node stops.
func Walk(node any, fn func(node any) bool) {
	if node == nil {
		return
	}
	if !fn(node) {
		return
	}
	walkChildren(node, fn)
}

func walkChildren(node any, fn func(node any) bool) {
	switch n := node.(type) {
	case *parser.SelectStmt:
		if n == nil {
			return
		}
		Walk(n.With, fn)
		Walk(n.Body, fn)

	case *parser.WithClause:
		if n == nil {
			return
		}
		for _, cte := range n.CTEs {
			Walk(cte, fn)
		}

	case *parser.CTE:
		if n == nil {
			return
		}
		Walk(n.Select, fn)

	case *parser.SelectBody:
		if n == nil {
			return
		}
		Walk(n.Left, fn)
		Walk(n.Right, fn)

	case *parser.SelectCore:
		if n == nil {
			return
		}
		for _, col := range n.Columns {
			Walk(col.Expr, fn)
		}
		Walk(n.From, fn)
		Walk(n.Where, fn)
		for _, expr := range n.GroupBy {
			Walk(expr, fn)
		}
		Walk(n.Having, fn)
		for _, item := range n.OrderBy {
			Walk(item.Expr, fn)
		}
		Walk(n.Limit, fn)
		Walk(n.Offset, fn)

	case *parser.FromClause:
		if n == nil {
			return
		}
		Walk(n.Source, fn)
		for _, join := range n.Joins {
			Walk(join, fn)
		}

	case *parser.Join:
		if n == nil {
			return
		}
		Walk(n.Right, fn)
		Walk(n.Condition, fn)

	case *parser.DerivedTable:
		if n == nil {
			return
		}
		Walk(n.Select, fn)

	case *parser.LateralTable:
		if n == nil {
			return
		}
		Walk(n.Select, fn)

	case *parser.BinaryExpr:
		if n == nil {
			return
		}
		Walk(n.Left, fn)
		Walk(n.Right, fn)

	case *parser.UnaryExpr:
		if n == nil {
			return
		}
		Walk(n.Expr, fn)

	case *parser.FuncCall:
		if n == nil {
			return
		}
		for _, arg := range n.Args {
			Walk(arg, fn)
		}
		Walk(n.Filter, fn)

	case *parser.CaseExpr:
		if n == nil {
			return
		}
		Walk(n.Operand, fn)
		for _, when := range n.Whens {
			Walk(when.Condition, fn)
			Walk(when.Result, fn)
		}
		Walk(n.Else, fn)

	case *parser.CastExpr:
		if n == nil {
			return
		}
		Walk(n.Expr, fn)

	case *parser.InExpr:
		if n == nil {
			return
		}
		Walk(n.Expr, fn)
		for _, v := range n.Values {
			Walk(v, fn)
		}
		Walk(n.Query, fn)

	case *parser.BetweenExpr:
		if n == nil {
			return
		}
		Walk(n.Expr, fn)
		Walk(n.Low, fn)
		Walk(n.High, fn)

	case *parser.IsNullExpr:
		if n == nil {
			return
		}
		Walk(n.Expr, fn)

	case *parser.IsBoolExpr:
		if n == nil {
			return
		}
		Walk(n.Expr, fn)

	case *parser.LikeExpr:
		if n == nil {
			return
		}
		Walk(n.Expr, fn)
		Walk(n.Pattern, fn)

	case *parser.ParenExpr:
		if n == nil {
			return
		}
		Walk(n.Expr, fn)

	case *parser.SubqueryExpr:
		if n == nil {
			return
		}
		Walk(n.Select, fn)

	case *parser.ExistsExpr:
		if n == nil {
			return
		}
		Walk(n.Select, fn)

	// Leaf nodes
	case *parser.TableName, *parser.ColumnRef, *parser.Literal,
		*parser.StarExpr, *parser.MacroExpr, *parser.MacroTable:
	}
}

// OuterCore extracts the outermost SelectCore of a statement.
// Returns nil for malformed trees.
func OuterCore(stmt *parser.SelectStmt) *parser.SelectCore {
	if stmt == nil || stmt.Body == nil {
		return nil
	}
	return stmt.Body.Left
}

// MainCores returns the SelectCore nodes of the statement's main body,
// covering every UNION branch but not CTE bodies or derived tables.
func MainCores(stmt *parser.SelectStmt) []*parser.SelectCore {
	if stmt == nil {
		return nil
	}
	var cores []*parser.SelectCore
	for body := stmt.Body; body != nil; body = body.Right {
		if body.Left != nil {
			cores = append(cores, body.Left)
		}
	}
	return cores
}

// AllCores returns every SelectCore in the tree, including CTE bodies,
// derived tables, and subquery expressions.
func AllCores(stmt *parser.SelectStmt) []*parser.SelectCore {
	var cores []*parser.SelectCore
	Walk(stmt, func(node any) bool {
		if sc, ok := node.(*parser.SelectCore); ok {
			cores = append(cores, sc)
		}
		return true
	})
	return cores
}

// CollectFuncCalls returns all function calls under the given node.
func CollectFuncCalls(node any) []*parser.FuncCall {
	var funcs []*parser.FuncCall
	Walk(node, func(n any) bool {
		if fc, ok := n.(*parser.FuncCall); ok {
			funcs = append(funcs, fc)
		}
		return true
	})
	return funcs
}
