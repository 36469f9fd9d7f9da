// Package tableref resolves the table references of a parsed query.
//
// Each query scope (the main body, every CTE body, every derived table and
// expression subquery) gets its own scope node holding the references
// visible there. References are classified as base tables, CTEs, or
// subqueries; unaliased references use their own qualified name as the
// effective alias.
package tableref

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/parser"
)

// Kind classifies what a table reference points at.
type Kind int

const (
	KindBase Kind = iota
	KindCTE
	KindSubquery
)

func (k Kind) String() string {
	switch k {
	case KindBase:
		return "base"
	case KindCTE:
		return "cte"
	case KindSubquery:
		return "subquery"
	default:
		return "unknown"
	}
}

// Reference is one table reference in one scope.
type Reference struct {
	// QualifiedName is the referenced name: the dotted table name for
	// base tables, the CTE name for CTE references, the alias for
	// derived tables.
	QualifiedName string

	// Alias is the effective alias: the declared alias, or the
	// qualified name when none was declared.
	Alias string

	Kind    Kind
	ScopeID int
}

// Scope is one nesting level of the query. Scope 0 is the main body.
type Scope struct {
	ID       int
	Parent   *Scope
	Children []*Scope
	Refs     []Reference
}

// ResolveAlias finds the reference a column qualifier points at, searching
// this scope first and then enclosing scopes (correlated subqueries).
func (s *Scope) ResolveAlias(alias string) *Reference {
	needle := strings.ToLower(alias)
	for sc := s; sc != nil; sc = sc.Parent {
		for i := range sc.Refs {
			if strings.ToLower(sc.Refs[i].Alias) == needle ||
				strings.ToLower(sc.Refs[i].QualifiedName) == needle {
				return &sc.Refs[i]
			}
		}
	}
	return nil
}

// Resolution is the full scope tree for one statement.
type Resolution struct {
	Scopes []*Scope

	// coreScopes maps each SELECT core to the scope its FROM clause
	// populates, so the predicate extractor can resolve aliases.
	coreScopes map[*parser.SelectCore]*Scope
}

// Root returns the main-body scope.
func (r *Resolution) Root() *Scope {
	if len(r.Scopes) == 0 {
		return nil
	}
	return r.Scopes[0]
}

// ScopeOf returns the scope a SELECT core's references live in.
func (r *Resolution) ScopeOf(core *parser.SelectCore) *Scope {
	return r.coreScopes[core]
}

// All returns every reference in scope order.
func (r *Resolution) All() []Reference {
	var refs []Reference
	for _, sc := range r.Scopes {
		refs = append(refs, sc.Refs...)
	}
	return refs
}

// BaseTables returns the distinct qualified names of all base table
// references, sorted.
func (r *Resolution) BaseTables() []string {
	seen := make(map[string]bool)
	for _, ref := range r.All() {
		if ref.Kind == KindBase {
			seen[strings.ToLower(ref.QualifiedName)] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve builds the scope tree for one parsed statement.
func Resolve(stmt *parser.SelectStmt) (*Resolution, error) {
	r := &Resolution{coreScopes: make(map[*parser.SelectCore]*Scope)}
	root := r.newScope(nil)
	if err := r.resolveStmt(stmt, root, nil); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resolution) newScope(parent *Scope) *Scope {
	sc := &Scope{ID: len(r.Scopes), Parent: parent}
	r.Scopes = append(r.Scopes, sc)
	if parent != nil {
		parent.Children = append(parent.Children, sc)
	}
	return sc
}

// resolveStmt resolves a statement into the given scope. CTE names become
// visible to sibling CTE bodies and to the statement's own body.
func (r *Resolution) resolveStmt(stmt *parser.SelectStmt, scope *Scope, outerCTEs map[string]bool) error {
	if stmt == nil {
		return nil
	}

	ctes := make(map[string]bool, len(outerCTEs))
	for name := range outerCTEs {
		ctes[name] = true
	}

	if stmt.With != nil {
		for _, cte := range stmt.With.CTEs {
			ctes[strings.ToLower(cte.Name)] = true
		}
		for _, cte := range stmt.With.CTEs {
			child := r.newScope(scope)
			if err := r.resolveStmt(cte.Select, child, ctes); err != nil {
				return err
			}
		}
	}

	for body := stmt.Body; body != nil; body = body.Right {
		if err := r.resolveCore(body.Left, scope, ctes); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolution) resolveCore(core *parser.SelectCore, scope *Scope, ctes map[string]bool) error {
	if core == nil {
		return nil
	}
	r.coreScopes[core] = scope

	if core.From != nil {
		if core.From.Source == nil {
			return fmt.Errorf("tableref: FROM clause has no source")
		}
		if err := r.addRef(core.From.Source, scope, ctes); err != nil {
			return err
		}
		for _, join := range core.From.Joins {
			if join.Right == nil {
				return fmt.Errorf("tableref: join has no right-hand table")
			}
			if err := r.addRef(join.Right, scope, ctes); err != nil {
				return err
			}
			if err := r.resolveExprSubqueries(join.Condition, scope, ctes); err != nil {
				return err
			}
		}
	}

	for _, col := range core.Columns {
		if err := r.resolveExprSubqueries(col.Expr, scope, ctes); err != nil {
			return err
		}
	}
	if err := r.resolveExprSubqueries(core.Where, scope, ctes); err != nil {
		return err
	}
	return r.resolveExprSubqueries(core.Having, scope, ctes)
}

func (r *Resolution) addRef(ref parser.TableRef, scope *Scope, ctes map[string]bool) error {
	switch t := ref.(type) {
	case *parser.TableName:
		name := qualifiedName(t)
		kind := KindBase
		if t.Catalog == "" && t.Schema == "" && ctes[strings.ToLower(t.Name)] {
			kind = KindCTE
		}
		alias := t.Alias
		if alias == "" {
			alias = name
		}
		scope.Refs = append(scope.Refs, Reference{
			QualifiedName: name,
			Alias:         alias,
			Kind:          kind,
			ScopeID:       scope.ID,
		})
		return nil

	case *parser.DerivedTable:
		scope.Refs = append(scope.Refs, Reference{
			QualifiedName: t.Alias,
			Alias:         t.Alias,
			Kind:          KindSubquery,
			ScopeID:       scope.ID,
		})
		child := r.newScope(scope)
		return r.resolveStmt(t.Select, child, ctes)

	case *parser.LateralTable:
		scope.Refs = append(scope.Refs, Reference{
			QualifiedName: t.Alias,
			Alias:         t.Alias,
			Kind:          KindSubquery,
			ScopeID:       scope.ID,
		})
		child := r.newScope(scope)
		return r.resolveStmt(t.Select, child, ctes)

	case *parser.MacroTable:
		scope.Refs = append(scope.Refs, Reference{
			QualifiedName: t.Content,
			Alias:         t.Alias,
			Kind:          KindBase,
			ScopeID:       scope.ID,
		})
		return nil

	default:
		return fmt.Errorf("tableref: unsupported table reference %T", ref)
	}
}

// resolveExprSubqueries finds subqueries embedded in an expression
// (IN (...), EXISTS (...), scalar subqueries) and resolves each into a
// child scope.
func (r *Resolution) resolveExprSubqueries(expr parser.Expr, scope *Scope, ctes map[string]bool) error {
	var firstErr error
	var visit func(e parser.Expr)
	visit = func(e parser.Expr) {
		if e == nil || firstErr != nil {
			return
		}
		switch n := e.(type) {
		case *parser.BinaryExpr:
			visit(n.Left)
			visit(n.Right)
		case *parser.UnaryExpr:
			visit(n.Expr)
		case *parser.ParenExpr:
			visit(n.Expr)
		case *parser.CastExpr:
			visit(n.Expr)
		case *parser.FuncCall:
			for _, arg := range n.Args {
				visit(arg)
			}
			visit(n.Filter)
		case *parser.CaseExpr:
			visit(n.Operand)
			for _, when := range n.Whens {
				visit(when.Condition)
				visit(when.Result)
			}
			visit(n.Else)
		case *parser.BetweenExpr:
			visit(n.Expr)
			visit(n.Low)
			visit(n.High)
		case *parser.LikeExpr:
			visit(n.Expr)
			visit(n.Pattern)
		case *parser.IsNullExpr:
			visit(n.Expr)
		case *parser.IsBoolExpr:
			visit(n.Expr)
		case *parser.InExpr:
			visit(n.Expr)
			for _, v := range n.Values {
				visit(v)
			}
			if n.Query != nil {
				child := r.newScope(scope)
				if err := r.resolveStmt(n.Query, child, ctes); err != nil {
					firstErr = err
				}
			}
		case *parser.SubqueryExpr:
			child := r.newScope(scope)
			if err := r.resolveStmt(n.Select, child, ctes); err != nil {
				firstErr = err
			}
		case *parser.ExistsExpr:
			child := r.newScope(scope)
			if err := r.resolveStmt(n.Select, child, ctes); err != nil {
				firstErr = err
			}
		}
	}
	visit(expr)
	return firstErr
}

func qualifiedName(t *parser.TableName) string {
	parts := make([]string, 0, 3)
	if t.Catalog != "" {
		parts = append(parts, t.Catalog)
	}
	if t.Schema != "" {
		parts = append(parts, t.Schema)
	}
	parts = append(parts, t.Name)
	return strings.Join(parts, ".")
}
