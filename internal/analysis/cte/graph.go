// Package cte counts how often each CTE defined in a statement is
// referenced as a table source outside its own definition.
package cte

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/parser"

	"github.com/gazer-labs/sqlgazer/internal/sqlparse"
	"github.com/gazer-labs/sqlgazer/pkg/models"
)

// Graph maps each defined CTE name to its reference count. The count
// covers the main query and sibling CTE bodies; a CTE's own body does not
// count toward its total, so recursive self-references are excluded.
type Graph struct {
	counts map[string]int
	names  []string
}

// Build constructs the reference graph for one statement.
func Build(stmt *parser.SelectStmt) *Graph {
	g := &Graph{counts: make(map[string]int)}
	if stmt == nil || stmt.With == nil {
		return g
	}

	for _, def := range stmt.With.CTEs {
		name := strings.ToLower(def.Name)
		if _, seen := g.counts[name]; seen {
			continue
		}
		g.counts[name] = 0
		g.names = append(g.names, name)
	}

	for _, def := range stmt.With.CTEs {
		self := strings.ToLower(def.Name)
		for _, other := range stmt.With.CTEs {
			if strings.ToLower(other.Name) == self {
				continue
			}
			g.counts[self] += countSources(other.Select, self)
		}
		g.counts[self] += countSourcesBody(stmt.Body, self)
	}
	return g
}

// countSources counts table-source references to the name in a subtree.
func countSources(node any, name string) int {
	count := 0
	sqlparse.Walk(node, func(n any) bool {
		if t, ok := n.(*parser.TableName); ok {
			if t.Catalog == "" && t.Schema == "" && strings.ToLower(t.Name) == name {
				count++
			}
		}
		return true
	})
	return count
}

// countSourcesBody counts references in the main body without descending
// into the WITH clause again.
func countSourcesBody(body *parser.SelectBody, name string) int {
	if body == nil {
		return 0
	}
	return countSources(body, name)
}

// Count returns the reference count for a CTE name, and whether the name
// is defined at all.
func (g *Graph) Count(name string) (int, bool) {
	n, ok := g.counts[strings.ToLower(name)]
	return n, ok
}

// Defined returns the defined CTE names in definition order.
func (g *Graph) Defined() []string {
	return g.names
}

// MultiplyReferenced returns the CTEs referenced more than once, sorted
// by name, with their counts.
func (g *Graph) MultiplyReferenced() map[string]int {
	out := make(map[string]int)
	for name, count := range g.counts {
		if count > 1 {
			out[name] = count
		}
	}
	return out
}

// Hints returns the multiply-referenced CTEs as helper payload entries,
// sorted by name.
func (g *Graph) Hints() []models.CTEHint {
	multi := g.MultiplyReferenced()
	names := make([]string, 0, len(multi))
	for name := range multi {
		names = append(names, name)
	}
	sort.Strings(names)

	hints := make([]models.CTEHint, 0, len(names))
	for _, name := range names {
		hints = append(hints, models.CTEHint{Name: name, Count: multi[name]})
	}
	return hints
}
