// Package sqlparse turns harvested job scripts into syntax trees.
//
// A job's query text may hold several statements. The script is split first,
// script-control statements (DECLARE, SET, BEGIN) are skipped, and each
// remaining SELECT/WITH statement is parsed independently.
package sqlparse

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/dialect"
	"github.com/leapstack-labs/leapsql/pkg/parser"
	xsqlparser "github.com/xwb1989/sqlparser"

	// Registers the ansi dialect in the parser's dialect registry.
	_ "github.com/leapstack-labs/leapsql/pkg/dialects/ansi"
)

// Statement is one parsed statement of a job's script.
type Statement struct {
	// Index is the statement's position in the original script.
	Index int

	// Text is the trimmed statement text.
	Text string

	// Tree is the parsed syntax tree. Never nil.
	Tree *parser.SelectStmt
}

// Parser wraps the external SQL parser with statement splitting and
// dialect selection. A Parser is immutable and safe for concurrent use.
type Parser struct {
	dialect *dialect.Dialect
}

// NewParser creates a parser for the named dialect.
func NewParser(dialectName string) (*Parser, error) {
	d, ok := dialect.Get(dialectName)
	if !ok {
		return nil, fmt.Errorf("sqlparse: unknown dialect %q (registered: %v)",
			dialectName, dialect.List())
	}
	return &Parser{dialect: d}, nil
}

// ParseScript splits a script into statements and parses each analyzable
// one. Any statement failing to parse fails the whole script; the caller
// records a parse failure for the job and moves on to the next job.
func (p *Parser) ParseScript(script string) ([]Statement, error) {
	pieces, err := xsqlparser.SplitStatementToPieces(script)
	if err != nil {
		return nil, fmt.Errorf("sqlparse: split script: %w", err)
	}

	var stmts []Statement
	for i, piece := range pieces {
		text := strings.TrimSpace(piece)
		if text == "" || !analyzable(text) {
			continue
		}
		tree, err := parser.ParseWithDialect(text, p.dialect)
		if err != nil {
			return nil, fmt.Errorf("sqlparse: statement %d: %w", i+1, err)
		}
		stmts = append(stmts, Statement{Index: i, Text: text, Tree: tree})
	}
	return stmts, nil
}

// analyzable reports whether a statement is a query worth analyzing.
// Script-control statements carry no antipattern signal.
func analyzable(text string) bool {
	head := strings.ToUpper(text)
	return strings.HasPrefix(head, "SELECT") || strings.HasPrefix(head, "WITH")
}
