// Package catalog provides the read-only table metadata snapshot consumed
// by the rule evaluators.
//
// A snapshot is built once per run (harvested from a warehouse source or
// loaded from a YAML file) and shared read-only by all analysis workers.
// A table missing from the snapshot is unknown, never an error.
package catalog

import (
	"sort"
	"strings"
)

// Entry holds the catalog facts for one table.
type Entry struct {
	// QualifiedName is the table's full name, e.g. project.dataset.table.
	QualifiedName string `yaml:"qualified_name" json:"qualified_name"`

	// PartitionColumn is the table's partition column, or empty when the
	// table is unpartitioned.
	PartitionColumn string `yaml:"partition_column,omitempty" json:"partition_column,omitempty"`

	// ApproxRowCount is the table's approximate row count.
	ApproxRowCount int64 `yaml:"approx_row_count" json:"approx_row_count"`

	// Columns lists the table's column names.
	Columns []string `yaml:"columns,omitempty" json:"columns,omitempty"`

	// DatetimeColumns lists the columns with a date, datetime, or
	// timestamp type.
	DatetimeColumns []string `yaml:"datetime_columns,omitempty" json:"datetime_columns,omitempty"`
}

// Partitioned reports whether the table has a partition column.
func (e *Entry) Partitioned() bool {
	return e.PartitionColumn != ""
}

// HasColumn reports whether the table has the named column.
func (e *Entry) HasColumn(name string) bool {
	for _, c := range e.Columns {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// HasDatetimeColumn reports whether the named column is date-typed.
func (e *Entry) HasDatetimeColumn(name string) bool {
	for _, c := range e.DatetimeColumns {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// Snapshot is an immutable catalog built once per run. Lookups accept
// partially qualified names: a query referencing dataset.table finds the
// entry keyed project.dataset.table as long as the suffix is unambiguous.
type Snapshot struct {
	entries map[string]*Entry
	// suffix forms of qualified names, nil value marks an ambiguous suffix
	suffixes map[string]*Entry
}

// NewSnapshot builds a snapshot from harvested entries. Later duplicates
// of the same qualified name replace earlier ones.
func NewSnapshot(entries []Entry) *Snapshot {
	s := &Snapshot{
		entries:  make(map[string]*Entry, len(entries)),
		suffixes: make(map[string]*Entry),
	}
	for i := range entries {
		e := entries[i]
		key := normalize(e.QualifiedName)
		s.entries[key] = &e

		// Index every trailing qualifier form except the full name.
		parts := strings.Split(key, ".")
		for n := 1; n < len(parts); n++ {
			suffix := strings.Join(parts[len(parts)-n:], ".")
			if prev, seen := s.suffixes[suffix]; seen && prev != nil && prev.QualifiedName != e.QualifiedName {
				s.suffixes[suffix] = nil
			} else {
				s.suffixes[suffix] = &e
			}
		}
	}
	return s
}

// Lookup returns the entry for a table reference, or nil when the table
// is unknown to the snapshot.
func (s *Snapshot) Lookup(name string) *Entry {
	if s == nil {
		return nil
	}
	key := normalize(name)
	if e, ok := s.entries[key]; ok {
		return e
	}
	if e, ok := s.suffixes[key]; ok {
		return e
	}
	return nil
}

// Len returns the number of tables in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Entries returns all entries sorted by qualified name.
func (s *Snapshot) Entries() []Entry {
	if s == nil {
		return nil
	}
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QualifiedName < out[j].QualifiedName
	})
	return out
}

func normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, "`", "")
}
