// Package warehouse defines the common interface for metadata sources.
// Each source harvests two things from one warehouse: the day's finished
// query jobs and a catalog snapshot of table metadata.
//
// Sources are stateless beyond their connection handle, replaceable, and
// thin. Errors propagate explicitly; a source never substitutes partial
// results for a failed harvest.
package warehouse

import (
	"context"
	"sort"
	"time"

	"github.com/gazer-labs/sqlgazer/internal/catalog"
	gerrors "github.com/gazer-labs/sqlgazer/internal/errors"
	"github.com/gazer-labs/sqlgazer/pkg/models"
)

// MetadataSource is the interface all warehouse sources implement.
type MetadataSource interface {
	// Name returns the unique name of this source.
	Name() string

	// Jobs returns the completed query jobs created on the given day.
	Jobs(ctx context.Context, day time.Time) ([]models.Job, error)

	// Catalog returns a snapshot of table metadata for tables with at
	// least minRows rows. Row counts and partition columns are
	// best-effort; a table the warehouse cannot describe is omitted
	// rather than guessed.
	Catalog(ctx context.Context, minRows int64) (*catalog.Snapshot, error)

	// Ping checks if the warehouse is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the source.
	Close() error
}

// Builder constructs a configured source. Construction is deferred until
// a command needs the source; only the selected kind ever connects.
type Builder func(ctx context.Context) (MetadataSource, error)

// Registry maps source kinds to builders so every command resolves the
// configured kind the same way.
type Registry struct {
	builders map[string]Builder
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds a builder under a source kind.
func (r *Registry) Register(name string, b Builder) {
	r.builders[name] = b
}

// Open builds the named source. An unregistered kind reports the
// registered kinds. The caller owns the returned source and closes it.
func (r *Registry) Open(ctx context.Context, name string) (MetadataSource, error) {
	b, ok := r.builders[name]
	if !ok {
		return nil, gerrors.NewUnknownSource(name, r.Available())
	}
	return b(ctx)
}

// Available returns the registered source kinds sorted by name.
func (r *Registry) Available() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsEmpty reports whether no builders are registered.
func (r *Registry) IsEmpty() bool {
	return len(r.builders) == 0
}
