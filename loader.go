package strata

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/strataorm/strata/schema"
)

// Loader reads the full persisted migration history and replays it into
// a ProjectState. The rebuilt state is what the Generator diffs against
// on the next run, which is how "migrate, then makemigrations again"
// correctly reports no changes.
//
// Usage is two-phase: Load scans the source, then SortedMigrations or
// BuildProjectState work over the loaded set. A Loader is not safe for
// concurrent use.
type Loader struct {
	source     MigrationSource
	migrations []*Migration
	loaded     bool
}

// NewLoader returns a Loader over the given source, typically a
// *FilesystemRepository.
func NewLoader(source MigrationSource) *Loader {
	return &Loader{source: source}
}

// Load scans every app's migrations from the source. Calling it again
// rescans, replacing the previously loaded set.
func (l *Loader) Load(ctx context.Context) error {
	migrations, err := l.source.AllMigrations(ctx)
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	l.migrations = migrations
	l.loaded = true
	return nil
}

// Migrations returns the loaded set in scan order (apps lexicographic,
// names ascending within an app).
func (l *Loader) Migrations() []*Migration {
	return l.migrations
}

// SortedMigrations orders the loaded set so that every migration comes
// after all of its declared dependencies.
//
// The sort runs resolution passes over the unresolved set: a migration
// whose dependencies are all resolved moves to the resolved sequence. A
// pass that makes no progress while unresolved migrations remain means
// the dependency graph cannot be ordered, either because it contains a
// cycle or because a dependency was never loaded; that fails with
// ErrCircularDependency naming the stuck migrations.
func (l *Loader) SortedMigrations() ([]*Migration, error) {
	resolved := make([]*Migration, 0, len(l.migrations))
	resolvedIDs := make(map[string]bool, len(l.migrations))
	unresolved := append([]*Migration(nil), l.migrations...)

	for len(unresolved) > 0 {
		var stuck []*Migration
		progress := false
		for _, m := range unresolved {
			if depsSatisfied(m, resolvedIDs) {
				resolved = append(resolved, m)
				resolvedIDs[m.ID()] = true
				progress = true
			} else {
				stuck = append(stuck, m)
			}
		}
		if !progress {
			return nil, fmt.Errorf("%w: cannot order %s", ErrCircularDependency, describeStuck(stuck, resolvedIDs))
		}
		unresolved = stuck
	}
	return resolved, nil
}

// BuildProjectState replays the loaded history, in dependency order,
// into a fresh ProjectState. Load must have been called first.
func (l *Loader) BuildProjectState(ctx context.Context) (*schema.ProjectState, error) {
	if !l.loaded {
		if err := l.Load(ctx); err != nil {
			return nil, err
		}
	}

	ordered, err := l.SortedMigrations()
	if err != nil {
		return nil, err
	}

	state := schema.NewProjectState()
	for _, m := range ordered {
		if err := state.ApplyAll(m.Operations); err != nil {
			return nil, fmt.Errorf("replaying migration %s: %w", m.ID(), err)
		}
	}
	return state, nil
}

// SourceSchema is a convenience for callers that only need the schema
// snapshot, not the state wrapper: it rebuilds the ProjectState and
// returns its schema.
func (l *Loader) SourceSchema(ctx context.Context) (schema.DatabaseSchema, error) {
	state, err := l.BuildProjectState(ctx)
	if err != nil {
		return schema.DatabaseSchema{}, err
	}
	return state.Schema(), nil
}

func depsSatisfied(m *Migration, resolved map[string]bool) bool {
	for _, dep := range m.Dependencies {
		if !resolved[dep.ID()] {
			return false
		}
	}
	return true
}

// describeStuck renders the unresolvable set with each migration's
// unmet dependencies, sorted for stable error text.
func describeStuck(stuck []*Migration, resolved map[string]bool) string {
	parts := make([]string, 0, len(stuck))
	for _, m := range stuck {
		var missing []string
		for _, dep := range m.Dependencies {
			if !resolved[dep.ID()] {
				missing = append(missing, dep.ID())
			}
		}
		parts = append(parts, fmt.Sprintf("%s (waiting on %s)", m.ID(), strings.Join(missing, ", ")))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
