package strata

import (
	"context"

	"github.com/strataorm/strata/schema"
)

// Repository is the persistence boundary for migrations, keyed by
// (app, name). Implementations enforce two write-time invariants: a stored
// migration is never silently overwritten, and no two stored migrations
// for the same app may carry duplicate operation sets.
//
// Get and Delete fail with ErrNotFound on a miss. List returns an empty
// slice, not an error, for an app with no migrations.
type Repository interface {
	Save(ctx context.Context, m *Migration) error
	Get(ctx context.Context, app, name string) (*Migration, error)
	List(ctx context.Context, app string) ([]*Migration, error)
	Delete(ctx context.Context, app, name string) error
	Exists(ctx context.Context, app, name string) (bool, error)
}

// MigrationSource lists every persisted migration across all apps. The
// Loader consumes this to rebuild project state from full history;
// FilesystemRepository implements it alongside Repository.
type MigrationSource interface {
	AllMigrations(ctx context.Context) ([]*Migration, error)
}

// isDuplicate reports whether the candidate operation list matches any
// existing migration's operations, first exactly, then semantically
// (order-independent). The exact check short-circuits the canonicalization
// work for the common case of a byte-identical re-run.
func isDuplicate(candidate []schema.Operation, existing []*Migration) bool {
	for _, m := range existing {
		if schema.EqualOperations(candidate, m.Operations) {
			return true
		}
		if schema.SemanticallyEqualOperations(candidate, m.Operations) {
			return true
		}
	}
	return false
}
