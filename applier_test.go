package strata_test

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/strataorm/strata"
	"github.com/strataorm/strata/schema"
)

// freshDB simulates a database that has never been migrated: every read
// of the tracking table fails with undefined_table, and any write is a
// test failure.
type freshDB struct {
	t *testing.T
}

func (db freshDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	db.t.Helper()
	db.t.Fatalf("unexpected ExecContext: %s", query)
	return nil, nil
}

func (db freshDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, errUndefinedTable{}
}

func (db freshDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return nil
}

// errUndefinedTable mimics a driver error carrying SQLSTATE 42P01.
type errUndefinedTable struct{}

func (errUndefinedTable) Error() string    { return `relation "strata_migrations" does not exist` }
func (errUndefinedTable) SQLState() string { return "42P01" }

// errUndefinedTableInMessage carries the SQLSTATE only in its message,
// the way errors surface once flattened through database/sql.
type errUndefinedTableInMessage struct{}

func (errUndefinedTableInMessage) Error() string {
	return `ERROR: relation "strata_migrations" does not exist (SQLSTATE 42P01)`
}

type freshDBMessageOnly struct{ freshDB }

func (db freshDBMessageOnly) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, errUndefinedTableInMessage{}
}

func TestAppliedToleratesMissingTrackingTable(t *testing.T) {
	ctx := context.Background()

	t.Run("driver exposes SQLState method", func(t *testing.T) {
		applied, err := strata.NewApplier(freshDB{t}).Applied(ctx)
		if err != nil {
			t.Fatalf("Applied() error: %v", err)
		}
		if len(applied) != 0 {
			t.Errorf("Applied() = %d records, want 0", len(applied))
		}
	})

	t.Run("SQLSTATE only in message", func(t *testing.T) {
		applied, err := strata.NewApplier(freshDBMessageOnly{freshDB{t}}).Applied(ctx)
		if err != nil {
			t.Fatalf("Applied() error: %v", err)
		}
		if len(applied) != 0 {
			t.Errorf("Applied() = %d records, want 0", len(applied))
		}
	})
}

func TestApplyDryRunPlan(t *testing.T) {
	ctx := context.Background()
	applier := strata.NewApplier(freshDB{t})

	migrations := []*strata.Migration{
		createUsersMigration("0001_initial"),
		strata.NewMigration("blog", "0002_drop_legacy", schema.DropTable("legacy")),
	}

	var buf bytes.Buffer
	result, err := applier.Apply(ctx, migrations, strata.ApplyOptions{DryRun: &buf})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	if len(result.Applied) != 2 {
		t.Errorf("result.Applied = %v, want both migrations planned", result.Applied)
	}
	if result.Statements != 2 {
		t.Errorf("result.Statements = %d, want 2", result.Statements)
	}

	plan := buf.String()
	for _, want := range []string{
		"-- Strata migration plan (dry-run)",
		"CREATE TABLE IF NOT EXISTS strata_migrations",
		"-- Migration blog.0001_initial (1 operations)",
		`CREATE TABLE "users"`,
		"-- Migration blog.0002_drop_legacy (1 operations)",
		`DROP TABLE "legacy";`,
		"INSERT INTO strata_migrations (app, name, checksum)",
	} {
		if !strings.Contains(plan, want) {
			t.Errorf("plan missing %q\nplan:\n%s", want, plan)
		}
	}

	// The plan must be reviewable before anything is recorded: the insert
	// statements appear as text, never executed (freshDB fails the test on
	// any ExecContext call).
	if !strings.Contains(plan, "VALUES ('blog', '0001_initial', '"+migrations[0].Checksum()+"')") {
		t.Error("plan should record the artifact checksum for 0001_initial")
	}
}
