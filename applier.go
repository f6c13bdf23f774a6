package strata

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"
)

// Execer is the minimal interface needed to apply migrations.
// Implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ApplyOptions controls apply behavior.
type ApplyOptions struct {
	// DryRun writes the SQL plan to the provided writer without executing
	// any DDL. The applied set is still read so the plan only shows
	// pending migrations. If nil, migrations are applied normally.
	DryRun io.Writer

	// Force adopts artifacts whose checksum no longer matches the
	// recorded one, updating the tracking row instead of failing. Use
	// when manually repairing rewritten history.
	Force bool
}

// AppliedMigration is one row of the strata_migrations tracking table.
type AppliedMigration struct {
	App       string
	Name      string
	Checksum  string
	AppliedAt time.Time
}

// ApplyResult summarizes one Apply run.
type ApplyResult struct {
	// Applied lists migrations executed (or, in dry-run, planned) this run.
	Applied []Ref

	// Skipped lists migrations already recorded as applied.
	Skipped []Ref

	// Statements counts the SQL statements executed or planned.
	Statements int
}

// Applier executes migration operations against a live PostgreSQL
// database and records each applied migration in the strata_migrations
// table. Re-running with the same inputs is safe: recorded migrations
// with matching checksums are skipped.
//
// Migrations marked Atomic run inside a transaction when the underlying
// connection supports one (*sql.DB does, *sql.Tx runs as-is).
type Applier struct {
	db Execer
}

// NewApplier creates an applier over db, typically *sql.DB.
func NewApplier(db Execer) *Applier {
	return &Applier{db: db}
}

// Applied returns every recorded migration in application order. A
// database that has never been migrated (no tracking table yet) yields
// an empty result, not an error.
func (a *Applier) Applied(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT app, name, checksum, applied_at
		FROM strata_migrations
		ORDER BY id
	`)
	if err != nil {
		if sqlState(err) == pgUndefinedTable {
			return nil, nil
		}
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var applied []AppliedMigration
	for rows.Next() {
		var rec AppliedMigration
		if err := rows.Scan(&rec.App, &rec.Name, &rec.Checksum, &rec.AppliedAt); err != nil {
			return nil, fmt.Errorf("scanning applied migration: %w", err)
		}
		applied = append(applied, rec)
	}
	return applied, rows.Err()
}

// Apply runs the given migrations, in the given order, skipping any
// already recorded with a matching checksum. Callers are expected to
// pass a dependency-ordered sequence, typically Loader.SortedMigrations.
//
// A recorded migration whose checksum differs from the artifact fails
// with ErrChecksumMismatch unless ApplyOptions.Force adopts the new
// checksum. On failure the result still reports what completed before
// the error; previously applied migrations stay applied.
func (a *Applier) Apply(ctx context.Context, migrations []*Migration, opts ApplyOptions) (*ApplyResult, error) {
	recorded, err := a.Applied(ctx)
	if err != nil {
		return nil, err
	}
	appliedByID := make(map[string]AppliedMigration, len(recorded))
	for _, rec := range recorded {
		appliedByID[rec.App+"."+rec.Name] = rec
	}

	result := &ApplyResult{}

	if opts.DryRun != nil {
		a.writePlan(opts.DryRun, migrations, appliedByID, result)
		return result, nil
	}

	if _, err := a.db.ExecContext(ctx, trackingDDL); err != nil {
		return nil, fmt.Errorf("creating tracking table: %w", err)
	}

	for _, m := range migrations {
		sum := m.Checksum()
		if rec, ok := appliedByID[m.ID()]; ok {
			if rec.Checksum == sum {
				result.Skipped = append(result.Skipped, m.Ref())
				continue
			}
			if !opts.Force {
				return result, fmt.Errorf("%w: %s (recorded %s, artifact %s)",
					ErrChecksumMismatch, m.ID(), shortChecksum(rec.Checksum), shortChecksum(sum))
			}
			if _, err := a.db.ExecContext(ctx, `
				UPDATE strata_migrations SET checksum = $1 WHERE app = $2 AND name = $3
			`, sum, m.App, m.Name); err != nil {
				return result, fmt.Errorf("adopting checksum for %s: %w", m.ID(), err)
			}
			result.Skipped = append(result.Skipped, m.Ref())
			continue
		}

		stmts, err := RenderOperations(m.Operations)
		if err != nil {
			return result, fmt.Errorf("rendering %s: %w", m.ID(), err)
		}
		if err := a.applyOne(ctx, m, sum, stmts); err != nil {
			return result, err
		}
		result.Applied = append(result.Applied, m.Ref())
		result.Statements += len(stmts)
	}
	return result, nil
}

// applyOne executes one migration's statements and records it. Atomic
// migrations run in a transaction if the db supports it; the tracking
// row commits together with the DDL so a crash cannot record a
// half-applied migration as done.
func (a *Applier) applyOne(ctx context.Context, m *Migration, checksum string, stmts []string) error {
	txer, ok := a.db.(interface {
		BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	})
	if m.Atomic && ok {
		tx, err := txer.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("starting transaction for %s: %w", m.ID(), err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := execAll(ctx, tx, m, stmts); err != nil {
			return err
		}
		if err := recordApplied(ctx, tx, m, checksum); err != nil {
			return err
		}
		return tx.Commit()
	}

	if err := execAll(ctx, a.db, m, stmts); err != nil {
		return err
	}
	return recordApplied(ctx, a.db, m, checksum)
}

func execAll(ctx context.Context, db Execer, m *Migration, stmts []string) error {
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying %s statement %d: %w", m.ID(), i+1, err)
		}
	}
	return nil
}

func recordApplied(ctx context.Context, db Execer, m *Migration, checksum string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO strata_migrations (app, name, checksum)
		VALUES ($1, $2, $3)
	`, m.App, m.Name, checksum)
	if err != nil {
		return fmt.Errorf("recording %s: %w", m.ID(), err)
	}
	return nil
}

// writePlan renders the pending migrations as executable SQL.
func (a *Applier) writePlan(w io.Writer, migrations []*Migration, appliedByID map[string]AppliedMigration, result *ApplyResult) {
	_, _ = fmt.Fprintf(w, "-- Strata migration plan (dry-run)\n")
	_, _ = fmt.Fprintf(w, "-- Generated against %d recorded migrations\n\n", len(appliedByID))

	_, _ = fmt.Fprintf(w, "-- ============================================================\n")
	_, _ = fmt.Fprintf(w, "-- DDL: Migration Tracking Table\n")
	_, _ = fmt.Fprintf(w, "-- ============================================================\n\n")
	_, _ = fmt.Fprintf(w, "%s\n", trackingDDL)

	for _, m := range migrations {
		sum := m.Checksum()
		if rec, ok := appliedByID[m.ID()]; ok {
			if rec.Checksum == sum {
				result.Skipped = append(result.Skipped, m.Ref())
				continue
			}
			// Already applied but rewritten since. Apply would fail here
			// without Force; with Force it only adopts the new checksum.
			_, _ = fmt.Fprintf(w, "-- Migration %s was rewritten after being applied\n", m.ID())
			_, _ = fmt.Fprintf(w, "-- (recorded %s, artifact %s); force adoption runs:\n", shortChecksum(rec.Checksum), shortChecksum(sum))
			_, _ = fmt.Fprintf(w, "UPDATE strata_migrations SET checksum = '%s'\nWHERE app = '%s' AND name = '%s';\n\n", sum, m.App, m.Name)
			result.Skipped = append(result.Skipped, m.Ref())
			continue
		}

		stmts, err := RenderOperations(m.Operations)
		if err != nil {
			_, _ = fmt.Fprintf(w, "-- ERROR rendering %s: %v\n\n", m.ID(), err)
			continue
		}

		_, _ = fmt.Fprintf(w, "-- ============================================================\n")
		_, _ = fmt.Fprintf(w, "-- Migration %s (%d operations)\n", m.ID(), len(m.Operations))
		_, _ = fmt.Fprintf(w, "-- ============================================================\n\n")
		for _, stmt := range stmts {
			_, _ = fmt.Fprintf(w, "%s\n", stmt)
		}
		_, _ = fmt.Fprintf(w, "\nINSERT INTO strata_migrations (app, name, checksum)\n")
		_, _ = fmt.Fprintf(w, "VALUES ('%s', '%s', '%s');\n\n", m.App, m.Name, sum)

		result.Applied = append(result.Applied, m.Ref())
		result.Statements += len(stmts)
	}
}

func shortChecksum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}

// sqlState extracts the SQLSTATE code from a PostgreSQL error.
// Works with multiple drivers via interface detection:
//   - pgx/pgconn: SQLState() string
//   - lib/pq: Code field (via error interface)
//
// Returns empty string if the error doesn't contain a SQLSTATE.
func sqlState(err error) string {
	type sqlStateErr interface{ SQLState() string }
	if e, ok := err.(sqlStateErr); ok {
		return e.SQLState()
	}

	type codeErr interface{ Code() string }
	if e, ok := err.(codeErr); ok {
		return e.Code()
	}

	errStr := err.Error()
	if strings.Contains(errStr, "SQLSTATE") {
		for _, prefix := range []string{"SQLSTATE ", "SQLSTATE: "} {
			if idx := strings.Index(errStr, prefix); idx >= 0 {
				start := idx + len(prefix)
				if start+5 <= len(errStr) {
					return errStr[start : start+5]
				}
			}
		}
	}

	return ""
}
