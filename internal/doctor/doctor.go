// Package doctor provides health checks for a strata project.
//
// The doctor command validates that migrations, the declared schema, and
// the database agree with each other: artifacts parse and order cleanly,
// the declared model has no uncaptured changes, and the tracking table
// matches the artifacts on disk.
//
// Example usage:
//
//	d := doctor.New(db, "schema.yaml", "migrations")
//	report, err := d.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report.Print(os.Stdout, true) // verbose=true
package doctor

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/strataorm/strata"
	"github.com/strataorm/strata/schema"
)

// Status represents the result of a health check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical issue that will cause failures.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns a status indicator symbol for terminal output.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	// Category groups related checks (e.g., "Schema", "Migrations").
	Category string

	// Name is a short identifier for the check.
	Name string

	// Status is the check outcome.
	Status Status

	// Message is a human-readable description of the result.
	Message string

	// Details provides additional information for verbose output.
	Details string

	// FixHint suggests how to resolve issues.
	FixHint string
}

// Report contains all health check results.
type Report struct {
	Checks []CheckResult

	// Summary counts.
	Passed   int
	Warnings int
	Errors   int
}

// AddCheck adds a check result and updates summary counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Print writes the report to the given writer.
func (r *Report) Print(w io.Writer, verbose bool) {
	// Group checks by category
	categories := make(map[string][]CheckResult)
	var categoryOrder []string
	for _, check := range r.Checks {
		if _, exists := categories[check.Category]; !exists {
			categoryOrder = append(categoryOrder, check.Category)
		}
		categories[check.Category] = append(categories[check.Category], check)
	}

	for _, cat := range categoryOrder {
		_, _ = fmt.Fprintf(w, "\n%s\n", cat)
		for _, check := range categories[cat] {
			_, _ = fmt.Fprintf(w, "  %s %s\n", check.Status.Symbol(), check.Message)
			if verbose && check.Details != "" {
				for _, line := range strings.Split(check.Details, "\n") {
					_, _ = fmt.Fprintf(w, "      %s\n", line)
				}
			}
			if check.Status != StatusPass && check.FixHint != "" {
				_, _ = fmt.Fprintf(w, "      Fix: %s\n", check.FixHint)
			}
		}
	}

	_, _ = fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n",
		r.Passed, r.Warnings, r.Errors)
}

// HasErrors returns true if any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Doctor performs health checks on a strata project.
type Doctor struct {
	db            *sql.DB // nil when no database is configured
	schemaPath    string
	migrationsDir string

	// Cached data from checks (populated during Run)
	declared   schema.DatabaseSchema
	declaredOK bool
	migrations []*strata.Migration
	replayed   schema.DatabaseSchema
	replayOK   bool
}

// New creates a new Doctor instance. db may be nil; database checks are
// then reported as skipped instead of failing.
func New(db *sql.DB, schemaPath, migrationsDir string) *Doctor {
	return &Doctor{
		db:            db,
		schemaPath:    schemaPath,
		migrationsDir: migrationsDir,
	}
}

// Run executes all health checks and returns a report.
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	// Run checks in order, building up cached data
	d.checkSchemaFile(report)
	d.checkMigrations(ctx, report)
	d.checkPendingChanges(report)
	d.checkDatabase(ctx, report)

	return report, nil
}

// checkSchemaFile verifies the declared model parses.
func (d *Doctor) checkSchemaFile(report *Report) {
	if _, err := os.Stat(d.schemaPath); err != nil {
		report.AddCheck(CheckResult{
			Category: "Schema",
			Name:     "schema-file",
			Status:   StatusFail,
			Message:  fmt.Sprintf("schema file missing: %s", d.schemaPath),
			FixHint:  "create the schema file or point --schema at it",
		})
		return
	}

	declared, err := strata.LoadSchemaFile(d.schemaPath)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Schema",
			Name:     "schema-file",
			Status:   StatusFail,
			Message:  fmt.Sprintf("schema file does not parse: %s", d.schemaPath),
			Details:  err.Error(),
		})
		return
	}

	d.declared = declared
	d.declaredOK = true
	report.AddCheck(CheckResult{
		Category: "Schema",
		Name:     "schema-file",
		Status:   StatusPass,
		Message:  fmt.Sprintf("schema file parsed (%d tables)", len(declared.Tables)),
		Details:  d.schemaPath,
	})
}

// checkMigrations verifies the artifacts load, order, and replay.
func (d *Doctor) checkMigrations(ctx context.Context, report *Report) {
	repo := strata.NewFilesystemRepository(d.migrationsDir)

	migrations, err := repo.AllMigrations(ctx)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Migrations",
			Name:     "artifacts",
			Status:   StatusFail,
			Message:  fmt.Sprintf("cannot read migrations from %s", d.migrationsDir),
			Details:  err.Error(),
		})
		return
	}
	d.migrations = migrations

	apps := make(map[string]bool)
	for _, m := range migrations {
		apps[m.App] = true
	}
	report.AddCheck(CheckResult{
		Category: "Migrations",
		Name:     "artifacts",
		Status:   StatusPass,
		Message:  fmt.Sprintf("%d migrations across %d apps", len(migrations), len(apps)),
		Details:  d.migrationsDir,
	})

	loader := strata.NewLoader(repo)
	if err := loader.Load(ctx); err != nil {
		report.AddCheck(CheckResult{
			Category: "Migrations",
			Name:     "ordering",
			Status:   StatusFail,
			Message:  "migration set failed to load",
			Details:  err.Error(),
		})
		return
	}
	if _, err := loader.SortedMigrations(); err != nil {
		report.AddCheck(CheckResult{
			Category: "Migrations",
			Name:     "ordering",
			Status:   StatusFail,
			Message:  "migration dependencies cannot be ordered",
			Details:  err.Error(),
			FixHint:  "inspect the dependencies of the migrations named above",
		})
		return
	}

	replayed, err := loader.SourceSchema(ctx)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Migrations",
			Name:     "replay",
			Status:   StatusFail,
			Message:  "migration history does not replay",
			Details:  err.Error(),
		})
		return
	}

	d.replayed = replayed
	d.replayOK = true
	report.AddCheck(CheckResult{
		Category: "Migrations",
		Name:     "replay",
		Status:   StatusPass,
		Message:  fmt.Sprintf("history replays cleanly (%d tables)", len(replayed.Tables)),
	})
}

// checkPendingChanges compares the declared model against replayed history.
func (d *Doctor) checkPendingChanges(report *Report) {
	if !d.declaredOK || !d.replayOK {
		return
	}

	ops := schema.Diff(d.replayed, d.declared)
	if len(ops) == 0 {
		report.AddCheck(CheckResult{
			Category: "Migrations",
			Name:     "pending-changes",
			Status:   StatusPass,
			Message:  "declared model matches migration history",
		})
		return
	}

	var lines []string
	for _, op := range ops {
		lines = append(lines, op.Describe())
	}
	report.AddCheck(CheckResult{
		Category: "Migrations",
		Name:     "pending-changes",
		Status:   StatusWarn,
		Message:  fmt.Sprintf("%d schema changes not yet captured by a migration", len(ops)),
		Details:  strings.Join(lines, "\n"),
		FixHint:  "run: strata makemigrations",
	})
}

// checkDatabase verifies connectivity and that the tracking table agrees
// with the artifacts on disk.
func (d *Doctor) checkDatabase(ctx context.Context, report *Report) {
	if d.db == nil {
		report.AddCheck(CheckResult{
			Category: "Database",
			Name:     "connection",
			Status:   StatusWarn,
			Message:  "no database configured, skipping database checks",
			FixHint:  "set database.url in strata.yaml or pass --db",
		})
		return
	}

	if err := d.db.PingContext(ctx); err != nil {
		report.AddCheck(CheckResult{
			Category: "Database",
			Name:     "connection",
			Status:   StatusFail,
			Message:  "cannot reach the database",
			Details:  err.Error(),
			FixHint:  "check database.url and that the server is running",
		})
		return
	}
	report.AddCheck(CheckResult{
		Category: "Database",
		Name:     "connection",
		Status:   StatusPass,
		Message:  "database reachable",
	})

	var trackingExists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = 'strata_migrations'
		)
	`).Scan(&trackingExists)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Database",
			Name:     "tracking-table",
			Status:   StatusFail,
			Message:  "cannot inspect the tracking table",
			Details:  err.Error(),
		})
		return
	}
	if !trackingExists {
		report.AddCheck(CheckResult{
			Category: "Database",
			Name:     "tracking-table",
			Status:   StatusWarn,
			Message:  "tracking table absent (no migrations applied yet)",
			FixHint:  "run: strata migrate",
		})
		return
	}
	report.AddCheck(CheckResult{
		Category: "Database",
		Name:     "tracking-table",
		Status:   StatusPass,
		Message:  "tracking table present",
	})

	d.checkAppliedState(ctx, report)
}

// checkAppliedState cross-references tracking rows with disk artifacts.
func (d *Doctor) checkAppliedState(ctx context.Context, report *Report) {
	applied, err := strata.NewApplier(d.db).Applied(ctx)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Database",
			Name:     "applied-state",
			Status:   StatusFail,
			Message:  "cannot read applied migrations",
			Details:  err.Error(),
		})
		return
	}

	byID := make(map[string]*strata.Migration, len(d.migrations))
	for _, m := range d.migrations {
		byID[m.ID()] = m
	}

	var pending, missing, drifted []string
	appliedIDs := make(map[string]bool, len(applied))
	for _, a := range applied {
		id := a.App + "." + a.Name
		appliedIDs[id] = true
		m, ok := byID[id]
		switch {
		case !ok:
			missing = append(missing, id)
		case m.Checksum() != a.Checksum:
			drifted = append(drifted, id)
		}
	}
	for _, m := range d.migrations {
		if !appliedIDs[m.ID()] {
			pending = append(pending, m.ID())
		}
	}

	if len(missing) > 0 {
		report.AddCheck(CheckResult{
			Category: "Database",
			Name:     "applied-state",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("%d applied migrations have no artifact on disk", len(missing)),
			Details:  strings.Join(missing, "\n"),
		})
	}
	if len(drifted) > 0 {
		report.AddCheck(CheckResult{
			Category: "Database",
			Name:     "applied-state",
			Status:   StatusFail,
			Message:  fmt.Sprintf("%d applied migrations were rewritten after being applied", len(drifted)),
			Details:  strings.Join(drifted, "\n"),
			FixHint:  "restore the original artifacts, or adopt the rewrite with: strata migrate --force",
		})
	}
	if len(pending) > 0 {
		report.AddCheck(CheckResult{
			Category: "Database",
			Name:     "applied-state",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("%d migrations not applied yet", len(pending)),
			Details:  strings.Join(pending, "\n"),
			FixHint:  "run: strata migrate",
		})
	}
	if len(missing)+len(drifted)+len(pending) == 0 {
		report.AddCheck(CheckResult{
			Category: "Database",
			Name:     "applied-state",
			Status:   StatusPass,
			Message:  fmt.Sprintf("all %d migrations applied and unchanged", len(d.migrations)),
		})
	}
}
