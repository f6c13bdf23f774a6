// Package strata is a PostgreSQL-focused schema migration engine: it
// diffs a declared target schema against the schema implied by recorded
// migration history, writes the delta as a new migration artifact, and
// applies pending artifacts to a live database.
//
// # Package Structure
//
// Strata is split into a pure core and an effectful engine:
//
//   - github.com/strataorm/strata/schema: schema model, operations,
//     diffing, canonicalization, state replay. Pure values, no I/O.
//   - github.com/strataorm/strata (this package): migrations,
//     generation, persistence, loading, and application. All I/O and
//     policy lives here.
//
// # The Generation Loop
//
// Migration generation is a closed loop. The Loader replays recorded
// history into a ProjectState; the Generator diffs that state's schema
// against the declared target; the caller persists the result; the next
// run's Loader sees it and reports no further changes:
//
//	repo := strata.NewFilesystemRepository("migrations")
//	loader := strata.NewLoader(repo)
//	source, err := loader.SourceSchema(ctx)
//	if err != nil { ... }
//
//	gen := strata.NewGenerator(target, repo)
//	res, err := gen.Generate(ctx, "blog", source)
//	switch {
//	case strata.IsNoChangesErr(err):
//		// schemas already agree, nothing to record
//	case strata.IsDuplicateMigrationErr(err):
//		// this change was already recorded
//	case err != nil:
//		// repository failure
//	default:
//		err = repo.Save(ctx, res.Migration)
//	}
//
// Generate never persists; Save is the caller's explicit second step so
// the proposed migration can be reviewed first.
//
// # Duplicate Protection
//
// The same logical change is never recorded twice. The Generator
// compares each fresh diff against recorded history at two strengths,
// exact and semantic (column order ignored), and the filesystem
// repository repeats the comparison at write time as a backstop against
// generation/persistence races.
//
// # Applying
//
// The Applier executes pending migrations against *sql.DB, *sql.Tx, or
// *sql.Conn, recording each in the strata_migrations tracking table:
//
//	applier := strata.NewApplier(db)
//	ordered, err := loader.SortedMigrations()
//	if err != nil { ... }
//	result, err := applier.Apply(ctx, ordered, strata.ApplyOptions{})
//
// Pass ApplyOptions{DryRun: os.Stdout} to print the SQL plan without
// touching the database.
package strata
