package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/strataorm/strata"
	"github.com/strataorm/strata/internal/cli"
)

var (
	migrateDB     string
	migrateDir    string
	migrateDryRun bool
	migrateForce  bool
	migrateYes    bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations to the database",
	Long: `Apply pending migrations to PostgreSQL in dependency order.

Each applied migration is recorded in the strata_migrations table with a
checksum of its artifact, so rerunning migrate skips work already done. A
recorded migration whose artifact changed afterwards fails the run unless
--force adopts the rewrite.`,
	Example: `  # Apply all pending migrations
  strata migrate --db postgres://localhost/mydb

  # Preview the SQL without touching the database
  strata migrate --db postgres://localhost/mydb --dry-run

  # Apply without the confirmation prompt (CI)
  strata migrate --db postgres://localhost/mydb --yes

  # Adopt artifacts that were rewritten after being applied
  strata migrate --db postgres://localhost/mydb --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Resolve values
		dir := resolveString(migrateDir, cfg.MigrationsDir)
		dryRun := resolveBool(migrateDryRun, cfg.Migrate.DryRun)
		force := resolveBool(migrateForce, cfg.Migrate.Force)
		yes := resolveBool(migrateYes, cfg.Migrate.Yes)

		dsn, err := resolveDSN(migrateDB)
		if err != nil {
			return err
		}

		return runMigrate(dsn, dir, dryRun, force, yes)
	},
}

func init() {
	f := migrateCmd.Flags()
	f.StringVar(&migrateDB, "db", "", "database URL")
	f.StringVar(&migrateDir, "migrations-dir", "", "directory holding migration files")
	f.BoolVar(&migrateDryRun, "dry-run", false, "output migration SQL without applying")
	f.BoolVar(&migrateForce, "force", false, "adopt rewritten artifacts instead of failing")
	f.BoolVarP(&migrateYes, "yes", "y", false, "skip the confirmation prompt")
}

func runMigrate(dsn, dir string, dryRun, force, yes bool) error {
	ctx := context.Background()

	repo := strata.NewFilesystemRepository(dir)
	loader := strata.NewLoader(repo)
	if err := loader.Load(ctx); err != nil {
		return cli.GeneralError("loading migrations", err)
	}
	ordered, err := loader.SortedMigrations()
	if err != nil {
		return cli.GeneralError("ordering migrations", err)
	}
	if len(ordered) == 0 {
		if !quiet {
			fmt.Println("No migrations found.")
		}
		return nil
	}

	db, err := openDatabase(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if err := db.PingContext(ctx); err != nil {
		return cli.DBConnectError("connecting to database", err)
	}

	applier := strata.NewApplier(db)
	opts := strata.ApplyOptions{Force: force}

	if dryRun {
		opts.DryRun = os.Stdout
		if !quiet {
			fmt.Fprintln(os.Stderr, "-- Dry-run mode: SQL will be output but not applied")
			fmt.Fprintln(os.Stderr, "")
		}
		if _, err := applier.Apply(ctx, ordered, opts); err != nil {
			return cli.GeneralError("planning migrations", err)
		}
		return nil
	}

	pending, err := pendingMigrations(ctx, applier, ordered)
	if err != nil {
		return err
	}
	if len(pending) == 0 && !force {
		if !quiet {
			fmt.Println("Database is up to date.")
		}
		return nil
	}

	if !quiet && len(pending) > 0 {
		fmt.Printf("Pending migrations (%d):\n", len(pending))
		for _, m := range pending {
			fmt.Printf("  %s\n", m.ID())
		}
	}

	if !yes && len(pending) > 0 {
		var confirmed bool
		prompt := huh.NewConfirm().
			Title(fmt.Sprintf("Apply %d migrations?", len(pending))).
			Value(&confirmed)
		if err := prompt.Run(); err != nil {
			return cli.GeneralError("reading confirmation", err)
		}
		if !confirmed {
			if !quiet {
				fmt.Println("Aborted.")
			}
			return nil
		}
	}

	result, err := applier.Apply(ctx, ordered, opts)
	if err != nil {
		if strata.IsChecksumMismatchErr(err) {
			return cli.GeneralError("applying migrations (use --force to adopt a rewritten artifact)", err)
		}
		return cli.GeneralError("applying migrations", err)
	}

	if !quiet {
		fmt.Printf("Applied %d migrations (%d statements), %d already up to date.\n",
			len(result.Applied), result.Statements, len(result.Skipped))
	}
	return nil
}

// pendingMigrations filters ordered down to migrations with no tracking
// row yet. Used for the confirmation prompt; Apply does its own
// checksum-aware skip.
func pendingMigrations(ctx context.Context, applier *strata.Applier, ordered []*strata.Migration) ([]*strata.Migration, error) {
	applied, err := applier.Applied(ctx)
	if err != nil {
		return nil, cli.GeneralError("reading applied migrations", err)
	}

	recorded := make(map[string]bool, len(applied))
	for _, rec := range applied {
		recorded[strata.Ref{App: rec.App, Name: rec.Name}.ID()] = true
	}

	var pending []*strata.Migration
	for _, m := range ordered {
		if !recorded[m.ID()] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}
