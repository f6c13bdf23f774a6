package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/strataorm/strata"
	"github.com/strataorm/strata/internal/cli"
	"github.com/strataorm/strata/internal/pg"
	"github.com/strataorm/strata/schema"
)

var (
	makemigrationsApp    string
	makemigrationsSchema string
	makemigrationsDir    string
	makemigrationsDB     string
	makemigrationsDryRun bool
	makemigrationsFromDB bool
)

var makemigrationsCmd = &cobra.Command{
	Use:   "makemigrations",
	Short: "Generate a migration from schema changes",
	Long: `Generate a migration capturing the difference between the declared
schema and the state replayed from existing migrations.

With --from-db the baseline is introspected from a live database instead
of replayed from migration files, which is how an existing database is
brought under migration control.`,
	Example: `  # Capture model changes as a new migration
  strata makemigrations --app blog

  # Preview the operations without writing anything
  strata makemigrations --app blog --dry-run

  # Baseline against a live database instead of migration history
  strata makemigrations --app blog --from-db --db postgres://localhost/mydb`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Resolve values
		app := resolveString(makemigrationsApp, cfg.ResolvedApp())
		schemaPath := resolveString(makemigrationsSchema, cfg.Schema)
		dir := resolveString(makemigrationsDir, cfg.MigrationsDir)
		dryRun := resolveBool(makemigrationsDryRun, cfg.Makemigrations.DryRun)

		return runMakemigrations(app, schemaPath, dir, makemigrationsDB, dryRun, makemigrationsFromDB)
	},
}

func init() {
	f := makemigrationsCmd.Flags()
	f.StringVar(&makemigrationsApp, "app", "", "app label for the generated migration")
	f.StringVar(&makemigrationsSchema, "schema", "", "path to the declared schema file")
	f.StringVar(&makemigrationsDir, "migrations-dir", "", "directory holding migration files")
	f.StringVar(&makemigrationsDB, "db", "", "database URL (only used with --from-db)")
	f.BoolVar(&makemigrationsDryRun, "dry-run", false, "show the migration without writing it")
	f.BoolVar(&makemigrationsFromDB, "from-db", false, "diff against a live database instead of migration history")
}

var (
	migrationTitleStyle = lipgloss.NewStyle().Bold(true)
	opCreateStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	opDropStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	opAlterStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

func runMakemigrations(app, schemaPath, dir, dbFlag string, dryRun, fromDB bool) error {
	ctx := context.Background()

	target, err := strata.LoadSchemaFile(schemaPath)
	if err != nil {
		return cli.SchemaError("loading schema file", err)
	}

	repo := strata.NewFilesystemRepository(dir)

	var source schema.DatabaseSchema
	if fromDB {
		dsn, err := resolveDSN(dbFlag)
		if err != nil {
			return err
		}
		conn, err := pg.Connect(ctx, dsn)
		if err != nil {
			return cli.DBConnectError("connecting to database", err)
		}
		defer func() { _ = conn.Close(ctx) }()

		source, err = pg.Introspect(ctx, conn, "public")
		if err != nil {
			return cli.GeneralError("introspecting database", err)
		}
	} else {
		loader := strata.NewLoader(repo)
		source, err = loader.SourceSchema(ctx)
		if err != nil {
			return cli.GeneralError("replaying migration history", err)
		}
	}

	gen := strata.NewGenerator(target, repo)
	res, err := gen.Generate(ctx, app, source)
	switch {
	case strata.IsNoChangesErr(err):
		if !quiet {
			fmt.Printf("No changes detected for app %q.\n", app)
		}
		return nil
	case strata.IsDuplicateMigrationErr(err):
		if !quiet {
			fmt.Println("These changes are already captured by an existing migration.")
		}
		return nil
	case err != nil:
		return cli.GeneralError("generating migration", err)
	}

	if !quiet {
		printMigration(res.Migration)
	}

	if dryRun {
		if !quiet {
			fmt.Println()
			fmt.Println("Dry run: nothing written.")
		}
		return nil
	}

	if err := repo.Save(ctx, res.Migration); err != nil {
		// The generator already checked for duplicates, but another
		// process may have written between Generate and Save.
		if strata.IsAlreadyExistsErr(err) || strata.IsDuplicateOperationsErr(err) {
			if !quiet {
				fmt.Println("These changes are already captured by an existing migration.")
			}
			return nil
		}
		return cli.GeneralError("saving migration", err)
	}
	res.MigrationFile = repo.ArtifactPath(res.Migration.App, res.Migration.Name)

	if !quiet {
		fmt.Println()
		fmt.Printf("Wrote %s\n", res.MigrationFile)
	}
	return nil
}

// printMigration lists the migration's operations, colored by whether
// they create, drop, or alter.
func printMigration(m *strata.Migration) {
	title := fmt.Sprintf("Migration %s (%d operations)", m.ID(), len(m.Operations))
	fmt.Println(migrationTitleStyle.Render(title))

	for _, op := range m.Operations {
		style := opAlterStyle
		switch op.Kind {
		case schema.OpCreateTable, schema.OpAddColumn, schema.OpCreateIndex, schema.OpAddConstraint:
			style = opCreateStyle
		case schema.OpDropTable, schema.OpDropColumn, schema.OpDropIndex, schema.OpDropConstraint:
			style = opDropStyle
		}
		fmt.Printf("  %s\n", style.Render(op.Describe()))
	}

	for _, dep := range m.Dependencies {
		fmt.Printf("  depends on %s\n", dep.ID())
	}
}
