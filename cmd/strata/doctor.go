package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strataorm/strata/internal/cli"
	"github.com/strataorm/strata/internal/doctor"
)

var (
	doctorDB      string
	doctorSchema  string
	doctorDir     string
	doctorVerbose bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks",
	Long: `Run health checks on the schema file, migration artifacts, and the
database. Database checks are skipped with a warning when no database is
configured, so doctor also works offline.`,
	Example: `  # Run health checks
  strata doctor --db postgres://localhost/mydb

  # Run offline checks only
  strata doctor

  # Run with verbose output
  strata doctor --db postgres://localhost/mydb --verbose`,
	RunE: func(cmd *cobra.Command, args []string) error {
		schemaPath := resolveString(doctorSchema, cfg.Schema)
		dir := resolveString(doctorDir, cfg.MigrationsDir)
		verboseFlag := resolveBool(doctorVerbose, cfg.Doctor.Verbose)

		return runDoctor(schemaPath, dir, doctorDB, verboseFlag)
	},
}

func init() {
	f := doctorCmd.Flags()
	f.StringVar(&doctorDB, "db", "", "database URL")
	f.StringVar(&doctorSchema, "schema", "", "path to the declared schema file")
	f.StringVar(&doctorDir, "migrations-dir", "", "directory holding migration files")
	f.BoolVar(&doctorVerbose, "verbose", false, "show detailed output")
}

func runDoctor(schemaPath, dir, dbFlag string, verboseFlag bool) error {
	ctx := context.Background()

	// Database access is optional for doctor. The report itself warns
	// about the missing database when db stays nil.
	var db *sql.DB
	if dsn, err := resolveDSN(dbFlag); err == nil {
		opened, err := openDatabase(dsn)
		if err != nil {
			return err
		}
		db = opened
		defer func() { _ = db.Close() }()
	}

	if !quiet {
		fmt.Println("strata doctor - Health Check")
	}

	d := doctor.New(db, schemaPath, dir)
	report, err := d.Run(ctx)
	if err != nil {
		return cli.GeneralError("running doctor", err)
	}

	report.Print(os.Stdout, verboseFlag)

	if report.HasErrors() {
		return cli.GeneralError("health checks failed", nil)
	}

	return nil
}
