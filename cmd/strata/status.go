package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/strataorm/strata"
	"github.com/strataorm/strata/internal/cli"
)

var (
	statusDB  string
	statusDir string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Long: `Show every migration grouped by app, marked applied, pending, or
drifted (the artifact changed after it was applied). Tracking rows whose
artifact no longer exists are listed as missing.`,
	Example: `  # Check status
  strata status --db postgres://localhost/mydb`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := resolveString(statusDir, cfg.MigrationsDir)

		dsn, err := resolveDSN(statusDB)
		if err != nil {
			return err
		}

		return runStatus(dsn, dir)
	},
}

func init() {
	f := statusCmd.Flags()
	f.StringVar(&statusDB, "db", "", "database URL")
	f.StringVar(&statusDir, "migrations-dir", "", "directory holding migration files")
}

var (
	statusAppStyle     = lipgloss.NewStyle().Bold(true)
	statusAppliedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	statusPendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	statusDriftedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func runStatus(dsn, dir string) error {
	ctx := context.Background()

	repo := strata.NewFilesystemRepository(dir)
	migrations, err := repo.AllMigrations(ctx)
	if err != nil {
		return cli.GeneralError("reading migrations", err)
	}

	db, err := openDatabase(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	applier := strata.NewApplier(db)
	applied, err := applier.Applied(ctx)
	if err != nil {
		return cli.GeneralError("reading applied migrations", err)
	}

	recorded := make(map[string]strata.AppliedMigration, len(applied))
	for _, rec := range applied {
		recorded[strata.Ref{App: rec.App, Name: rec.Name}.ID()] = rec
	}

	var appliedCount, pendingCount, driftedCount int
	currentApp := ""
	for _, m := range migrations {
		if m.App != currentApp {
			currentApp = m.App
			fmt.Println(statusAppStyle.Render(currentApp))
		}

		marker := statusPendingStyle.Render("pending")
		pendingCount++
		if rec, ok := recorded[m.ID()]; ok {
			pendingCount--
			if rec.Checksum == m.Checksum() {
				appliedCount++
				marker = statusAppliedStyle.Render("applied " + rec.AppliedAt.Format("2006-01-02 15:04"))
			} else {
				driftedCount++
				marker = statusDriftedStyle.Render("drifted (artifact rewritten after apply)")
			}
		}
		fmt.Printf("  %-44s %s\n", m.Name, marker)
	}

	// Tracking rows with no artifact on disk
	artifacts := make(map[string]bool, len(migrations))
	for _, m := range migrations {
		artifacts[m.ID()] = true
	}
	var missing []string
	for _, rec := range applied {
		id := strata.Ref{App: rec.App, Name: rec.Name}.ID()
		if !artifacts[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		fmt.Println(statusAppStyle.Render("missing artifacts"))
		for _, id := range missing {
			fmt.Printf("  %-44s %s\n", id, statusDriftedStyle.Render("applied but not on disk"))
		}
	}

	fmt.Println()
	fmt.Printf("%d applied, %d pending, %d drifted, %d missing\n",
		appliedCount, pendingCount, driftedCount, len(missing))
	return nil
}
