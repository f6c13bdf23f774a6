package main

import (
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/strataorm/strata/internal/cli"
)

var (
	// Global state set during PersistentPreRunE
	cfg        *cli.Config
	configPath string

	// Persistent flags
	cfgFile string
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "PostgreSQL schema migrations from a declared model",
	Long: `strata - PostgreSQL schema migrations from a declared model

Strata diffs a declared schema against the state replayed from migration
history (or introspected from a live database), writes the migrations that
close the gap, and applies them with checksum tracking so reruns are safe.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for help/completion/version commands
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, configPath, err = cli.LoadConfig(cfgFile)
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}

		return nil
	},
	SilenceUsage:  true, // Don't show usage on errors
	SilenceErrors: true, // We handle errors ourselves
}

// Command group IDs
const (
	groupMigrations = "migrations"
	groupUtility    = "utility"
)

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: auto-discover strata.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")

	// Define command groups
	rootCmd.AddGroup(
		&cobra.Group{ID: groupMigrations, Title: "Migrations:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	// Migration commands
	makemigrationsCmd.GroupID = groupMigrations
	migrateCmd.GroupID = groupMigrations
	statusCmd.GroupID = groupMigrations
	rootCmd.AddCommand(makemigrationsCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)

	// Utility commands
	doctorCmd.GroupID = groupUtility
	configCmd.GroupID = groupUtility
	versionCmd.GroupID = groupUtility
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cli.ExitWithError(err)
	}
}

// resolveString returns the first non-empty string from the provided values.
// Used to implement precedence: flag > config > default.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// resolveBool returns true if any of the provided values is true.
// Used for boolean flags where any true value should win.
func resolveBool(values ...bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}

// resolveDSN gets the database DSN from flag or config.
func resolveDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}
	if cfg.Database.URL == "" && cfg.Database.Host == "" {
		return "", cli.ConfigError("database URL is required (use --db or set in config)", nil)
	}

	dsn, err := cfg.DSN()
	if err != nil {
		return "", cli.ConfigError("database configuration", err)
	}
	return dsn, nil
}

// openDatabase opens and verifies a database/sql handle over the pgx driver.
func openDatabase(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, cli.DBConnectError("connecting to database", err)
	}
	return db, nil
}
