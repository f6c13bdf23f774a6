// Package main provides the strata command line tool.
//
// The CLI supports:
//   - makemigrations: Diff the declared schema against migration history and write a migration
//   - migrate: Apply pending migrations to PostgreSQL
//   - status: Show applied and pending migrations per app
//   - doctor: Run health checks on migration artifacts and the database
//
// This tool is typically run during development to capture model changes
// as migration files, and during deployment to bring databases up to date.
//
// Usage:
//
//	strata [flags] <command>
//
// Commands that touch the database (migrate, status, doctor, and
// makemigrations --from-db) need --db, STRATA_DATABASE_URL, or database
// settings in strata.yaml. makemigrations normally works entirely from
// files and needs no database at all.
package main

func main() {
	Execute()
}
