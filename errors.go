package strata

import "errors"

// Sentinel errors for the migration engine's failure modes.
//
// ErrNoChanges and ErrDuplicateMigration are normal control flow: they tell
// the caller there is nothing to record, not that something broke. The
// remaining errors indicate a real problem with the request or the stored
// migration history.
//
// Use the Is*Err helper functions to branch on specific errors.
var (
	// ErrNoChanges is returned by Generator.Generate when the source and
	// target schemas already agree. Callers should report "nothing to do"
	// and stop; there is no migration to persist.
	ErrNoChanges = errors.New("strata: no changes detected")

	// ErrDuplicateMigration is returned by Generator.Generate when the
	// fresh operation list matches an already-persisted migration for the
	// app, either exactly or after canonicalization. Retrying with the
	// same inputs will fail the same way.
	ErrDuplicateMigration = errors.New("strata: duplicate migration")

	// ErrCircularDependency is returned by the Loader when the migration
	// set cannot be topologically ordered. The error message names the
	// migrations that could not be resolved.
	ErrCircularDependency = errors.New("strata: circular dependency")

	// ErrNotFound is returned by Repository lookups for a migration that
	// is not stored.
	ErrNotFound = errors.New("strata: migration not found")

	// ErrAlreadyExists is returned by Repository.Save when a migration
	// with the same app and name is already stored. Migrations are never
	// overwritten; corrections are expressed as new migrations.
	ErrAlreadyExists = errors.New("strata: migration already exists")

	// ErrDuplicateOperations is returned by Repository.Save when the
	// migration's operations duplicate those of a migration already stored
	// for the same app. This is the write-time backstop behind the
	// Generator's own duplicate check.
	ErrDuplicateOperations = errors.New("strata: duplicate operations")

	// ErrInvalidName is returned by the Repository when an app label or
	// migration name is empty or contains path separators, so artifacts
	// can never escape the repository root.
	ErrInvalidName = errors.New("strata: invalid app or migration name")

	// ErrChecksumMismatch is returned by the Applier when a recorded
	// migration's checksum no longer matches its artifact, meaning
	// history was rewritten after being applied. Repair the artifact or
	// adopt it explicitly with the force option.
	ErrChecksumMismatch = errors.New("strata: applied migration checksum mismatch")
)

// IsNoChangesErr returns true if err is or wraps ErrNoChanges.
func IsNoChangesErr(err error) bool {
	return errors.Is(err, ErrNoChanges)
}

// IsDuplicateMigrationErr returns true if err is or wraps ErrDuplicateMigration.
func IsDuplicateMigrationErr(err error) bool {
	return errors.Is(err, ErrDuplicateMigration)
}

// IsCircularDependencyErr returns true if err is or wraps ErrCircularDependency.
func IsCircularDependencyErr(err error) bool {
	return errors.Is(err, ErrCircularDependency)
}

// IsNotFoundErr returns true if err is or wraps ErrNotFound.
func IsNotFoundErr(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExistsErr returns true if err is or wraps ErrAlreadyExists.
func IsAlreadyExistsErr(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsDuplicateOperationsErr returns true if err is or wraps ErrDuplicateOperations.
func IsDuplicateOperationsErr(err error) bool {
	return errors.Is(err, ErrDuplicateOperations)
}

// IsInvalidNameErr returns true if err is or wraps ErrInvalidName.
func IsInvalidNameErr(err error) bool {
	return errors.Is(err, ErrInvalidName)
}

// IsChecksumMismatchErr returns true if err is or wraps ErrChecksumMismatch.
func IsChecksumMismatchErr(err error) bool {
	return errors.Is(err, ErrChecksumMismatch)
}

// PostgreSQL error codes used when applying migrations, for detecting
// missing schema components and mapping them to friendlier behavior.
const (
	pgUndefinedTable = "42P01" // undefined_table
)
