package strata_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/strataorm/strata"
)

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name     string
		sentinel error
		helper   func(error) bool
	}{
		{"IsNoChangesErr", strata.ErrNoChanges, strata.IsNoChangesErr},
		{"IsDuplicateMigrationErr", strata.ErrDuplicateMigration, strata.IsDuplicateMigrationErr},
		{"IsCircularDependencyErr", strata.ErrCircularDependency, strata.IsCircularDependencyErr},
		{"IsNotFoundErr", strata.ErrNotFound, strata.IsNotFoundErr},
		{"IsAlreadyExistsErr", strata.ErrAlreadyExists, strata.IsAlreadyExistsErr},
		{"IsDuplicateOperationsErr", strata.ErrDuplicateOperations, strata.IsDuplicateOperationsErr},
		{"IsInvalidNameErr", strata.ErrInvalidName, strata.IsInvalidNameErr},
		{"IsChecksumMismatchErr", strata.ErrChecksumMismatch, strata.IsChecksumMismatchErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("wrapped: %w", tt.sentinel)
			if !tt.helper(wrapped) {
				t.Errorf("%s should return true for wrapped sentinel", tt.name)
			}
			if tt.helper(errors.New("other error")) {
				t.Errorf("%s should return false for other errors", tt.name)
			}
			if tt.helper(nil) {
				t.Errorf("%s should return false for nil", tt.name)
			}
		})
	}
}

func TestSentinelMessages(t *testing.T) {
	sentinels := []error{
		strata.ErrNoChanges,
		strata.ErrDuplicateMigration,
		strata.ErrCircularDependency,
		strata.ErrNotFound,
		strata.ErrAlreadyExists,
		strata.ErrDuplicateOperations,
		strata.ErrInvalidName,
		strata.ErrChecksumMismatch,
	}

	seen := make(map[string]bool)
	for _, err := range sentinels {
		msg := err.Error()
		if msg == "" {
			t.Error("sentinel error message should not be empty")
		}
		if seen[msg] {
			t.Errorf("duplicate sentinel message %q", msg)
		}
		seen[msg] = true
	}
}
