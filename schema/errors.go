package schema

import "errors"

// ErrUnknownOperation is returned when an operation's Kind falls outside
// the closed operation set, which means the artifact it came from was
// written by a newer version or corrupted.
var ErrUnknownOperation = errors.New("strata/schema: unknown operation")

// IsUnknownOperationErr returns true if err is or wraps ErrUnknownOperation.
func IsUnknownOperationErr(err error) bool {
	return errors.Is(err, ErrUnknownOperation)
}
