package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a mutation targets an item that no longer
// exists in the document.
var ErrNotFound = errors.New("menu item not found")

// ErrInterpreterUnavailable is returned when the language-understanding
// capability cannot be reached. Dialogue state must be preserved so the user
// can repeat themselves.
var ErrInterpreterUnavailable = errors.New("interpreter unavailable")

// ValidationError describes a field value that violates a menu invariant.
// It is recovered locally: the dialogue engine re-asks the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// VersionConflictError signals that a mutation raced with another writer.
// The caller re-fetches a snapshot and decides whether the pending change is
// still valid.
type VersionConflictError struct {
	Expected uint64
	Current  uint64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict: expected %d, document is at %d", e.Expected, e.Current)
}

// IsVersionConflict reports whether err is a VersionConflictError.
func IsVersionConflict(err error) bool {
	var vc *VersionConflictError
	return errors.As(err, &vc)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
