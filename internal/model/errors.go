package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a task or metadata row does not exist.
var ErrNotFound = errors.New("not found")

// ErrStoreUnavailable wraps transient backing-store failures.
var ErrStoreUnavailable = errors.New("store unavailable")

// ValidationError reports malformed caller input. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
