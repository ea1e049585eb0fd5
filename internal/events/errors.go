package events

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an operation targets an id that does not
// exist in the store.
var ErrNotFound = errors.New("event not found")

// ValidationError reports missing or invalid required input. It is an
// expected error, surfaced to clients as a bad request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
