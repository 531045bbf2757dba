package pead

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEvent is matched by every event validation failure
	ErrInvalidEvent = errors.New("invalid earnings event")

	// ErrInvalidParams is matched by every run parameter validation failure
	ErrInvalidParams = errors.New("invalid backtest parameters")
)

// ValidationError reports a caller contract violation. Index is the position
// of the offending event, or -1 when a run parameter is at fault.
type ValidationError struct {
	Index  int
	Field  string
	Value  string
	Reason string
	kind   error
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("event %d: %s %q: %s", e.Index, e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.kind
}

func eventError(index int, field, value, reason string) *ValidationError {
	return &ValidationError{Index: index, Field: field, Value: value, Reason: reason, kind: ErrInvalidEvent}
}

func paramError(field, value, reason string) *ValidationError {
	return &ValidationError{Index: -1, Field: field, Value: value, Reason: reason, kind: ErrInvalidParams}
}
