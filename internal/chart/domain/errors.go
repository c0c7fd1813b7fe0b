package chart

import (
	"errors"
	"fmt"
)

var (
	// ErrInput classifies malformed instants, coordinates and identifiers. It is never retried.
	ErrInput = errors.New("chart: invalid input")
	// ErrNilSnapshot is returned when an operation needs a snapshot and gets nil.
	ErrNilSnapshot = errors.New("chart: nil snapshot")
	// ErrChartNotFound is returned when no stored chart matches a user and birth key.
	ErrChartNotFound = errors.New("chart: not found")
	// ErrNarrativeContradiction is returned when text contradicts computed chart numbers.
	ErrNarrativeContradiction = errors.New("chart: narrative contradicts chart")
)

// InputError reports which input field was rejected.
type InputError struct {
	Field  string
	Reason string
}

// NewInputError builds an InputError.
func NewInputError(field, reason string) *InputError {
	return &InputError{Field: field, Reason: reason}
}

func (e *InputError) Error() string {
	return fmt.Sprintf("chart: invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrInput) match any InputError.
func (e *InputError) Is(target error) bool {
	return target == ErrInput
}
