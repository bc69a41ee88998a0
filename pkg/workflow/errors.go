package workflow

import (
	"errors"
	"fmt"

	"approval-ledger/pkg/store"
)

var (
	// ErrValidation is matched by every *ValidationError
	ErrValidation = errors.New("workflow: validation failed")

	// ErrNotFound is returned when the target record does not exist
	ErrNotFound = errors.New("workflow: not found")

	// ErrForbidden is returned when the caller does not own the record
	ErrForbidden = errors.New("workflow: forbidden")

	// ErrStore wraps record store failures
	ErrStore = errors.New("workflow: store failure")

	// ErrInvalidTransition is returned for a re-decision under strict transitions
	ErrInvalidTransition = errors.New("workflow: invalid transition")
)

// ValidationError names the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func required(field string) error {
	return invalid(field, "is required")
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// storeError maps a record store error onto the workflow sentinels. The
// store error stays in the chain.
func storeError(err error, what, id string) error {
	switch {
	case err == nil:
		return nil
	case store.IsNotFound(err):
		return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
	case errors.Is(err, store.ErrInvalidKey):
		return &ValidationError{Field: "id", Message: err.Error()}
	default:
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
}
