package errs

import "fmt"

// ValidationError reports the specific field and constraint violated.
// It unwraps to ErrValidation.
type ValidationError struct {
	Field      string
	Constraint string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Constraint)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StateConflictError reports the record's current status and the operation
// that was attempted against it. It unwraps to ErrStateConflict.
type StateConflictError struct {
	Status    string
	Operation string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("cannot %s a %s record", e.Operation, e.Status)
}

func (e *StateConflictError) Unwrap() error { return ErrStateConflict }

// HawlIncompleteError carries the day count remaining until the Hawl window
// closes. It unwraps to ErrHawlIncomplete.
type HawlIncompleteError struct {
	DaysRemaining int
}

func (e *HawlIncompleteError) Error() string {
	return fmt.Sprintf("hawl incomplete: %d days remaining", e.DaysRemaining)
}

func (e *HawlIncompleteError) Unwrap() error { return ErrHawlIncomplete }

// DeleteNotAllowedError reports a delete attempt on a record that is not in
// draft. It unwraps to ErrDeleteNotAllowed.
type DeleteNotAllowedError struct {
	Status string
}

func (e *DeleteNotAllowedError) Error() string {
	return fmt.Sprintf("cannot delete a %s record; unlock it to make corrections instead", e.Status)
}

func (e *DeleteNotAllowedError) Unwrap() error { return ErrDeleteNotAllowed }
