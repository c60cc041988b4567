package inventory

import "errors"

var (
	ErrInvalidPrice    = errors.New("please enter a valid price")
	ErrNoBookSelected  = errors.New("please select a book and enter a price")
	ErrNoStore         = errors.New("inventory can only be added within a store")
	ErrUnauthenticated = errors.New("sign in to change inventory")
	ErrNotEditing      = errors.New("row is not being edited")
	ErrUnknownRow      = errors.New("inventory row not found")
	ErrNotConfirmed    = errors.New("removal was not confirmed")
	ErrRowPending      = errors.New("row is still being added")
)

// ValidationError is returned when input is rejected before any request is
// made.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}
