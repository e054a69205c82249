package registry

import "errors"

// Domain errors for the registry package.
//
//	if errors.Is(err, registry.ErrNotFound) {
//	    // respond 404
//	}
var (
	// ErrValidation is returned when a document lacks a required field.
	ErrValidation = errors.New("registry: validation failed")

	// ErrNotFound is returned when no document has the requested id.
	ErrNotFound = errors.New("registry: not found")

	// ErrDuplicate is returned when creating a document whose id is taken.
	ErrDuplicate = errors.New("registry: duplicate id")
)

// Error pairs one of the sentinels above with the message shown to API
// clients. Error() returns only the message.
type Error struct {
	Err     error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }
