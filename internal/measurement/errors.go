package measurement

import "errors"

// Domain errors for the measurement package.
var (
	// ErrValidation is returned for malformed input: missing fields,
	// unparseable timestamps or an invalid limit.
	ErrValidation = errors.New("measurement: validation failed")

	// ErrNotFound is returned when no measurement has the requested _id.
	ErrNotFound = errors.New("measurement: not found")
)

// Error pairs a sentinel with the message shown to API clients.
type Error struct {
	Err     error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func invalid(msg string) error {
	return &Error{Err: ErrValidation, Message: msg}
}

var errNotFound = &Error{Err: ErrNotFound, Message: "Measurement not found"}
