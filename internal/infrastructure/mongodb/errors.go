package mongodb

import "errors"

// Sentinel errors for MongoDB operations.
var (
	// ErrConnectionFailed indicates the server could not be reached within the retry budget.
	ErrConnectionFailed = errors.New("mongodb: connection failed")

	// ErrInvalidURI indicates the connection string was rejected by the driver.
	ErrInvalidURI = errors.New("mongodb: invalid connection string")
)
