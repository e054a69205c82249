package docstore

import (
	"context"
	"errors"
)

// Collection names.
const (
	Experiments   = "experiments"
	SensorDevices = "sensor_devices"
	SensorTypes   = "sensor_types"
	Measurements  = "measurements"
)

// Domain errors for the docstore package.
//
//	if errors.Is(err, docstore.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when no document matches a single-document operation.
	ErrNotFound = errors.New("docstore: not found")

	// ErrDuplicate is returned when a write violates a unique identifier.
	ErrDuplicate = errors.New("docstore: duplicate identifier")

	// ErrInvalidField is returned for field names that are not plain identifiers.
	ErrInvalidField = errors.New("docstore: invalid field name")

	// ErrInvalidTime is returned when a timestamp cannot be parsed.
	ErrInvalidTime = errors.New("docstore: invalid timestamp")
)

// FindOptions controls ordering and truncation of Find results.
type FindOptions struct {
	// SortField orders the results when non-empty.
	SortField string
	// Descending reverses the sort order.
	Descending bool
	// Limit caps the number of results when positive.
	Limit int64
}

// Summary is the single-pass aggregate of a numeric field and a time field
// over the documents matching a filter. Min, Max and Avg are nil when no
// matching document carries a numeric value; First and Last are nil when none
// carries a timestamp.
type Summary struct {
	Count int64
	Avg   *float64
	Min   *float64
	Max   *float64
	First *Time
	Last  *Time
}

// Store is a collection-scoped document store.
//
// Implementations return documents whose timestamps are Time values and whose
// storage-internal identifier is a string under IDField. Result slices are
// never nil.
type Store interface {
	// Find returns every document in coll matching f.
	Find(ctx context.Context, coll string, f *Filter, opts FindOptions) ([]Document, error)

	// FindOne returns the first document matching f, or ErrNotFound.
	FindOne(ctx context.Context, coll string, f *Filter) (Document, error)

	// Insert stores doc and returns it with its internal identifier assigned.
	// Returns ErrDuplicate when a unique identifier is already taken.
	Insert(ctx context.Context, coll string, doc Document) (Document, error)

	// InsertMany stores docs in one batch and returns how many were written.
	InsertMany(ctx context.Context, coll string, docs []Document) (int, error)

	// Update sets the fields of patch on the first document matching f and
	// returns the document as it is after the update, or ErrNotFound.
	Update(ctx context.Context, coll string, f *Filter, patch Document) (Document, error)

	// Delete removes every document matching f and returns how many were removed.
	Delete(ctx context.Context, coll string, f *Filter) (int64, error)

	// Summarize aggregates valueField and timeField over the documents matching f.
	Summarize(ctx context.Context, coll string, f *Filter, valueField, timeField string) (Summary, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}
