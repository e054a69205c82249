package docstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// IDField is the key under which a document's storage-internal identifier is exposed.
const IDField = "_id"

// TimeLayout is the wire format of every stored timestamp: UTC, millisecond
// precision, fixed width. Fixed width keeps lexical and chronological order identical.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Document is a loosely typed stored object.
type Document map[string]any

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]any(d)).(Document)
}

// Without returns a shallow copy of d with the named keys removed.
func (d Document) Without(keys ...string) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Merge returns a shallow copy of d with every key of patch applied on top.
func (d Document) Merge(patch Document) Document {
	out := make(Document, len(d)+len(patch))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// String returns the value at key when it is a string, and "" otherwise.
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// InternalID returns the storage-internal identifier, or "" if unset.
func (d Document) InternalID() string {
	return d.String(IDField)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		out := make(Document, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case map[string]any:
		out := make(Document, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}

// Time is a stored instant. It is always UTC with millisecond precision and
// renders in JSON as TimeLayout.
type Time struct {
	time.Time
}

// NewTime normalises t to UTC and truncates it to the millisecond.
func NewTime(t time.Time) Time {
	return Time{Time: t.UTC().Truncate(time.Millisecond)}
}

// Now returns the current instant as a Time.
func Now() Time {
	return NewTime(time.Now())
}

// String formats t with TimeLayout.
func (t Time) String() string {
	return t.UTC().Format(TimeLayout)
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding time: %w", err)
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Accepted textual time layouts, tried in order. Layouts without a zone are UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseTime parses the textual timestamp forms accepted from clients:
// RFC 3339, a date, or a date and time without zone (taken as UTC).
func ParseTime(s string) (Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTime(t), nil
		}
	}
	return Time{}, fmt.Errorf("%w: %q is not a valid timestamp", ErrInvalidTime, s)
}

// TimeFromMillis converts a unix millisecond count into a Time.
func TimeFromMillis(ms int64) Time {
	return NewTime(time.UnixMilli(ms))
}

// CoerceTime converts a decoded JSON value into a Time. Strings go through
// ParseTime and numbers are read as unix milliseconds.
func CoerceTime(v any) (Time, error) {
	switch t := v.(type) {
	case Time:
		return t, nil
	case time.Time:
		return NewTime(t), nil
	case string:
		return ParseTime(t)
	case float64:
		return TimeFromMillis(int64(t)), nil
	case json.Number:
		ms, err := t.Int64()
		if err != nil {
			return Time{}, fmt.Errorf("%w: %q is not a valid timestamp", ErrInvalidTime, t.String())
		}
		return TimeFromMillis(ms), nil
	case int:
		return TimeFromMillis(int64(t)), nil
	case int64:
		return TimeFromMillis(t), nil
	default:
		return Time{}, fmt.Errorf("%w: unsupported value %v", ErrInvalidTime, v)
	}
}

// Float reports whether v is numeric and returns it as float64.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
