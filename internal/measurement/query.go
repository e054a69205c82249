package measurement

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/steamcity/iot-platform/internal/docstore"
)

// Result size defaults.
const (
	// DefaultLimit caps the measurement list.
	DefaultLimit = 1000

	// SensorLimit caps a single sensor's measurement sub-resource.
	SensorLimit = 100
)

// Query selects measurements. Zero fields do not constrain the result.
type Query struct {
	SensorID string
	From     *time.Time
	To       *time.Time
	Limit    int64
}

// Filter builds the store filter for q.
func (q Query) Filter() *docstore.Filter {
	return docstore.NewFilter().
		EqIfSet("sensor_id", q.SensorID).
		Range("timestamp", q.From, q.To)
}

// ParseQuery reads sensor_id, start_date, end_date and limit from params.
// An absent limit becomes defaultLimit.
func ParseQuery(params url.Values, defaultLimit int64) (Query, error) {
	q := Query{SensorID: params.Get("sensor_id"), Limit: defaultLimit}

	var err error
	if q.From, err = parseBound(params.Get("start_date"), "start_date"); err != nil {
		return Query{}, err
	}
	if q.To, err = parseBound(params.Get("end_date"), "end_date"); err != nil {
		return Query{}, err
	}

	if raw := strings.TrimSpace(params.Get("limit")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return Query{}, invalid("limit must be a positive integer")
		}
		q.Limit = n
	}
	return q, nil
}

// parseBound accepts the textual forms of docstore.ParseTime or a unix
// millisecond count.
func parseBound(raw, name string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t := docstore.TimeFromMillis(ms).Time
		return &t, nil
	}

	ts, err := docstore.ParseTime(raw)
	if err != nil {
		return nil, invalid("Invalid " + name + ": " + raw)
	}
	return &ts.Time, nil
}
