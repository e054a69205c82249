package measurement

import (
	"encoding/json"

	"github.com/steamcity/iot-platform/internal/docstore"
)

// Stats summarizes the measurements of one sensor.
type Stats struct {
	Count          int64          `json:"count"`
	AvgValue       *float64       `json:"avgValue"`
	MinValue       *float64       `json:"minValue"`
	MaxValue       *float64       `json:"maxValue"`
	FirstTimestamp *docstore.Time `json:"firstTimestamp"`
	LastTimestamp  *docstore.Time `json:"lastTimestamp"`
}

// MarshalJSON renders an empty object when nothing was counted.
func (s Stats) MarshalJSON() ([]byte, error) {
	if s.Count == 0 {
		return []byte("{}"), nil
	}
	type plain Stats
	return json.Marshal(plain(s))
}

// FromSummary converts a store aggregate.
func FromSummary(sum docstore.Summary) Stats {
	return Stats{
		Count:          sum.Count,
		AvgValue:       sum.Avg,
		MinValue:       sum.Min,
		MaxValue:       sum.Max,
		FirstTimestamp: sum.First,
		LastTimestamp:  sum.Last,
	}
}

// Reduce computes Stats over docs in one pass. Non-numeric values count
// towards Count but not towards the value aggregates.
func Reduce(docs []docstore.Document) Stats {
	var (
		st      Stats
		sum     float64
		numeric int
	)

	for _, doc := range docs {
		st.Count++

		if v, ok := docstore.Float(doc["value"]); ok {
			sum += v
			numeric++
			if st.MinValue == nil || v < *st.MinValue {
				st.MinValue = ptr(v)
			}
			if st.MaxValue == nil || v > *st.MaxValue {
				st.MaxValue = ptr(v)
			}
		}

		ts, err := docstore.CoerceTime(doc["timestamp"])
		if err != nil {
			continue
		}
		if st.FirstTimestamp == nil || ts.Before(st.FirstTimestamp.Time) {
			st.FirstTimestamp = ptr(ts)
		}
		if st.LastTimestamp == nil || ts.After(st.LastTimestamp.Time) {
			st.LastTimestamp = ptr(ts)
		}
	}

	if numeric > 0 {
		st.AvgValue = ptr(sum / float64(numeric))
	}
	return st
}

func ptr[T any](v T) *T {
	return &v
}
