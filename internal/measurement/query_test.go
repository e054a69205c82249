package measurement

import (
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestParseQuery(t *testing.T) {
	q, err := ParseQuery(url.Values{
		"sensor_id":  {"s1"},
		"start_date": {"2026-03-01"},
		"end_date":   {"1772409600000"},
		"limit":      {"25"},
	}, DefaultLimit)
	if err != nil {
		t.Fatalf("ParseQuery() error = %v", err)
	}

	if q.SensorID != "s1" || q.Limit != 25 {
		t.Errorf("SensorID/Limit = %q/%d", q.SensorID, q.Limit)
	}
	if !q.From.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("From = %s", q.From)
	}
	if !q.To.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("To = %s", q.To)
	}
}

func TestParseQuery_Defaults(t *testing.T) {
	q, err := ParseQuery(url.Values{}, SensorLimit)
	if err != nil {
		t.Fatalf("ParseQuery() error = %v", err)
	}
	if q.Limit != SensorLimit || q.From != nil || q.To != nil || q.SensorID != "" {
		t.Errorf("ParseQuery(empty) = %+v", q)
	}
	if !q.Filter().Empty() {
		t.Error("empty query produced a constraining filter")
	}
}

func TestParseQuery_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		params url.Values
	}{
		{"zero limit", url.Values{"limit": {"0"}}},
		{"negative limit", url.Values{"limit": {"-5"}}},
		{"text limit", url.Values{"limit": {"ten"}}},
		{"bad start", url.Values{"start_date": {"last week"}}},
		{"bad end", url.Values{"end_date": {"2026-02-30"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseQuery(tt.params, DefaultLimit); !errors.Is(err, ErrValidation) {
				t.Errorf("ParseQuery() error = %v, want ErrValidation", err)
			}
		})
	}
}
