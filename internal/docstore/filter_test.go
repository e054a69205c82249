package docstore

import (
	"errors"
	"testing"
	"time"
)

func TestFilter_EqIfSet(t *testing.T) {
	f := NewFilter().
		EqIfSet("experiment_id", "exp-1").
		EqIfSet("type", "").
		EqIfSet("status", "online")

	conds := f.Conditions()
	if len(conds) != 2 {
		t.Fatalf("conditions = %d, want 2", len(conds))
	}
	if conds[0].Field != "experiment_id" || conds[1].Field != "status" {
		t.Errorf("fields = %q, %q, want experiment_id, status", conds[0].Field, conds[1].Field)
	}
}

func TestFilter_RangeBoundsAreIndependent(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		from    *time.Time
		to      *time.Time
		wantOps []Op
	}{
		{"both bounds", &from, &to, []Op{OpGte, OpLte}},
		{"lower only", &from, nil, []Op{OpGte}},
		{"upper only", nil, &to, []Op{OpLte}},
		{"no bounds", nil, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conds := NewFilter().Range("timestamp", tt.from, tt.to).Conditions()
			if len(conds) != len(tt.wantOps) {
				t.Fatalf("conditions = %d, want %d", len(conds), len(tt.wantOps))
			}
			for i, op := range tt.wantOps {
				if conds[i].Op != op {
					t.Errorf("conds[%d].Op = %v, want %v", i, conds[i].Op, op)
				}
			}
		})
	}
}

func TestFilter_Empty(t *testing.T) {
	var nilFilter *Filter
	if !nilFilter.Empty() {
		t.Error("nil filter is not empty")
	}
	if !NewFilter().EqIfSet("status", "").Empty() {
		t.Error("filter with only unset params is not empty")
	}
	if ByInternalID("abc").Empty() {
		t.Error("id filter reported empty")
	}
}

func TestFilter_Validate(t *testing.T) {
	if err := NewFilter().Eq("sensor_id", "s1").Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	for _, bad := range []string{"", "a.b", "x'); DROP TABLE documents; --", "1abc", "$where"} {
		err := NewFilter().Eq(bad, "v").Validate()
		if !errors.Is(err, ErrInvalidField) {
			t.Errorf("Validate(%q) error = %v, want ErrInvalidField", bad, err)
		}
	}
}

func TestFilter_Matches(t *testing.T) {
	ts := NewTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	doc := Document{
		IDField:     "m-1",
		"sensor_id": "s1",
		"value":     21.5,
		"timestamp": ts,
	}

	before := ts.Add(-time.Hour)
	after := ts.Add(time.Hour)

	tests := []struct {
		name   string
		filter *Filter
		want   bool
	}{
		{"empty", NewFilter(), true},
		{"equal string", NewFilter().Eq("sensor_id", "s1"), true},
		{"different string", NewFilter().Eq("sensor_id", "s2"), false},
		{"missing field", NewFilter().Eq("status", "online"), false},
		{"numeric equality", NewFilter().Eq("value", 21.5), true},
		{"inside range", NewFilter().Range("timestamp", &before, &after), true},
		{"inclusive lower", NewFilter().Range("timestamp", &ts.Time, nil), true},
		{"inclusive upper", NewFilter().Range("timestamp", nil, &ts.Time), true},
		{"after range", NewFilter().Range("timestamp", nil, &before), false},
		{"internal id", ByInternalID("m-1"), true},
		{"other internal id", ByInternalID("m-2"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(doc); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
