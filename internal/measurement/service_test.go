package measurement

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/steamcity/iot-platform/internal/docstore"
	"github.com/steamcity/iot-platform/internal/docstore/docstoretest"
)

var base = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func hour(h int) docstore.Time {
	return docstore.NewTime(base.Add(time.Duration(h) * time.Hour))
}

func testService(t *testing.T) (*Service, docstore.Store) {
	t.Helper()

	store := docstoretest.NewSQLite(t)
	svc := NewService(store)
	svc.now = func() docstore.Time { return hour(100) }
	return svc, store
}

// seed inserts values 10..50 for s1 at hours 0..4 (out of order) and one s2 reading.
func seed(t *testing.T, store docstore.Store) {
	t.Helper()

	docs := []docstore.Document{
		{"sensor_id": "s1", "value": 30.0, "timestamp": hour(2)},
		{"sensor_id": "s1", "value": 10.0, "timestamp": hour(0)},
		{"sensor_id": "s1", "value": 50.0, "timestamp": hour(4)},
		{"sensor_id": "s1", "value": 20.0, "timestamp": hour(1)},
		{"sensor_id": "s1", "value": 40.0, "timestamp": hour(3)},
		{"sensor_id": "s2", "value": 7.0, "timestamp": hour(2)},
	}
	if _, err := store.InsertMany(context.Background(), docstore.Measurements, docs); err != nil {
		t.Fatalf("InsertMany() error = %v", err)
	}
}

type recordingSink struct {
	mu   sync.Mutex
	docs []docstore.Document
	err  error
}

func (r *recordingSink) Publish(_ context.Context, doc docstore.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	return r.err
}

// ─── List ──────────────────────────────────────────────────────────

func TestList_SortedDescendingAndLimited(t *testing.T) {
	svc, store := testService(t)
	seed(t, store)

	docs, err := svc.List(context.Background(), Query{SensorID: "s1", Limit: 3})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("len = %d, want 3", len(docs))
	}

	want := []float64{50, 40, 30}
	for i, doc := range docs {
		if doc["value"] != want[i] {
			t.Errorf("docs[%d].value = %v, want %v", i, doc["value"], want[i])
		}
		if i > 0 {
			prev := docs[i-1]["timestamp"].(docstore.Time)
			cur := doc["timestamp"].(docstore.Time)
			if cur.After(prev.Time) {
				t.Errorf("docs[%d] (%s) is after docs[%d] (%s)", i, cur, i-1, prev)
			}
		}
	}
}

func TestList_DateRangeInclusive(t *testing.T) {
	svc, store := testService(t)
	seed(t, store)

	from, to := hour(1).Time, hour(3).Time
	tests := []struct {
		name  string
		query Query
		want  int
	}{
		{"both bounds", Query{SensorID: "s1", From: &from, To: &to}, 3},
		{"from only", Query{SensorID: "s1", From: &from}, 4},
		{"to only", Query{SensorID: "s1", To: &to}, 4},
		{"no sensor", Query{From: &from, To: &to}, 4},
		{"nothing", Query{}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := svc.List(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(docs) != tt.want {
				t.Errorf("len = %d, want %d", len(docs), tt.want)
			}
		})
	}
}

// ─── Stats ─────────────────────────────────────────────────────────

func TestStats(t *testing.T) {
	svc, store := testService(t)
	seed(t, store)

	st, err := svc.Stats(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}

	if st.Count != 5 {
		t.Errorf("Count = %d, want 5", st.Count)
	}
	if st.AvgValue == nil || math.Abs(*st.AvgValue-30) > 1e-9 {
		t.Errorf("AvgValue = %v, want 30", st.AvgValue)
	}
	if *st.MinValue != 10 || *st.MaxValue != 50 {
		t.Errorf("Min/Max = %v/%v, want 10/50", *st.MinValue, *st.MaxValue)
	}
	if !st.FirstTimestamp.Equal(hour(0).Time) || !st.LastTimestamp.Equal(hour(4).Time) {
		t.Errorf("First/Last = %s/%s", st.FirstTimestamp, st.LastTimestamp)
	}
}

// The store aggregate and the in-memory reduction agree.
func TestStats_MatchesReduce(t *testing.T) {
	svc, store := testService(t)
	seed(t, store)
	ctx := context.Background()

	docs, err := svc.List(ctx, Query{SensorID: "s1", Limit: DefaultLimit})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := Reduce(docs)

	got, err := svc.Stats(ctx, "s1")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}

	if got.Count != want.Count || *got.AvgValue != *want.AvgValue ||
		*got.MinValue != *want.MinValue || *got.MaxValue != *want.MaxValue {
		t.Errorf("Stats() = %+v, Reduce() = %+v", got, want)
	}
}

func TestStats_RequiresSensorID(t *testing.T) {
	svc, _ := testService(t)

	_, err := svc.Stats(context.Background(), "")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Stats() error = %v, want ErrValidation", err)
	}
	if err.Error() != "sensor_id is required" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestStats_EmptyRendersEmptyObject(t *testing.T) {
	svc, _ := testService(t)

	st, err := svc.Stats(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}

	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("Marshal() = %s, want {}", data)
	}
}

func TestReduce(t *testing.T) {
	st := Reduce([]docstore.Document{
		{"value": 2.0, "timestamp": "2026-03-01T10:00:00Z"},
		{"value": -4.0, "timestamp": hour(0)},
		{"value": nil, "timestamp": hour(5)},
		{"value": "n/a"},
	})

	if st.Count != 4 {
		t.Errorf("Count = %d, want 4", st.Count)
	}
	if *st.AvgValue != -1 || *st.MinValue != -4 || *st.MaxValue != 2 {
		t.Errorf("Avg/Min/Max = %v/%v/%v, want -1/-4/2", *st.AvgValue, *st.MinValue, *st.MaxValue)
	}
	if !st.FirstTimestamp.Equal(hour(0).Time) || !st.LastTimestamp.Equal(hour(5).Time) {
		t.Errorf("First/Last = %s/%s", st.FirstTimestamp, st.LastTimestamp)
	}

	if empty := Reduce(nil); empty.Count != 0 || empty.AvgValue != nil {
		t.Errorf("Reduce(nil) = %+v", empty)
	}
}

// ─── Create ────────────────────────────────────────────────────────

func TestCreate_ZeroValueAccepted(t *testing.T) {
	svc, _ := testService(t)

	doc, err := svc.Create(context.Background(), docstore.Document{"sensor_id": "s1", "value": 0.0})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if doc["value"] != 0.0 {
		t.Errorf("value = %v, want 0", doc["value"])
	}
	if doc.InternalID() == "" {
		t.Error("stored measurement has no _id")
	}
	if ts := doc["timestamp"].(docstore.Time); !ts.Equal(hour(100).Time) {
		t.Errorf("timestamp = %s, want default now %s", ts, hour(100))
	}
}

func TestCreate_UnsetTimestampDefaultsToNow(t *testing.T) {
	svc, _ := testService(t)

	for _, raw := range []any{nil, "", 0, 0.0, json.Number("0")} {
		doc, err := svc.Create(context.Background(), docstore.Document{"sensor_id": "s1", "value": 1.0, "timestamp": raw})
		if err != nil {
			t.Fatalf("Create(timestamp %#v) error = %v", raw, err)
		}
		if ts := doc["timestamp"].(docstore.Time); !ts.Equal(hour(100).Time) {
			t.Errorf("Create(timestamp %#v) timestamp = %s, want now %s", raw, ts, hour(100))
		}
	}
}

func TestUpdate_UnsetTimestampKeepsStored(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, docstore.Document{"sensor_id": "s1", "value": 1.0, "timestamp": hour(3)})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := svc.Update(ctx, created.InternalID(), docstore.Document{"value": 2.0, "timestamp": ""})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if ts := updated["timestamp"].(docstore.Time); !ts.Equal(hour(3).Time) {
		t.Errorf("timestamp = %s, want unchanged %s", ts, hour(3))
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		doc  docstore.Document
		want string
	}{
		{"missing value", docstore.Document{"sensor_id": "s1"}, "Missing required fields: sensor_id and value"},
		{"missing sensor", docstore.Document{"value": 1.0}, "Missing required fields: sensor_id and value"},
		{"empty sensor", docstore.Document{"sensor_id": "", "value": 1.0}, "Missing required fields: sensor_id and value"},
		{"bad timestamp", docstore.Document{"sensor_id": "s1", "value": 1.0, "timestamp": "soon"}, "Invalid timestamp: soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := testService(t)

			_, err := svc.Create(context.Background(), tt.doc)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("Create() error = %v, want ErrValidation", err)
			}
			if err.Error() != tt.want {
				t.Errorf("message = %q, want %q", err.Error(), tt.want)
			}
		})
	}
}

func TestCreate_NullValueAccepted(t *testing.T) {
	svc, _ := testService(t)

	doc, err := svc.Create(context.Background(), docstore.Document{"sensor_id": "s1", "value": nil})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if v, ok := doc["value"]; !ok || v != nil {
		t.Errorf("value = %v (present %v), want null", v, ok)
	}
}

func TestCreate_ParsesTimestamp(t *testing.T) {
	svc, _ := testService(t)

	doc, err := svc.Create(context.Background(), docstore.Document{
		"sensor_id": "s1", "value": 1.5, "timestamp": "2026-03-01T09:00:00+01:00",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ts := doc["timestamp"].(docstore.Time); !ts.Equal(base) {
		t.Errorf("timestamp = %s, want %s", ts, base)
	}
}

func TestCreate_DenormalizesFromSensor(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()

	if _, err := store.Insert(ctx, docstore.SensorDevices, docstore.Document{
		"id": "s1", "experiment_id": "exp-1", "type": "co2",
	}); err != nil {
		t.Fatalf("Insert(sensor) error = %v", err)
	}

	doc, err := svc.Create(ctx, docstore.Document{"sensor_id": "s1", "value": 412.0})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if doc["sensor_type_id"] != "co2" || doc["experiment_id"] != "exp-1" {
		t.Errorf("denormalized fields = %v / %v, want co2 / exp-1", doc["sensor_type_id"], doc["experiment_id"])
	}

	explicit, err := svc.Create(ctx, docstore.Document{"sensor_id": "s1", "value": 1.0, "experiment_id": "exp-9"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if explicit["experiment_id"] != "exp-9" {
		t.Errorf("explicit experiment_id overwritten: %v", explicit["experiment_id"])
	}
}

func TestCreate_PublishesToSinks(t *testing.T) {
	svc, _ := testService(t)
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("influx down")}
	svc.AddSink(failing)
	svc.AddSink(ok)

	if _, err := svc.Create(context.Background(), docstore.Document{"sensor_id": "s1", "value": 3.0}); err != nil {
		t.Fatalf("Create() error = %v, want sink failures ignored", err)
	}

	if len(ok.docs) != 1 || len(failing.docs) != 1 {
		t.Fatalf("sinks received %d / %d documents, want 1 / 1", len(ok.docs), len(failing.docs))
	}
	if ok.docs[0].InternalID() == "" {
		t.Error("sink received a document without _id")
	}
}

// ─── Update / Delete ───────────────────────────────────────────────

func TestUpdateAndDelete(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, docstore.Document{"sensor_id": "s1", "value": 1.0})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	id := created.InternalID()

	updated, err := svc.Update(ctx, id, docstore.Document{"value": 2.0, "timestamp": "2026-03-01", "_id": "other"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated["value"] != 2.0 || updated.InternalID() != id {
		t.Errorf("Update() = %v", updated)
	}
	if ts := updated["timestamp"].(docstore.Time); ts.String() != "2026-03-01T00:00:00.000Z" {
		t.Errorf("timestamp = %s", ts)
	}

	if _, err := svc.Update(ctx, id, docstore.Document{"timestamp": true}); !errors.Is(err, ErrValidation) {
		t.Errorf("Update(bad timestamp) error = %v, want ErrValidation", err)
	}

	if err := svc.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := svc.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
	_, err = svc.Update(ctx, id, docstore.Document{"value": 3.0})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(deleted) error = %v, want ErrNotFound", err)
	}
	if err.Error() != "Measurement not found" {
		t.Errorf("message = %q", err.Error())
	}
}
