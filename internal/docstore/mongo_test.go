package docstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestMongoFilter(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	got, err := mongoFilter(NewFilter().
		EqIfSet("sensor_id", "s1").
		EqIfSet("status", "").
		Range("timestamp", &from, &to))
	if err != nil {
		t.Fatalf("mongoFilter() error = %v", err)
	}

	if got["sensor_id"] != "s1" {
		t.Errorf("sensor_id = %v, want s1", got["sensor_id"])
	}
	if _, ok := got["status"]; ok {
		t.Error("unset parameter leaked into the filter")
	}

	bounds, ok := got["timestamp"].(bson.M)
	if !ok {
		t.Fatalf("timestamp = %#v, want bson.M", got["timestamp"])
	}
	if gte, ok := bounds["$gte"].(time.Time); !ok || !gte.Equal(from) {
		t.Errorf("$gte = %#v, want %s", bounds["$gte"], from)
	}
	if lte, ok := bounds["$lte"].(time.Time); !ok || !lte.Equal(to) {
		t.Errorf("$lte = %#v, want %s", bounds["$lte"], to)
	}
}

func TestMongoFilter_InternalID(t *testing.T) {
	oid := primitive.NewObjectID()

	got, err := mongoFilter(ByInternalID(oid.Hex()))
	if err != nil {
		t.Fatalf("mongoFilter() error = %v", err)
	}
	if got[IDField] != oid {
		t.Errorf("_id = %v, want %v", got[IDField], oid)
	}

	if _, err := mongoFilter(ByInternalID("not-an-object-id")); !errors.Is(err, ErrNotFound) {
		t.Errorf("mongoFilter(bad id) error = %v, want ErrNotFound", err)
	}
}

func TestToBSON(t *testing.T) {
	oid := primitive.NewObjectID()
	ts := NewTime(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	got := toBSON(Document{
		IDField:     oid.Hex(),
		"timestamp": ts,
		"quality":   Document{"score": 1},
		"samples":   []any{ts},
	})

	if got[IDField] != oid {
		t.Errorf("_id = %#v, want ObjectID", got[IDField])
	}
	if v, ok := got["timestamp"].(time.Time); !ok || !v.Equal(ts.Time) {
		t.Errorf("timestamp = %#v, want time.Time", got["timestamp"])
	}
	if _, ok := got["quality"].(bson.M); !ok {
		t.Errorf("quality = %#v, want bson.M", got["quality"])
	}
	if _, ok := got["samples"].(bson.A)[0].(time.Time); !ok {
		t.Errorf("samples[0] = %#v, want time.Time", got["samples"])
	}
}

func TestFromBSON(t *testing.T) {
	oid := primitive.NewObjectID()
	when := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	got := fromBSON(bson.M{
		IDField:     oid,
		"timestamp": primitive.NewDateTimeFromTime(when),
		"location":  bson.M{"coordinates": bson.A{5.4, 43.5}},
		"metadata":  bson.D{{Key: "model", Value: "X"}},
		"count":     int32(3),
	})

	if got[IDField] != oid.Hex() {
		t.Errorf("_id = %#v, want %q", got[IDField], oid.Hex())
	}
	if ts, ok := got["timestamp"].(Time); !ok || !ts.Equal(when) {
		t.Errorf("timestamp = %#v, want Time", got["timestamp"])
	}
	loc, ok := got["location"].(Document)
	if !ok {
		t.Fatalf("location = %#v, want Document", got["location"])
	}
	if _, ok := loc["coordinates"].([]any); !ok {
		t.Errorf("coordinates = %#v, want []any", loc["coordinates"])
	}
	if meta, ok := got["metadata"].(Document); !ok || meta["model"] != "X" {
		t.Errorf("metadata = %#v, want Document{model: X}", got["metadata"])
	}
}

func TestSummaryFromGroup(t *testing.T) {
	first := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	last := first.Add(2 * time.Hour)

	sum := summaryFromGroup(bson.M{
		"count": int32(3),
		"avg":   20.0,
		"min":   int32(10),
		"max":   30.0,
		"first": primitive.NewDateTimeFromTime(first),
		"last":  primitive.NewDateTimeFromTime(last),
	})

	if sum.Count != 3 {
		t.Errorf("Count = %d, want 3", sum.Count)
	}
	if sum.Avg == nil || *sum.Avg != 20 || *sum.Min != 10 || *sum.Max != 30 {
		t.Errorf("Avg/Min/Max = %v/%v/%v, want 20/10/30", sum.Avg, sum.Min, sum.Max)
	}
	if sum.First == nil || !sum.First.Equal(first) || sum.Last == nil || !sum.Last.Equal(last) {
		t.Errorf("First/Last = %v/%v", sum.First, sum.Last)
	}

	empty := summaryFromGroup(bson.M{"count": int32(1), "avg": nil, "min": nil, "max": nil})
	if empty.Avg != nil || empty.Min != nil || empty.First != nil {
		t.Errorf("summaryFromGroup(nulls) = %+v, want nil aggregates", empty)
	}
}

// TestMongoStore_Integration exercises the store against a live server.
func TestMongoStore_Integration(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}

	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Disconnect(ctx) //nolint:errcheck // Test cleanup

	db := client.Database("steamcity_docstore_test")
	defer db.Drop(ctx) //nolint:errcheck // Test cleanup

	store := NewMongoStore(db)

	doc, err := store.Insert(ctx, Measurements, Document{"sensor_id": "s1", "value": 0.0, "timestamp": Now()})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := store.FindOne(ctx, Measurements, ByInternalID(doc.InternalID()))
	if err != nil {
		t.Fatalf("FindOne() error = %v", err)
	}
	if got["value"] != 0.0 {
		t.Errorf("value = %v, want 0", got["value"])
	}

	sum, err := store.Summarize(ctx, Measurements, NewFilter().Eq("sensor_id", "s1"), "value", "timestamp")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if sum.Count != 1 {
		t.Errorf("Count = %d, want 1", sum.Count)
	}

	n, err := store.Delete(ctx, Measurements, ByInternalID(doc.InternalID()))
	if err != nil || n != 1 {
		t.Errorf("Delete() = %d, %v; want 1, nil", n, err)
	}
}
