package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/steamcity/iot-platform/internal/docstore"
	"github.com/steamcity/iot-platform/internal/docstore/docstoretest"
	"github.com/steamcity/iot-platform/internal/infrastructure/mqtt"
	"github.com/steamcity/iot-platform/internal/measurement"
)

type fakeBroker struct {
	topic   string
	qos     byte
	handler mqtt.MessageHandler
	err     error
}

func (b *fakeBroker) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	b.topic, b.qos, b.handler = topic, qos, handler
	return b.err
}

func testSubscriber(t *testing.T) (*Subscriber, docstore.Store) {
	t.Helper()

	store := docstoretest.NewSQLite(t)
	return NewSubscriber(measurement.NewService(store), mqtt.Topics{Prefix: "steamcity"}), store
}

func TestStart(t *testing.T) {
	sub, _ := testSubscriber(t)
	broker := &fakeBroker{}

	if err := sub.Start(broker, 1); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if broker.topic != "steamcity/measurements/+" || broker.qos != 1 || broker.handler == nil {
		t.Errorf("subscribed %q qos %d", broker.topic, broker.qos)
	}

	broker.err = mqtt.ErrNotConnected
	if err := sub.Start(broker, 1); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Start() error = %v, want ErrNotConnected", err)
	}
}

func TestHandle_SensorIDFromTopic(t *testing.T) {
	sub, store := testSubscriber(t)
	ctx := context.Background()

	err := sub.Handle("steamcity/measurements/sensor-exp-001-1",
		[]byte(`{"value": 21, "timestamp": 1772359200000, "quality": {"score": 1, "status": "good"}}`))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	docs, err := store.Find(ctx, docstore.Measurements, nil, docstore.FindOptions{})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("stored %d measurements, want 1", len(docs))
	}
	doc := docs[0]
	if doc["sensor_id"] != "sensor-exp-001-1" {
		t.Errorf("sensor_id = %v", doc["sensor_id"])
	}
	if doc["value"] != 21.0 {
		t.Errorf("value = %#v, want 21.0", doc["value"])
	}
	if ts := doc["timestamp"].(docstore.Time); ts.String() != "2026-03-01T10:00:00.000Z" {
		t.Errorf("timestamp = %s", ts)
	}
}

func TestHandle_PayloadSensorIDWins(t *testing.T) {
	sub, store := testSubscriber(t)

	if err := sub.Handle("steamcity/measurements/topic-id", []byte(`{"sensor_id": "payload-id", "value": 0}`)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	docs, _ := store.Find(context.Background(), docstore.Measurements, nil, docstore.FindOptions{})
	if len(docs) != 1 || docs[0]["sensor_id"] != "payload-id" {
		t.Errorf("stored %v", docs)
	}
}

func TestHandle_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"not json", "steamcity/measurements/s1", `21.5`},
		{"broken json", "steamcity/measurements/s1", `{"value":`},
		{"null", "steamcity/measurements/s1", `null`},
		{"no value", "steamcity/measurements/s1", `{"timestamp": "2026-03-01"}`},
		{"no sensor", "steamcity/other", `{"value": 1}`},
		{"bad timestamp", "steamcity/measurements/s1", `{"value": 1, "timestamp": "tomorrow"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, store := testSubscriber(t)

			if err := sub.Handle(tt.topic, []byte(tt.payload)); err == nil {
				t.Error("Handle() error = nil, want rejection")
			}

			docs, _ := store.Find(context.Background(), docstore.Measurements, nil, docstore.FindOptions{})
			if len(docs) != 0 {
				t.Errorf("rejected message stored %d documents", len(docs))
			}
		})
	}
}
