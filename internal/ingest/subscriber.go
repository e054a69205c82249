package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/steamcity/iot-platform/internal/docstore"
	"github.com/steamcity/iot-platform/internal/infrastructure/metrics"
	"github.com/steamcity/iot-platform/internal/infrastructure/mqtt"
)

// handleTimeout bounds the store write for a single message.
const handleTimeout = 10 * time.Second

// Creator stores a measurement. Satisfied by *measurement.Service.
type Creator interface {
	Create(ctx context.Context, doc docstore.Document) (docstore.Document, error)
}

// Broker is the subset of the MQTT client the subscriber needs.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Logger defines the logging interface used by the Subscriber.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Subscriber turns MQTT messages on measurement topics into stored
// measurements.
type Subscriber struct {
	creator Creator
	topics  mqtt.Topics
	logger  Logger
}

// NewSubscriber creates a subscriber storing through creator.
func NewSubscriber(creator Creator, topics mqtt.Topics) *Subscriber {
	return &Subscriber{creator: creator, topics: topics, logger: noopLogger{}}
}

// SetLogger sets the logger for the subscriber.
func (s *Subscriber) SetLogger(logger Logger) {
	s.logger = logger
}

// Start subscribes to every sensor's measurement topic.
func (s *Subscriber) Start(broker Broker, qos byte) error {
	if err := broker.Subscribe(s.topics.AllMeasurements(), qos, s.Handle); err != nil {
		return fmt.Errorf("subscribing to measurements: %w", err)
	}
	return nil
}

// Handle stores one message. The payload is a JSON object; the sensor id
// comes from the payload or, failing that, from the topic.
func (s *Subscriber) Handle(topic string, payload []byte) error {
	doc, err := s.decode(topic, payload)
	if err != nil {
		metrics.IngestRejected.WithLabelValues(metrics.SourceMQTT).Inc()
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	stored, err := s.creator.Create(ctx, doc)
	if err != nil {
		metrics.IngestRejected.WithLabelValues(metrics.SourceMQTT).Inc()
		return fmt.Errorf("storing measurement from %s: %w", topic, err)
	}

	metrics.MeasurementsIngested.WithLabelValues(metrics.SourceMQTT).Inc()
	s.logger.Debug("measurement ingested", "topic", topic, "_id", stored.InternalID())
	return nil
}

func (s *Subscriber) decode(topic string, payload []byte) (docstore.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var doc docstore.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding payload on %s: %w", topic, err)
	}
	if doc == nil {
		return nil, errors.New("payload is not a JSON object")
	}
	normalizeNumbers(doc)

	if id, _ := doc["sensor_id"].(string); id == "" {
		sensorID, ok := s.topics.SensorIDFromTopic(topic)
		if !ok {
			return nil, fmt.Errorf("no sensor id in payload or topic %q", topic)
		}
		doc["sensor_id"] = sensorID
	}
	return doc, nil
}

// normalizeNumbers converts json.Number values to float64 so documents
// match what the HTTP API stores. Integer timestamps are kept exact.
func normalizeNumbers(doc docstore.Document) {
	for k, v := range doc {
		switch t := v.(type) {
		case json.Number:
			if k == "timestamp" {
				if ms, err := t.Int64(); err == nil {
					doc[k] = ms
					continue
				}
			}
			if f, err := t.Float64(); err == nil {
				doc[k] = f
			}
		case map[string]any:
			normalizeNumbers(t)
		}
	}
}
