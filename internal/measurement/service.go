package measurement

import (
	"context"
	"errors"
	"fmt"

	"github.com/steamcity/iot-platform/internal/docstore"
)

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Sink receives every measurement after it has been stored.
type Sink interface {
	Publish(ctx context.Context, doc docstore.Document) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, doc docstore.Document) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, doc docstore.Document) error {
	return f(ctx, doc)
}

// Service implements the measurement operations on a document store.
type Service struct {
	store  docstore.Store
	sinks  []Sink
	logger Logger
	now    func() docstore.Time
}

// NewService creates a Service backed by store.
func NewService(store docstore.Store) *Service {
	return &Service{
		store:  store,
		logger: noopLogger{},
		now:    docstore.Now,
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// AddSink registers a sink for newly created measurements. Not safe to call
// once the service is handling requests.
func (s *Service) AddSink(sink Sink) {
	s.sinks = append(s.sinks, sink)
}

// List returns the measurements matching q, most recent first.
func (s *Service) List(ctx context.Context, q Query) ([]docstore.Document, error) {
	docs, err := s.store.Find(ctx, docstore.Measurements, q.Filter(), docstore.FindOptions{
		SortField:  "timestamp",
		Descending: true,
		Limit:      q.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing measurements: %w", err)
	}
	return docs, nil
}

// Stats aggregates every measurement of one sensor.
func (s *Service) Stats(ctx context.Context, sensorID string) (Stats, error) {
	if sensorID == "" {
		return Stats{}, invalid("sensor_id is required")
	}

	sum, err := s.store.Summarize(ctx, docstore.Measurements,
		docstore.NewFilter().Eq("sensor_id", sensorID), "value", "timestamp")
	if err != nil {
		return Stats{}, fmt.Errorf("summarizing measurements of %s: %w", sensorID, err)
	}
	return FromSummary(sum), nil
}

// Create validates and stores a measurement, then hands it to every sink.
// sensor_id must be a non-empty string and the value key must be present,
// though its value may be zero or null. A missing timestamp defaults to now.
func (s *Service) Create(ctx context.Context, doc docstore.Document) (docstore.Document, error) {
	sensorID, _ := doc["sensor_id"].(string)
	if _, hasValue := doc["value"]; sensorID == "" || !hasValue {
		return nil, invalid("Missing required fields: sensor_id and value")
	}

	doc = doc.Without(docstore.IDField)
	if err := s.normalizeTimestamp(doc, true); err != nil {
		return nil, err
	}
	if err := s.denormalize(ctx, sensorID, doc); err != nil {
		return nil, err
	}

	stored, err := s.store.Insert(ctx, docstore.Measurements, doc)
	if err != nil {
		return nil, fmt.Errorf("creating measurement: %w", err)
	}

	s.publish(ctx, stored)
	return stored, nil
}

// Update merges patch into the measurement with the given internal id.
func (s *Service) Update(ctx context.Context, id string, patch docstore.Document) (docstore.Document, error) {
	patch = patch.Without(docstore.IDField)
	if err := s.normalizeTimestamp(patch, false); err != nil {
		return nil, err
	}

	doc, err := s.store.Update(ctx, docstore.Measurements, docstore.ByInternalID(id), patch)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating measurement %s: %w", id, err)
	}
	return doc, nil
}

// Delete removes the measurement with the given internal id.
func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.store.Delete(ctx, docstore.Measurements, docstore.ByInternalID(id))
	if err != nil {
		return fmt.Errorf("deleting measurement %s: %w", id, err)
	}
	if n == 0 {
		return errNotFound
	}
	return nil
}

// normalizeTimestamp parses doc's timestamp in place. An unset timestamp
// (missing, null, "" or 0) becomes now on create and is left unchanged on
// update.
func (s *Service) normalizeTimestamp(doc docstore.Document, defaultNow bool) error {
	raw := doc["timestamp"]
	if timestampUnset(raw) {
		if defaultNow {
			doc["timestamp"] = s.now()
		} else {
			delete(doc, "timestamp")
		}
		return nil
	}

	ts, err := docstore.CoerceTime(raw)
	if err != nil {
		return invalid(fmt.Sprintf("Invalid timestamp: %v", raw))
	}
	doc["timestamp"] = ts
	return nil
}

// denormalize copies sensor_type_id and experiment_id from the owning
// sensor when the measurement lacks them. Unknown sensors are accepted.
func (s *Service) denormalize(ctx context.Context, sensorID string, doc docstore.Document) error {
	if present(doc, "sensor_type_id") && present(doc, "experiment_id") {
		return nil
	}

	sensor, err := s.store.FindOne(ctx, docstore.SensorDevices, docstore.NewFilter().Eq("id", sensorID))
	if errors.Is(err, docstore.ErrNotFound) {
		s.logger.Debug("measurement for unknown sensor", "sensor_id", sensorID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up sensor %s: %w", sensorID, err)
	}

	if !present(doc, "sensor_type_id") {
		switch {
		case present(sensor, "sensor_type_id"):
			doc["sensor_type_id"] = sensor["sensor_type_id"]
		case present(sensor, "type"):
			doc["sensor_type_id"] = sensor["type"]
		}
	}
	if !present(doc, "experiment_id") && present(sensor, "experiment_id") {
		doc["experiment_id"] = sensor["experiment_id"]
	}
	return nil
}

func (s *Service) publish(ctx context.Context, doc docstore.Document) {
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, doc); err != nil {
			s.logger.Warn("measurement sink failed", "sensor_id", doc["sensor_id"], "error", err)
		}
	}
}

func present(doc docstore.Document, field string) bool {
	v, ok := doc[field]
	if !ok || v == nil {
		return false
	}
	if str, ok := v.(string); ok {
		return str != ""
	}
	return true
}

func timestampUnset(v any) bool {
	if v == nil || v == "" {
		return true
	}
	f, ok := docstore.Float(v)
	return ok && f == 0
}
