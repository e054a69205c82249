package client

import (
	"context"
	"math/rand/v2"
	"net/http"
	"net/url"
	"slices"
	"sync/atomic"
	"time"

	"github.com/steamcity/iot-platform/internal/catalog"
	"github.com/steamcity/iot-platform/internal/docstore"
	"github.com/steamcity/iot-platform/internal/measurement"
	"github.com/steamcity/iot-platform/internal/seed"
)

// Provider is the read side of the platform as seen by a consumer.
type Provider interface {
	Health(ctx context.Context) (Health, error)
	Config(ctx context.Context) (catalog.Config, error)
	ListExperiments(ctx context.Context) ([]docstore.Document, error)
	GetExperiment(ctx context.Context, id string) (docstore.Document, error)
	ExperimentSensors(ctx context.Context, id string) ([]docstore.Document, error)
	ListSensors(ctx context.Context, f SensorFilter) ([]docstore.Document, error)
	GetSensor(ctx context.Context, id string) (docstore.Document, error)
	SensorMeasurements(ctx context.Context, id string, f MeasurementFilter) ([]docstore.Document, error)
	ListMeasurements(ctx context.Context, f MeasurementFilter) ([]docstore.Document, error)
	MeasurementStats(ctx context.Context, sensorID string) (measurement.Stats, error)
}

// APIProvider serves live data from the REST API.
type APIProvider struct {
	*Client
}

// NewAPIProvider wraps c.
func NewAPIProvider(c *Client) *APIProvider {
	return &APIProvider{Client: c}
}

// ─── Demo data ─────────────────────────────────────────────────────

// demoSeed fixes the demo dataset so repeated runs show the same values.
const demoSeed = 2024

// DemoProvider serves a static generated dataset held in memory.
type DemoProvider struct {
	data seed.Dataset
	now  time.Time
}

// NewDemoProvider generates demo data with measurements ending at now.
func NewDemoProvider(now time.Time) *DemoProvider {
	return &DemoProvider{
		data: seed.Generate(seed.Options{
			Now:  now,
			Days: 1,
			Rand: rand.New(rand.NewPCG(demoSeed, demoSeed)), // #nosec G404 -- demo data
		}),
		now: now,
	}
}

// Health always reports the demo data as available.
func (d *DemoProvider) Health(context.Context) (Health, error) {
	return Health{
		Success:   true,
		Status:    "demo",
		Timestamp: docstore.NewTime(d.now).String(),
		Database:  "demo",
	}, nil
}

// Config returns the reference enumerations.
func (d *DemoProvider) Config(context.Context) (catalog.Config, error) {
	return catalog.Reference(), nil
}

// ListExperiments returns the demo experiments.
func (d *DemoProvider) ListExperiments(context.Context) ([]docstore.Document, error) {
	return matching(d.data.Experiments, nil), nil
}

// GetExperiment returns one demo experiment.
func (d *DemoProvider) GetExperiment(_ context.Context, id string) (docstore.Document, error) {
	return first(d.data.Experiments, id, "Experiment not found")
}

// ExperimentSensors returns the demo sensors of one experiment.
func (d *DemoProvider) ExperimentSensors(_ context.Context, id string) ([]docstore.Document, error) {
	return matching(d.data.Sensors, docstore.NewFilter().Eq("experiment_id", id)), nil
}

// ListSensors returns the demo sensors matching f.
func (d *DemoProvider) ListSensors(_ context.Context, f SensorFilter) ([]docstore.Document, error) {
	filter := docstore.NewFilter().
		EqIfSet("experiment_id", f.ExperimentID).
		EqIfSet("type", f.Type).
		EqIfSet("sensor_type_id", f.SensorTypeID).
		EqIfSet("status", f.Status)
	return matching(d.data.Sensors, filter), nil
}

// GetSensor returns one demo sensor.
func (d *DemoProvider) GetSensor(_ context.Context, id string) (docstore.Document, error) {
	return first(d.data.Sensors, id, "Sensor not found")
}

// SensorMeasurements returns one demo sensor's measurements.
func (d *DemoProvider) SensorMeasurements(_ context.Context, id string, f MeasurementFilter) ([]docstore.Document, error) {
	f.SensorID = id
	return d.measurements(f, measurement.SensorLimit)
}

// ListMeasurements returns the demo measurements matching f.
func (d *DemoProvider) ListMeasurements(_ context.Context, f MeasurementFilter) ([]docstore.Document, error) {
	return d.measurements(f, measurement.DefaultLimit)
}

// MeasurementStats aggregates one demo sensor's measurements.
func (d *DemoProvider) MeasurementStats(_ context.Context, sensorID string) (measurement.Stats, error) {
	if sensorID == "" {
		return measurement.Stats{}, &APIError{Status: http.StatusBadRequest, Message: "sensor_id is required"}
	}
	docs := matching(d.data.Measurements, docstore.NewFilter().Eq("sensor_id", sensorID))
	return measurement.Reduce(docs), nil
}

// measurements applies the server's query rules to the demo measurements.
func (d *DemoProvider) measurements(f MeasurementFilter, defaultLimit int64) ([]docstore.Document, error) {
	params := url.Values{}
	for k, v := range f.params() {
		params.Set(k, v)
	}
	q, err := measurement.ParseQuery(params, defaultLimit)
	if err != nil {
		return nil, &APIError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
	}

	docs := matching(d.data.Measurements, q.Filter())
	slices.SortStableFunc(docs, func(a, b docstore.Document) int {
		ta, _ := docstore.CoerceTime(a["timestamp"])
		tb, _ := docstore.CoerceTime(b["timestamp"])
		return tb.Compare(ta.Time)
	})
	if int64(len(docs)) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

// matching returns copies of the documents f accepts; a nil f accepts all.
func matching(docs []docstore.Document, f *docstore.Filter) []docstore.Document {
	out := []docstore.Document{}
	for _, doc := range docs {
		if f == nil || f.Matches(doc) {
			out = append(out, doc.Clone())
		}
	}
	return out
}

func first(docs []docstore.Document, id, notFound string) (docstore.Document, error) {
	found := matching(docs, docstore.NewFilter().Eq("id", id))
	if len(found) == 0 {
		return nil, &APIError{Status: http.StatusNotFound, Message: notFound}
	}
	return found[0], nil
}

// ─── Fallback ──────────────────────────────────────────────────────

// Logger defines the logging interface used by FallbackProvider.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// FallbackProvider serves from primary and switches to fallback for any
// call the primary cannot serve (see Unavailable). Answers such as 404 or
// 400 are returned as they are.
type FallbackProvider struct {
	primary  Provider
	fallback Provider
	logger   Logger
	degraded atomic.Bool
}

// NewFallbackProvider creates a FallbackProvider.
func NewFallbackProvider(primary, fallback Provider) *FallbackProvider {
	return &FallbackProvider{primary: primary, fallback: fallback, logger: noopLogger{}}
}

// SetLogger sets the logger reporting degradations.
func (p *FallbackProvider) SetLogger(logger Logger) {
	p.logger = logger
}

// Degraded reports whether any call has been served by the fallback.
func (p *FallbackProvider) Degraded() bool {
	return p.degraded.Load()
}

func try[T any](p *FallbackProvider, op string, call func(Provider) (T, error)) (T, error) {
	v, err := call(p.primary)
	if err == nil || !Unavailable(err) {
		return v, err
	}
	p.degraded.Store(true)
	p.logger.Warn("API unavailable, serving demo data", "operation", op, "error", err)
	return call(p.fallback)
}

// Health implements Provider.
func (p *FallbackProvider) Health(ctx context.Context) (Health, error) {
	return try(p, "health", func(pr Provider) (Health, error) { return pr.Health(ctx) })
}

// Config implements Provider.
func (p *FallbackProvider) Config(ctx context.Context) (catalog.Config, error) {
	return try(p, "config", func(pr Provider) (catalog.Config, error) { return pr.Config(ctx) })
}

// ListExperiments implements Provider.
func (p *FallbackProvider) ListExperiments(ctx context.Context) ([]docstore.Document, error) {
	return try(p, "list experiments", func(pr Provider) ([]docstore.Document, error) { return pr.ListExperiments(ctx) })
}

// GetExperiment implements Provider.
func (p *FallbackProvider) GetExperiment(ctx context.Context, id string) (docstore.Document, error) {
	return try(p, "get experiment", func(pr Provider) (docstore.Document, error) { return pr.GetExperiment(ctx, id) })
}

// ExperimentSensors implements Provider.
func (p *FallbackProvider) ExperimentSensors(ctx context.Context, id string) ([]docstore.Document, error) {
	return try(p, "experiment sensors", func(pr Provider) ([]docstore.Document, error) { return pr.ExperimentSensors(ctx, id) })
}

// ListSensors implements Provider.
func (p *FallbackProvider) ListSensors(ctx context.Context, f SensorFilter) ([]docstore.Document, error) {
	return try(p, "list sensors", func(pr Provider) ([]docstore.Document, error) { return pr.ListSensors(ctx, f) })
}

// GetSensor implements Provider.
func (p *FallbackProvider) GetSensor(ctx context.Context, id string) (docstore.Document, error) {
	return try(p, "get sensor", func(pr Provider) (docstore.Document, error) { return pr.GetSensor(ctx, id) })
}

// SensorMeasurements implements Provider.
func (p *FallbackProvider) SensorMeasurements(ctx context.Context, id string, f MeasurementFilter) ([]docstore.Document, error) {
	return try(p, "sensor measurements", func(pr Provider) ([]docstore.Document, error) {
		return pr.SensorMeasurements(ctx, id, f)
	})
}

// ListMeasurements implements Provider.
func (p *FallbackProvider) ListMeasurements(ctx context.Context, f MeasurementFilter) ([]docstore.Document, error) {
	return try(p, "list measurements", func(pr Provider) ([]docstore.Document, error) { return pr.ListMeasurements(ctx, f) })
}

// MeasurementStats implements Provider.
func (p *FallbackProvider) MeasurementStats(ctx context.Context, sensorID string) (measurement.Stats, error) {
	return try(p, "measurement stats", func(pr Provider) (measurement.Stats, error) {
		return pr.MeasurementStats(ctx, sensorID)
	})
}
