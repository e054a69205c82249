package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/steamcity/iot-platform/internal/catalog"
	"github.com/steamcity/iot-platform/internal/docstore"
	"github.com/steamcity/iot-platform/internal/export"
	"github.com/steamcity/iot-platform/internal/measurement"
)

// Defaults applied by New.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultRetryCount = 2
)

// APIError is returned for every failed call. Status is 0 when the server
// could not be reached.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return "steamcity api: " + e.Message
	}
	return fmt.Sprintf("steamcity api: %s (HTTP %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() error { return e.Err }

// Unavailable reports whether err means the API could not serve the request
// at all: a transport failure or a 5xx answer.
func Unavailable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == 0 || apiErr.Status >= http.StatusInternalServerError
}

// Health is the /api/health payload.
type Health struct {
	Success   bool   `json:"success"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SensorFilter selects sensors. Empty fields are not sent.
type SensorFilter struct {
	ExperimentID string
	Type         string
	SensorTypeID string
	Status       string
}

func (f SensorFilter) params() map[string]string {
	return nonEmpty(map[string]string{
		"experiment_id":  f.ExperimentID,
		"type":           f.Type,
		"sensor_type_id": f.SensorTypeID,
		"status":         f.Status,
	})
}

// MeasurementFilter selects measurements. Empty fields are not sent.
type MeasurementFilter struct {
	SensorID  string
	StartDate string
	EndDate   string
	Limit     int
}

func (f MeasurementFilter) params() map[string]string {
	p := map[string]string{
		"sensor_id":  f.SensorID,
		"start_date": f.StartDate,
		"end_date":   f.EndDate,
	}
	if f.Limit > 0 {
		p["limit"] = strconv.Itoa(f.Limit)
	}
	return nonEmpty(p)
}

func nonEmpty(p map[string]string) map[string]string {
	for k, v := range p {
		if v == "" {
			delete(p, k)
		}
	}
	return p
}

// envelope is the wire form of every JSON answer.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Count   *int            `json:"count"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// Option configures a Client.
type Option func(*resty.Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithRetries sets how many times a request failing at the transport level
// is retried.
func WithRetries(n int) Option {
	return func(c *resty.Client) { c.SetRetryCount(n) }
}

// Client calls the SteamCity REST API.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	http *resty.Client
}

// New creates a client for the API at baseURL (for example
// "http://localhost:3000").
func New(baseURL string, opts ...Option) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(DefaultTimeout).
		SetRetryCount(DefaultRetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{http: rc}
}

// request describes one call.
type request struct {
	method string
	path   string
	id     string
	query  map[string]string
	body   any
}

func (c *Client) execute(ctx context.Context, rq request) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx)
	if rq.id != "" {
		req.SetPathParam("id", rq.id)
	}
	if len(rq.query) > 0 {
		req.SetQueryParams(rq.query)
	}
	if rq.body != nil {
		req.SetBody(rq.body)
	}

	resp, err := req.Execute(rq.method, rq.path)
	if err != nil {
		return nil, &APIError{Message: "connection failed: " + err.Error(), Err: err}
	}
	return resp, nil
}

// call performs rq and decodes the envelope's data into out, which may be nil.
func (c *Client) call(ctx context.Context, rq request, out any) (envelope, error) {
	resp, err := c.execute(ctx, rq)
	if err != nil {
		return envelope{}, err
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return envelope{}, &APIError{
			Status:  resp.StatusCode(),
			Message: fmt.Sprintf("unexpected response to %s %s", rq.method, rq.path),
			Err:     err,
		}
	}
	if resp.IsError() || !env.Success {
		return env, failure(resp.StatusCode(), env.Error)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return env, &APIError{Status: resp.StatusCode(), Message: "decoding response data", Err: err}
		}
	}
	return env, nil
}

func failure(status int, message string) *APIError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &APIError{Status: status, Message: message}
}

func (c *Client) document(ctx context.Context, rq request) (docstore.Document, error) {
	var doc docstore.Document
	if _, err := c.call(ctx, rq, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Client) list(ctx context.Context, rq request) ([]docstore.Document, error) {
	var docs []docstore.Document
	if _, err := c.call(ctx, rq, &docs); err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []docstore.Document{}
	}
	return docs, nil
}

// ─── Health and reference ─────────────────────────────────────────

// Health checks the API and its database. A 503 answer is returned both as
// the decoded payload and as an *APIError.
func (c *Client) Health(ctx context.Context) (Health, error) {
	resp, err := c.execute(ctx, request{method: http.MethodGet, path: "/api/health"})
	if err != nil {
		return Health{}, err
	}

	var h Health
	if err := json.Unmarshal(resp.Body(), &h); err != nil {
		return Health{}, &APIError{Status: resp.StatusCode(), Message: "unexpected health payload", Err: err}
	}
	if resp.IsError() || !h.Success {
		return h, failure(resp.StatusCode(), h.Error)
	}
	return h, nil
}

// Config returns the reference enumerations.
func (c *Client) Config(ctx context.Context) (catalog.Config, error) {
	var cfg catalog.Config
	_, err := c.call(ctx, request{method: http.MethodGet, path: "/api/config"}, &cfg)
	return cfg, err
}

// ─── Experiments ───────────────────────────────────────────────────

// ListExperiments returns every experiment.
func (c *Client) ListExperiments(ctx context.Context) ([]docstore.Document, error) {
	return c.list(ctx, request{method: http.MethodGet, path: "/api/experiments"})
}

// GetExperiment returns one experiment.
func (c *Client) GetExperiment(ctx context.Context, id string) (docstore.Document, error) {
	return c.document(ctx, request{method: http.MethodGet, path: "/api/experiments/{id}", id: id})
}

// ExperimentSensors returns the sensors of one experiment.
func (c *Client) ExperimentSensors(ctx context.Context, id string) ([]docstore.Document, error) {
	return c.list(ctx, request{method: http.MethodGet, path: "/api/experiments/{id}/sensors", id: id})
}

// CreateExperiment stores a new experiment.
func (c *Client) CreateExperiment(ctx context.Context, doc docstore.Document) (docstore.Document, error) {
	return c.document(ctx, request{method: http.MethodPost, path: "/api/experiments", body: doc})
}

// UpdateExperiment merges patch into an experiment.
func (c *Client) UpdateExperiment(ctx context.Context, id string, patch docstore.Document) (docstore.Document, error) {
	return c.document(ctx, request{method: http.MethodPut, path: "/api/experiments/{id}", id: id, body: patch})
}

// DeleteExperiment removes an experiment.
func (c *Client) DeleteExperiment(ctx context.Context, id string) error {
	_, err := c.call(ctx, request{method: http.MethodDelete, path: "/api/experiments/{id}", id: id}, nil)
	return err
}

// ─── Sensors ───────────────────────────────────────────────────────

// ListSensors returns the sensors matching f.
func (c *Client) ListSensors(ctx context.Context, f SensorFilter) ([]docstore.Document, error) {
	return c.list(ctx, request{method: http.MethodGet, path: "/api/sensors", query: f.params()})
}

// GetSensor returns one sensor.
func (c *Client) GetSensor(ctx context.Context, id string) (docstore.Document, error) {
	return c.document(ctx, request{method: http.MethodGet, path: "/api/sensors/{id}", id: id})
}

// SensorMeasurements returns one sensor's measurements, most recent first.
// f.SensorID is ignored.
func (c *Client) SensorMeasurements(ctx context.Context, id string, f MeasurementFilter) ([]docstore.Document, error) {
	f.SensorID = ""
	return c.list(ctx, request{method: http.MethodGet, path: "/api/sensors/{id}/measurements", id: id, query: f.params()})
}

// CreateSensor stores a new sensor.
func (c *Client) CreateSensor(ctx context.Context, doc docstore.Document) (docstore.Document, error) {
	return c.document(ctx, request{method: http.MethodPost, path: "/api/sensors", body: doc})
}

// UpdateSensor merges patch into a sensor.
func (c *Client) UpdateSensor(ctx context.Context, id string, patch docstore.Document) (docstore.Document, error) {
	return c.document(ctx, request{method: http.MethodPut, path: "/api/sensors/{id}", id: id, body: patch})
}

// DeleteSensor removes a sensor.
func (c *Client) DeleteSensor(ctx context.Context, id string) error {
	_, err := c.call(ctx, request{method: http.MethodDelete, path: "/api/sensors/{id}", id: id}, nil)
	return err
}

// ListSensorTypes returns the persisted sensor types.
func (c *Client) ListSensorTypes(ctx context.Context) ([]docstore.Document, error) {
	return c.list(ctx, request{method: http.MethodGet, path: "/api/sensors/types"})
}

// ─── Measurements ──────────────────────────────────────────────────

// ListMeasurements returns the measurements matching f, most recent first.
func (c *Client) ListMeasurements(ctx context.Context, f MeasurementFilter) ([]docstore.Document, error) {
	return c.list(ctx, request{method: http.MethodGet, path: "/api/sensors/measurements", query: f.params()})
}

// MeasurementStats aggregates one sensor's measurements.
func (c *Client) MeasurementStats(ctx context.Context, sensorID string) (measurement.Stats, error) {
	var stats measurement.Stats
	_, err := c.call(ctx, request{
		method: http.MethodGet,
		path:   "/api/sensors/measurements/stats",
		query:  nonEmpty(map[string]string{"sensor_id": sensorID}),
	}, &stats)
	return stats, err
}

// CreateMeasurement stores a measurement.
func (c *Client) CreateMeasurement(ctx context.Context, doc docstore.Document) (docstore.Document, error) {
	return c.document(ctx, request{method: http.MethodPost, path: "/api/sensors/measurements", body: doc})
}

// UpdateMeasurement merges patch into the measurement with internal id id.
func (c *Client) UpdateMeasurement(ctx context.Context, id string, patch docstore.Document) (docstore.Document, error) {
	return c.document(ctx, request{method: http.MethodPut, path: "/api/sensors/measurements/{id}", id: id, body: patch})
}

// DeleteMeasurement removes the measurement with internal id id.
func (c *Client) DeleteMeasurement(ctx context.Context, id string) error {
	_, err := c.call(ctx, request{method: http.MethodDelete, path: "/api/sensors/measurements/{id}", id: id}, nil)
	return err
}

// ExportMeasurements downloads the measurements matching f in format.
func (c *Client) ExportMeasurements(ctx context.Context, format export.Format, f MeasurementFilter) ([]byte, error) {
	query := f.params()
	query["format"] = string(format)

	resp, err := c.execute(ctx, request{method: http.MethodGet, path: "/api/sensors/measurements/export", query: query})
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		var env envelope
		_ = json.Unmarshal(resp.Body(), &env) //nolint:errcheck // Falls back to the status text
		return nil, failure(resp.StatusCode(), env.Error)
	}
	return resp.Body(), nil
}
