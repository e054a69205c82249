package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingest sources.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steamcity_http_requests_total",
			Help: "Total HTTP requests by route pattern, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "steamcity_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	MeasurementsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steamcity_measurements_ingested_total",
			Help: "Total measurements stored, by ingest source",
		},
		[]string{"source"},
	)

	IngestRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steamcity_measurements_rejected_total",
			Help: "Total measurement messages rejected, by ingest source",
		},
		[]string{"source"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steamcity_store_errors_total",
			Help: "Backend failures surfaced as 500 responses, by route pattern",
		},
		[]string{"route"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "steamcity_websocket_clients",
			Help: "Currently connected live-stream clients",
		},
	)
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
