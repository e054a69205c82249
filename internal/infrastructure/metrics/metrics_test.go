package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMeasurementsIngested(t *testing.T) {
	before := testutil.ToFloat64(MeasurementsIngested.WithLabelValues(SourceMQTT))
	MeasurementsIngested.WithLabelValues(SourceMQTT).Inc()

	if got := testutil.ToFloat64(MeasurementsIngested.WithLabelValues(SourceMQTT)); got != before+1 {
		t.Errorf("counter = %v, want %v", got, before+1)
	}
}

func TestHandler(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("/api/health", "GET", "200").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `steamcity_http_requests_total{method="GET",route="/api/health",status="200"}`) {
		t.Error("exposition is missing the request counter")
	}
}
