package api

import (
	"context"
	"net/http"
	"time"

	"github.com/steamcity/iot-platform/internal/catalog"
	"github.com/steamcity/iot-platform/internal/docstore"
)

// healthPingTimeout bounds the store ping behind /api/health.
const healthPingTimeout = 5 * time.Second

// HealthStatus is the /api/health payload. It is not wrapped in the
// envelope: success sits alongside the status fields.
type HealthStatus struct {
	Success   bool   `json:"success"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleHealth reports liveness and whether the document store answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	status := HealthStatus{
		Success:   true,
		Status:    "healthy",
		Timestamp: docstore.Now().String(),
		Database:  "connected",
		Version:   s.version,
	}

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check: store unreachable", "error", err)
		status.Success = false
		status.Status = "unhealthy"
		status.Database = "disconnected"
		status.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// handleConfig returns the reference enumerations.
func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, catalog.Reference(), "")
}

// handleListSensorTypes returns the persisted sensor types ordered by id.
func (s *Server) handleListSensorTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.store.Find(r.Context(), docstore.SensorTypes, nil, docstore.FindOptions{SortField: "id"})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeList(w, types)
}
