package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/steamcity/iot-platform/internal/docstore"
	"github.com/steamcity/iot-platform/internal/infrastructure/metrics"
	"github.com/steamcity/iot-platform/internal/measurement"
	"github.com/steamcity/iot-platform/internal/registry"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeData writes a successful single-object response.
func writeData(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, Envelope{Success: true, Data: data, Message: message})
}

// writeList writes a successful list response. A nil list renders as [].
func writeList(w http.ResponseWriter, docs []docstore.Document) {
	if docs == nil {
		docs = []docstore.Document{}
	}
	count := len(docs)
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: docs, Count: &count})
}

// writeMessage writes a successful response without data.
func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: message})
}

// writeError writes a failure envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: false, Error: message})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, message)
}

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrValidation), errors.Is(err, measurement.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, measurement.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure converts a domain or backend error into the envelope.
// Backend failures are logged and counted against the route.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		route := routePattern(r)
		metrics.StoreErrors.WithLabelValues(route).Inc()
		s.logger.Error("request failed",
			"route", route,
			"method", r.Method,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
	}
	writeError(w, status, err.Error())
}
