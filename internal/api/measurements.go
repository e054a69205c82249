package api

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/steamcity/iot-platform/internal/export"
	"github.com/steamcity/iot-platform/internal/infrastructure/metrics"
	"github.com/steamcity/iot-platform/internal/measurement"
)

// handleListMeasurements returns measurements, most recent first.
//
// Query parameters:
//   - sensor_id: filter by sensor
//   - start_date, end_date: inclusive timestamp bounds
//   - limit: maximum number of results (default 1000)
func (s *Server) handleListMeasurements(w http.ResponseWriter, r *http.Request) {
	q, err := measurement.ParseQuery(r.URL.Query(), measurement.DefaultLimit)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	docs, err := s.measurements.List(r.Context(), q)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeList(w, docs)
}

// handleSensorMeasurements returns one sensor's measurements (default limit 100).
func (s *Server) handleSensorMeasurements(w http.ResponseWriter, r *http.Request) {
	q, err := measurement.ParseQuery(r.URL.Query(), measurement.SensorLimit)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	q.SensorID = chi.URLParam(r, "id")

	docs, err := s.measurements.List(r.Context(), q)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeList(w, docs)
}

// handleMeasurementStats aggregates one sensor's measurements.
func (s *Server) handleMeasurementStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.measurements.Stats(r.Context(), r.URL.Query().Get("sensor_id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats, "")
}

// handleCreateMeasurement stores a measurement posted over HTTP.
func (s *Server) handleCreateMeasurement(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeDocument(r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	created, err := s.measurements.Create(r.Context(), doc)
	if err != nil {
		if statusFor(err) == http.StatusBadRequest {
			metrics.IngestRejected.WithLabelValues(metrics.SourceAPI).Inc()
		}
		s.writeFailure(w, r, err)
		return
	}

	metrics.MeasurementsIngested.WithLabelValues(metrics.SourceAPI).Inc()
	writeData(w, http.StatusCreated, created, "Measurement created successfully")
}

// handleUpdateMeasurement merges the body into a measurement by internal id.
func (s *Server) handleUpdateMeasurement(w http.ResponseWriter, r *http.Request) {
	patch, err := decodeDocument(r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	updated, err := s.measurements.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, updated, "Measurement updated successfully")
}

// handleDeleteMeasurement removes a measurement by internal id.
func (s *Server) handleDeleteMeasurement(w http.ResponseWriter, r *http.Request) {
	if err := s.measurements.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeMessage(w, "Measurement deleted successfully")
}

// handleExportMeasurements downloads the measurement list as CSV, JSON or
// XLSX. It accepts the list filters plus format.
func (s *Server) handleExportMeasurements(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("format")
	format, err := export.ParseFormat(raw)
	if err != nil {
		writeBadRequest(w, "Unsupported format: "+raw+" (expected csv, json or xlsx)")
		return
	}

	q, err := measurement.ParseQuery(r.URL.Query(), measurement.DefaultLimit)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	docs, err := s.measurements.List(r.Context(), q)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	// Encode before writing headers so an encoding failure can still be
	// answered with an envelope.
	var buf bytes.Buffer
	if err := export.Write(&buf, format, docs); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.Filename("measurements")+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	buf.WriteTo(w)
}
