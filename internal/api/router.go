package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/steamcity/iot-platform/internal/infrastructure/metrics"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	if s.metricsCfg.Enabled {
		path := s.metricsCfg.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/config", s.handleConfig)

		r.Route("/experiments", func(r chi.Router) {
			r.Get("/", s.handleList(s.experiments))
			r.Post("/", s.handleCreate(s.experiments))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGet(s.experiments))
				r.Put("/", s.handleUpdate(s.experiments))
				r.Delete("/", s.handleDelete(s.experiments))
				r.Get("/sensors", s.handleExperimentSensors)
			})
		})

		r.Route("/sensors", func(r chi.Router) {
			r.Get("/", s.handleList(s.sensors))
			r.Post("/", s.handleCreate(s.sensors))
			r.Get("/devices", s.handleList(s.sensors))
			r.Get("/types", s.handleListSensorTypes)

			r.Route("/measurements", func(r chi.Router) {
				r.Get("/", s.handleListMeasurements)
				r.Post("/", s.handleCreateMeasurement)
				r.Get("/stats", s.handleMeasurementStats)
				r.Get("/export", s.handleExportMeasurements)
				r.Put("/{id}", s.handleUpdateMeasurement)
				r.Delete("/{id}", s.handleDeleteMeasurement)
			})

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGet(s.sensors))
				r.Put("/", s.handleUpdate(s.sensors))
				r.Delete("/", s.handleDelete(s.sensors))
				r.Get("/measurements", s.handleSensorMeasurements)
			})
		})

		if s.wsCfg.Enabled {
			r.Get("/ws", s.handleWebSocket)
		}
	})

	return r
}
