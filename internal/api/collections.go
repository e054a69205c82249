package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/steamcity/iot-platform/internal/docstore"
	"github.com/steamcity/iot-platform/internal/registry"
)

// decodeDocument reads a JSON object from the request body. An empty body
// decodes to an empty document.
func decodeDocument(r *http.Request) (docstore.Document, error) {
	var doc docstore.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return docstore.Document{}, nil
		}
		return nil, err
	}
	if doc == nil {
		doc = docstore.Document{}
	}
	return doc, nil
}

// writeDecodeError answers a body that could not be decoded.
func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	writeBadRequest(w, "Invalid JSON body")
}

// handleList returns every document of a registry matching the query filters.
func (s *Server) handleList(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := reg.List(r.Context(), r.URL.Query())
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		writeList(w, docs)
	}
}

// handleGet returns one document by business id.
func (s *Server) handleGet(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := reg.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		writeData(w, http.StatusOK, doc, "")
	}
}

// handleCreate stores a new document and answers 201.
func (s *Server) handleCreate(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := decodeDocument(r)
		if err != nil {
			writeDecodeError(w, err)
			return
		}

		created, err := reg.Create(r.Context(), doc)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}

		s.logger.Debug("document created", "collection", reg.Kind().Collection, "id", created.String("id"))
		writeData(w, http.StatusCreated, created, reg.Kind().Name+" created successfully")
	}
}

// handleUpdate merges the request body into an existing document.
func (s *Server) handleUpdate(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patch, err := decodeDocument(r)
		if err != nil {
			writeDecodeError(w, err)
			return
		}

		updated, err := reg.Update(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		writeData(w, http.StatusOK, updated, reg.Kind().Name+" updated successfully")
	}
}

// handleDelete removes a document by business id.
func (s *Server) handleDelete(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := reg.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			s.writeFailure(w, r, err)
			return
		}
		writeMessage(w, reg.Kind().Name+" deleted successfully")
	}
}

// handleExperimentSensors lists the sensors of one experiment. An unknown
// experiment yields an empty list.
func (s *Server) handleExperimentSensors(w http.ResponseWriter, r *http.Request) {
	query := url.Values{"experiment_id": {chi.URLParam(r, "id")}}

	sensors, err := s.sensors.List(r.Context(), query)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeList(w, sensors)
}
