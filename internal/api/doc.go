// Package api implements the HTTP REST API and WebSocket stream of the
// SteamCity platform.
//
// This package provides:
//   - CRUD endpoints for experiments, sensors and measurements
//   - The reference enumerations and persisted sensor types
//   - Measurement statistics and CSV/JSON/XLSX export
//   - A WebSocket hub relaying newly stored measurements
//   - Middleware (request ID, logging, recovery, CORS, body limit, metrics)
//
// # Envelope
//
// Every JSON response is wrapped in the same envelope:
//
//	{"success": true, "data": ..., "count": 3, "message": "..."}
//	{"success": false, "error": "Sensor not found"}
//
// count is only present on list endpoints. Failures map to 400 (validation),
// 404 (unknown id), 409 (duplicate id) and 500 (backend error, with the
// backend's message).
//
// # Graceful Degradation
//
// The server runs without MQTT or InfluxDB: those only feed or mirror the
// measurement flow. The health endpoint reports 503 while the document store
// is unreachable.
package api
