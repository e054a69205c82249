// Package client is a typed consumer of the SteamCity REST API.
//
// Client wraps every endpoint and turns error envelopes into *APIError.
// Composite helpers fan requests out concurrently (ExperimentMeasurements,
// GlobalStats) or filter results locally (SearchExperiments).
//
// Provider abstracts the read side so a consumer can keep working when the
// API is down: FallbackProvider serves from an APIProvider and switches to a
// DemoProvider, which holds a generated dataset in memory, whenever the API
// is unreachable or answers with a 5xx. Client errors such as 404 are never
// masked.
package client
