// Package metrics defines the Prometheus collectors of the API server and
// exposes them over HTTP.
package metrics
