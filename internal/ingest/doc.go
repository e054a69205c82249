// Package ingest stores sensor readings published over MQTT.
//
// Sensors publish a JSON object on {prefix}/measurements/{sensor_id}:
//
//	{"value": 21.4, "timestamp": "2026-03-01T10:00:00Z", "quality": {"score": 1}}
//
// Each message goes through the same validation, denormalization and sink
// fan-out as a POST to the measurements endpoint.
package ingest
