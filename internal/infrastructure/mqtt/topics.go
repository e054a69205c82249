package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the root of every topic when none is configured.
const DefaultTopicPrefix = "steamcity"

// Topics builds the platform's MQTT topics under a configurable prefix.
//
//	topics := mqtt.Topics{Prefix: "steamcity"}
//	topics.Measurement("sensor-exp-001-1")
//	// Returns: "steamcity/measurements/sensor-exp-001-1"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

// Measurement returns the topic a sensor publishes its readings on.
func (t Topics) Measurement(sensorID string) string {
	return fmt.Sprintf("%s/measurements/%s", t.prefix(), sensorID)
}

// AllMeasurements returns the wildcard subscription for every sensor.
func (t Topics) AllMeasurements() string {
	return t.prefix() + "/measurements/+"
}

// SystemStatus returns the retained online/offline status topic.
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// SensorIDFromTopic extracts the sensor id from a measurement topic.
// Returns false when topic is not a measurement topic under this prefix.
func (t Topics) SensorIDFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix()+"/measurements/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
