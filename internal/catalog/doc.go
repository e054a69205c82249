// Package catalog holds the static reference enumerations: thematic
// clusters, experimental protocols, sensor types and the sensor and
// experiment status values.
//
// The enumerations are served as-is by the configuration endpoint. They are
// not used to validate documents; a sensor with an unknown sensor_type_id is
// stored like any other.
package catalog
