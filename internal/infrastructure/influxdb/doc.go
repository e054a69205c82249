// Package influxdb mirrors stored measurements into InfluxDB v2 for
// time-series dashboards.
//
// The document store remains the source of truth. Each measurement created
// through the API or MQTT is written as a point of the sensor_measurements
// measurement, tagged with sensor_id, sensor_type_id and experiment_id.
// Points are batched and written asynchronously; a Client is a
// measurement.Sink.
package influxdb
