package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/steamcity/iot-platform/internal/docstore"
)

// MeasurementName is the InfluxDB measurement holding mirrored readings.
const MeasurementName = "sensor_measurements"

// MeasurementPoint converts a stored measurement into a point tagged by
// sensor, sensor type and experiment. Returns false when the reading has
// no numeric value, since such readings cannot be charted.
func MeasurementPoint(doc docstore.Document) (*write.Point, bool) {
	value, ok := docstore.Float(doc["value"])
	if !ok {
		return nil, false
	}

	tags := map[string]string{"sensor_id": doc.String("sensor_id")}
	for _, key := range []string{"sensor_type_id", "experiment_id"} {
		if v := doc.String(key); v != "" {
			tags[key] = v
		}
	}

	fields := map[string]any{"value": value}
	if score, ok := docstore.Float(qualityScore(doc["quality"])); ok {
		fields["quality_score"] = score
	}

	ts := time.Now()
	if t, err := docstore.CoerceTime(doc["timestamp"]); err == nil {
		ts = t.Time
	}

	return write.NewPoint(MeasurementName, tags, fields, ts), true
}

// Publish queues a measurement for writing. Readings without a numeric
// value are skipped.
func (c *Client) Publish(_ context.Context, doc docstore.Document) error {
	point, ok := MeasurementPoint(doc)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.points == nil {
		return ErrNotConnected
	}
	if ok {
		c.points.WritePoint(point)
	}
	return nil
}

func qualityScore(v any) any {
	switch q := v.(type) {
	case docstore.Document:
		return q["score"]
	case map[string]any:
		return q["score"]
	default:
		return nil
	}
}
