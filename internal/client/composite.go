package client

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/steamcity/iot-platform/internal/docstore"
)

// maxParallelRequests bounds the fan-out of composite calls.
const maxParallelRequests = 4

// SensorSeries is one sensor with its measurements.
type SensorSeries struct {
	Sensor       docstore.Document   `json:"sensor"`
	Measurements []docstore.Document `json:"measurements"`
}

// ExperimentMeasurements fetches the measurements of every sensor of an
// experiment, keyed by sensor id.
func (c *Client) ExperimentMeasurements(ctx context.Context, experimentID string, f MeasurementFilter) (map[string]SensorSeries, error) {
	return FetchExperimentMeasurements(ctx, c, experimentID, f)
}

// FetchExperimentMeasurements is ExperimentMeasurements over any Provider.
// Sensors are fetched at most maxParallelRequests at a time and the first
// failure cancels the rest.
func FetchExperimentMeasurements(ctx context.Context, p Provider, experimentID string, f MeasurementFilter) (map[string]SensorSeries, error) {
	sensors, err := p.ExperimentSensors(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	series := make([]SensorSeries, len(sensors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelRequests)
	for i, sensor := range sensors {
		g.Go(func() error {
			docs, err := p.SensorMeasurements(gctx, sensor.String("id"), f)
			if err != nil {
				return err
			}
			series[i] = SensorSeries{Sensor: sensor, Measurements: docs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]SensorSeries, len(series))
	for _, s := range series {
		out[s.Sensor.String("id")] = s
	}
	return out, nil
}

// GlobalStats counts experiments and sensors across the platform.
type GlobalStats struct {
	TotalExperiments  int `json:"totalExperiments"`
	ActiveExperiments int `json:"activeExperiments"`
	TotalSensors      int `json:"totalSensors"`
	ActiveSensors     int `json:"activeSensors"`
	InactiveSensors   int `json:"inactiveSensors"`
}

// GlobalStats fetches experiments and sensors concurrently and counts them.
func (c *Client) GlobalStats(ctx context.Context) (GlobalStats, error) {
	return FetchGlobalStats(ctx, c)
}

// FetchGlobalStats is GlobalStats over any Provider.
func FetchGlobalStats(ctx context.Context, p Provider) (GlobalStats, error) {
	var experiments, sensors []docstore.Document

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		experiments, err = p.ListExperiments(gctx)
		return err
	})
	g.Go(func() (err error) {
		sensors, err = p.ListSensors(gctx, SensorFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return GlobalStats{}, err
	}

	return countStats(experiments, sensors), nil
}

// countStats treats online sensors as active and offline ones as inactive;
// sensors in maintenance count in neither.
func countStats(experiments, sensors []docstore.Document) GlobalStats {
	st := GlobalStats{TotalExperiments: len(experiments), TotalSensors: len(sensors)}
	for _, e := range experiments {
		if e.String("status") == "active" {
			st.ActiveExperiments++
		}
	}
	for _, s := range sensors {
		switch s.String("status") {
		case "online":
			st.ActiveSensors++
		case "offline":
			st.InactiveSensors++
		}
	}
	return st
}

// SearchCriteria narrows SearchExperiments. Zero fields match everything.
type SearchCriteria struct {
	// Text matches title or description, case-insensitively.
	Text string
	// Location matches city or school, case-insensitively.
	Location  string
	ClusterID int
	Protocol  string
	Status    string
}

// SearchExperiments lists experiments and filters them locally.
func (c *Client) SearchExperiments(ctx context.Context, crit SearchCriteria) ([]docstore.Document, error) {
	return FindExperiments(ctx, c, crit)
}

// FindExperiments is SearchExperiments over any Provider.
func FindExperiments(ctx context.Context, p Provider, crit SearchCriteria) ([]docstore.Document, error) {
	experiments, err := p.ListExperiments(ctx)
	if err != nil {
		return nil, err
	}
	return Search(experiments, crit), nil
}

// Search returns the experiments matching crit, in their original order.
func Search(experiments []docstore.Document, crit SearchCriteria) []docstore.Document {
	out := []docstore.Document{}
	for _, e := range experiments {
		if crit.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

func (crit SearchCriteria) matches(e docstore.Document) bool {
	if crit.Text != "" && !containsFold(crit.Text, e.String("title"), e.String("description")) {
		return false
	}
	if crit.Location != "" && !containsFold(crit.Location, e.String("city"), e.String("school")) {
		return false
	}
	if crit.ClusterID != 0 {
		if id, ok := docstore.Float(e["cluster_id"]); !ok || int(id) != crit.ClusterID {
			return false
		}
	}
	if crit.Protocol != "" && e.String("protocol_id") != crit.Protocol {
		return false
	}
	if crit.Status != "" && e.String("status") != crit.Status {
		return false
	}
	return true
}

func containsFold(needle string, fields ...string) bool {
	needle = strings.ToLower(needle)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
