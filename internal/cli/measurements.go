package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steamcity/iot-platform/internal/client"
	"github.com/steamcity/iot-platform/internal/export"
)

// errSensorRequired is returned by commands that need --sensor.
var errSensorRequired = errors.New("--sensor is required")

var measurementColumns = []column{
	{"TIMESTAMP", "timestamp"},
	{"SENSOR", "sensor_id"},
	{"TYPE", "sensor_type_id"},
	{"VALUE", "value"},
}

func newMeasurementsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "measurements",
		Aliases: []string{"measurement", "m"},
		Short:   "Query, aggregate and export measurements",
	}
	cmd.AddCommand(
		newMeasurementsListCommand(a),
		newMeasurementsStatsCommand(a),
		newMeasurementsExportCommand(a),
	)
	return cmd
}

// addMeasurementFilterFlags binds the list filters shared by list and export.
func addMeasurementFilterFlags(cmd *cobra.Command, f *client.MeasurementFilter) {
	fl := cmd.Flags()
	fl.StringVar(&f.SensorID, "sensor", "", "Sensor id")
	fl.StringVar(&f.StartDate, "from", "", "Earliest timestamp (RFC 3339, date, or unix milliseconds)")
	fl.StringVar(&f.EndDate, "to", "", "Latest timestamp (RFC 3339, date, or unix milliseconds)")
	fl.IntVar(&f.Limit, "limit", 0, "Maximum number of measurements (server default when 0)")
}

func newMeasurementsListCommand(a *app) *cobra.Command {
	var (
		f      client.MeasurementFilter
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List measurements, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, err := a.provider().ListMeasurements(cmd.Context(), f)
			if err != nil {
				return err
			}
			a.log().Debug("measurement list completed", "count", len(docs))
			if asJSON {
				return printJSON(cmd.OutOrStdout(), docs)
			}
			return printTable(cmd.OutOrStdout(), docs, measurementColumns, "No measurements found.")
		},
	}

	addMeasurementFilterFlags(cmd, &f)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newMeasurementsStatsCommand(a *app) *cobra.Command {
	var sensorID string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print count, average, minimum and maximum for one sensor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sensorID == "" {
				return errSensorRequired
			}
			st, err := a.provider().MeasurementStats(cmd.Context(), sensorID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}

	cmd.Flags().StringVar(&sensorID, "sensor", "", "Sensor id (required)")
	return cmd
}

func newMeasurementsExportCommand(a *app) *cobra.Command {
	var (
		f      client.MeasurementFilter
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download measurements as CSV, JSON or XLSX",
		Long: `Download the measurements matching the filters.

  steamctl measurements export --sensor s1 --format xlsx --output s1.xlsx

Without --output the file is written to standard output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmtID, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			data, err := a.exportMeasurements(cmd.Context(), fmtID, f)
			if err != nil {
				return err
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes to %s\n", len(data), output)
			return nil
		},
	}

	addMeasurementFilterFlags(cmd, &f)
	cmd.Flags().StringVar(&format, "format", string(export.CSV), "Output format: csv, json or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of standard output")
	return cmd
}

// exportMeasurements asks the server for the file. With --fallback-demo and
// an unavailable server, the demo measurements are encoded locally.
func (a *app) exportMeasurements(ctx context.Context, format export.Format, f client.MeasurementFilter) ([]byte, error) {
	data, err := a.client().ExportMeasurements(ctx, format, f)
	if err == nil || !a.fallbackDemo || !client.Unavailable(err) {
		return data, err
	}

	a.log().Warn("API unavailable, exporting demo data", "error", err)
	docs, err := a.demo().ListMeasurements(ctx, f)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, format, docs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
