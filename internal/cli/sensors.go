package cli

import (
	"github.com/spf13/cobra"

	"github.com/steamcity/iot-platform/internal/client"
)

var sensorColumns = []column{
	{"ID", "id"},
	{"NAME", "name"},
	{"TYPE", "sensor_type_id"},
	{"EXPERIMENT", "experiment_id"},
	{"STATUS", "status"},
}

func newSensorsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sensors",
		Aliases: []string{"sensor", "s"},
		Short:   "List and inspect sensors",
	}
	cmd.AddCommand(newSensorsListCommand(a), newSensorsGetCommand(a))
	return cmd
}

func newSensorsListCommand(a *app) *cobra.Command {
	var (
		f      client.SensorFilter
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sensors",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, err := a.provider().ListSensors(cmd.Context(), f)
			if err != nil {
				return err
			}
			a.log().Debug("sensor list completed", "count", len(docs))
			if asJSON {
				return printJSON(cmd.OutOrStdout(), docs)
			}
			return printTable(cmd.OutOrStdout(), docs, sensorColumns, "No sensors found.")
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.ExperimentID, "experiment", "", "Experiment id")
	fl.StringVar(&f.Type, "type", "", "Sensor type (type field)")
	fl.StringVar(&f.SensorTypeID, "sensor-type", "", "Sensor type (sensor_type_id field)")
	fl.StringVar(&f.Status, "status", "", "Sensor status")
	fl.BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newSensorsGetCommand(a *app) *cobra.Command {
	var latest int

	cmd := &cobra.Command{
		Use:   "get <sensor_id>",
		Short: "Print one sensor",
		Long: `Print one sensor. With --measurements N, its N most recent
measurements are included.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.provider()
			sensor, err := p.GetSensor(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if latest <= 0 {
				return printJSON(cmd.OutOrStdout(), sensor)
			}

			docs, err := p.SensorMeasurements(cmd.Context(), args[0], client.MeasurementFilter{Limit: latest})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), client.SensorSeries{
				Sensor:       sensor,
				Measurements: docs,
			})
		},
	}

	cmd.Flags().IntVar(&latest, "measurements", 0, "Include this many recent measurements")
	return cmd
}

