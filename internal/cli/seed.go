package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/steamcity/iot-platform/internal/infrastructure/config"
	"github.com/steamcity/iot-platform/internal/seed"
	"github.com/steamcity/iot-platform/internal/storage"
)

func newSeedCommand(a *app) *cobra.Command {
	var (
		configPath  string
		experiments int
		days        int
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the database contents with generated demo data",
		Long: `Connect directly to the database named in the server configuration,
empty the experiments, sensor_devices, sensor_types and measurements
collections and insert a generated demo dataset.

This talks to the database, not the API; --api-url is ignored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			h, err := storage.Open(cmd.Context(), cfg.Database, a.log())
			if err != nil {
				return err
			}
			defer h.Close() //nolint:errcheck // Process exits right after

			start := time.Now()
			ds := seed.Generate(seed.Options{Experiments: experiments, Days: days, Now: a.now()})
			counts, err := seed.Load(cmd.Context(), h.Store, ds)
			if err != nil {
				return fmt.Errorf("seeding database: %w", err)
			}

			a.log().Info("database seeded", "driver", h.Driver, "duration", time.Since(start))
			fmt.Fprintf(cmd.OutOrStdout(),
				"Seeded %d sensor types, %d experiments, %d sensors, %d measurements.\n",
				counts.SensorTypes, counts.Experiments, counts.Sensors, counts.Measurements)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", envOr("STEAMCITY_CONFIG", defaultConfigPath), "Server configuration file")
	f.IntVar(&experiments, "experiments", seed.DefaultExperiments, "Number of experiments to generate")
	f.IntVar(&days, "days", seed.DefaultDays, "Days of hourly measurements per sensor")
	return cmd
}
