// SteamCity API server.
//
// Serves the experiment, sensor and measurement REST API over a SQLite or
// MongoDB document store. Measurements can additionally arrive over MQTT,
// be mirrored to InfluxDB and be streamed live over WebSocket; each of
// those is optional and enabled in configs/config.yaml.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/steamcity/iot-platform/internal/api"
	"github.com/steamcity/iot-platform/internal/catalog"
	"github.com/steamcity/iot-platform/internal/infrastructure/config"
	"github.com/steamcity/iot-platform/internal/infrastructure/influxdb"
	"github.com/steamcity/iot-platform/internal/infrastructure/logging"
	"github.com/steamcity/iot-platform/internal/infrastructure/mqtt"
	"github.com/steamcity/iot-platform/internal/ingest"
	"github.com/steamcity/iot-platform/internal/measurement"
	"github.com/steamcity/iot-platform/internal/registry"
	"github.com/steamcity/iot-platform/internal/storage"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the platform together and blocks until ctx is cancelled.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting SteamCity API",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "driver", cfg.Database.Driver)

	db, err := storage.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	added, err := catalog.SyncSensorTypes(ctx, db.Store)
	if err != nil {
		return fmt.Errorf("syncing sensor types: %w", err)
	}
	log.Info("sensor types synced", "added", added)

	experiments := registry.New(registry.ExperimentKind, db.Store)
	experiments.SetLogger(log)
	sensors := registry.New(registry.SensorKind, db.Store)
	sensors.SetLogger(log)
	measurements := measurement.NewService(db.Store)
	measurements.SetLogger(log)

	// InfluxDB mirror (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		measurements.AddSink(influxClient)
		log.Info("InfluxDB mirror enabled", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	srv, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Metrics:      cfg.Metrics,
		Logger:       log,
		Store:        db.Store,
		Experiments:  experiments,
		Sensors:      sensors,
		Measurements: measurements,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if cfg.WebSocket.Enabled {
		measurements.AddSink(srv.Hub())
	}

	// MQTT ingestion (optional)
	if cfg.MQTT.Enabled {
		stopMQTT, mqttErr := startIngest(ctx, cfg.MQTT, measurements, log)
		if mqttErr != nil {
			return mqttErr
		}
		defer stopMQTT()
	} else {
		log.Info("MQTT ingestion disabled")
	}

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	if err := srv.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal", "address", cfg.Address())

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// startIngest connects to the broker and subscribes the measurement topics.
// The returned func disconnects.
func startIngest(ctx context.Context, cfg config.MQTTConfig, creator ingest.Creator, log *logging.Logger) (func(), error) {
	client, err := mqtt.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	client.SetOnConnect(func() { log.Info("MQTT reconnected") })
	client.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })

	stop := func() {
		log.Info("disconnecting from MQTT")
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}

	sub := ingest.NewSubscriber(creator, client.Topics())
	sub.SetLogger(log)
	// #nosec G115 -- QoS validated to 0..2 by config
	if err := sub.Start(client, byte(cfg.QoS)); err != nil {
		stop()
		return nil, err
	}
	log.Info("MQTT ingestion started",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"topic", client.Topics().AllMeasurements(),
	)
	return stop, nil
}

// getConfigPath returns the configuration file path from STEAMCITY_CONFIG,
// or the default.
func getConfigPath() string {
	if path := os.Getenv("STEAMCITY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// Compile-time checks that the sinks wired above satisfy measurement.Sink.
var (
	_ measurement.Sink = (*influxdb.Client)(nil)
	_ measurement.Sink = (*api.Hub)(nil)
)
