package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/steamcity/iot-platform/internal/client"
	"github.com/steamcity/iot-platform/internal/infrastructure/config"
	"github.com/steamcity/iot-platform/internal/infrastructure/logging"
)

// Defaults for the global flags.
const (
	defaultAPIURL     = "http://localhost:3000"
	defaultConfigPath = "configs/config.yaml"
)

// app holds the global flag values and the objects built from them.
type app struct {
	version      string
	apiURL       string
	timeout      time.Duration
	fallbackDemo bool
	verbose      bool

	logger *logging.Logger
	now    func() time.Time
}

// NewRootCommand builds the steamctl command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{version: version, now: time.Now}

	root := &cobra.Command{
		Use:   "steamctl",
		Short: "SteamCity IoT platform command-line client",
		Long: `steamctl queries a SteamCity API server: experiments, sensors and
their measurements, statistics and exports.

With --fallback-demo, read commands keep working when the server is
unreachable by answering from built-in demo data.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.setupLogger(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.apiURL, "api-url", envOr("STEAMCITY_API_URL", defaultAPIURL), "Base URL of the SteamCity API")
	flags.DurationVar(&a.timeout, "timeout", client.DefaultTimeout, "Per-request timeout")
	flags.BoolVar(&a.fallbackDemo, "fallback-demo", false, "Serve demo data when the API is unavailable")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose (debug) logging")

	root.AddCommand(
		newHealthCommand(a),
		newConfigCommand(a),
		newStatsCommand(a),
		newExperimentsCommand(a),
		newSensorsCommand(a),
		newMeasurementsCommand(a),
		newSeedCommand(a),
		newMigrateCommand(),
	)
	return root
}

// Execute runs steamctl with the process arguments.
func Execute(ctx context.Context, version string) error {
	return NewRootCommand(version).ExecuteContext(ctx)
}

// setupLogger writes text logs to w: debug level when verbose, warnings
// otherwise so degradations stay visible.
func (a *app) setupLogger(w io.Writer) {
	level := "warn"
	if a.verbose {
		level = "debug"
	}
	a.logger = logging.NewWithWriter(w, config.LoggingConfig{Level: level, Format: "text"}, a.version)
}

func (a *app) log() *logging.Logger {
	if a.logger == nil {
		a.setupLogger(os.Stderr)
	}
	return a.logger
}

// client returns an API client honouring the global flags.
func (a *app) client() *client.Client {
	a.log().Debug("using API", "url", a.apiURL, "timeout", a.timeout)
	return client.New(a.apiURL, client.WithTimeout(a.timeout))
}

// demo returns the demo data source.
func (a *app) demo() *client.DemoProvider {
	return client.NewDemoProvider(a.now())
}

// provider returns the read-side data source: the API, backed by demo data
// when --fallback-demo is set.
func (a *app) provider() client.Provider {
	live := client.NewAPIProvider(a.client())
	if !a.fallbackDemo {
		return live
	}
	fb := client.NewFallbackProvider(live, a.demo())
	fb.SetLogger(a.log())
	return fb
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
