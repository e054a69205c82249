package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steamcity/iot-platform/internal/docstore"
	"github.com/steamcity/iot-platform/internal/infrastructure/config"
	"github.com/steamcity/iot-platform/internal/infrastructure/database"
	_ "github.com/steamcity/iot-platform/migrations" // registers the SQLite schema
)

// errNotSQLite is returned when the configured store has no SQL migrations.
var errNotSQLite = errors.New("migrations apply to the sqlite driver only; MongoDB indexes are created at server startup")

var migrationColumns = []column{
	{"VERSION", "version"},
	{"NAME", "name"},
	{"STATE", "state"},
	{"APPLIED", "applied_at"},
}

func newMigrateCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQLite schema migrations",
		Long: `Apply pending schema migrations to the SQLite database named in the
server configuration. The server also does this on startup.

  steamctl migrate status   list migrations and their state
  steamctl migrate down     roll back the most recent migration`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSQLite(cmd.Context(), configPath, func(db *database.DB) error {
				before, err := pendingCount(cmd.Context(), db)
				if err != nil {
					return err
				}
				if err := db.Migrate(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", before)
				return nil
			})
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", envOr("STEAMCITY_CONFIG", defaultConfigPath), "Server configuration file")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withSQLite(cmd.Context(), configPath, func(db *database.DB) error {
					states, err := db.Status(cmd.Context())
					if err != nil {
						return err
					}
					return printTable(cmd.OutOrStdout(), migrationRows(states), migrationColumns, "No migrations found.")
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withSQLite(cmd.Context(), configPath, func(db *database.DB) error {
					m, err := db.Rollback(cmd.Context())
					if err != nil {
						return err
					}
					if m == nil {
						fmt.Fprintln(cmd.OutOrStdout(), "Nothing to roll back.")
						return nil
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %s (%s).\n", m.Version, m.Name)
					return nil
				})
			},
		},
	)
	return cmd
}

// withSQLite opens the configured SQLite database without migrating it.
func withSQLite(ctx context.Context, configPath string, fn func(*database.DB) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.Driver != config.DriverSQLite {
		return errNotSQLite
	}

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.SQLite.Path,
		WALMode:     cfg.Database.SQLite.WALMode,
		BusyTimeout: cfg.Database.SQLite.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Process exits right after

	return fn(db)
}

func pendingCount(ctx context.Context, db *database.DB) (int, error) {
	states, err := db.Status(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, st := range states {
		if st.Pending() {
			n++
		}
	}
	return n, nil
}

// migrationRows renders migration states as table rows.
func migrationRows(states []database.MigrationState) []docstore.Document {
	rows := make([]docstore.Document, 0, len(states))
	for _, st := range states {
		row := docstore.Document{"version": st.Version, "name": st.Name, "state": "applied"}
		switch {
		case st.Pending():
			row["state"] = "pending"
		case st.Modified:
			row["state"] = "modified"
		}
		if !st.Pending() {
			row["applied_at"] = docstore.NewTime(st.AppliedAt)
		}
		rows = append(rows, row)
	}
	return rows
}
