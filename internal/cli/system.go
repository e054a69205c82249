package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steamcity/iot-platform/internal/client"
)

func newHealthCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the API server and its database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := a.provider().Health(cmd.Context())
			if h.Status != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "status:   %s\ndatabase: %s\n", h.Status, h.Database)
				if h.Version != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "version:  %s\n", h.Version)
				}
			}
			return err
		},
	}
}

func newConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the reference enumerations (clusters, protocols, sensor types, statuses)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.provider().Config(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cfg)
		},
	}
}

func newStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count experiments and sensors across the platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := client.FetchGlobalStats(cmd.Context(), a.provider())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
}
