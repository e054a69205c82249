package cli

import (
	"github.com/spf13/cobra"

	"github.com/steamcity/iot-platform/internal/client"
	"github.com/steamcity/iot-platform/internal/docstore"
)

var experimentColumns = []column{
	{"ID", "id"},
	{"TITLE", "title"},
	{"CITY", "city"},
	{"CLUSTER", "cluster_id"},
	{"PROTOCOL", "protocol_id"},
	{"STATUS", "status"},
}

func newExperimentsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "experiments",
		Aliases: []string{"experiment", "exp", "e"},
		Short:   "List and inspect experiments",
	}
	cmd.AddCommand(newExperimentsListCommand(a), newExperimentsGetCommand(a))
	return cmd
}

func newExperimentsListCommand(a *app) *cobra.Command {
	var (
		crit   client.SearchCriteria
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List experiments, optionally narrowed by search criteria",
		Long: `List experiments. The search flags are applied locally:

  steamctl experiments list --search air --location marseille
  steamctl experiments list --cluster 2 --status active`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, err := client.FindExperiments(cmd.Context(), a.provider(), crit)
			if err != nil {
				return err
			}
			a.log().Debug("experiment list completed", "count", len(docs))
			if asJSON {
				return printJSON(cmd.OutOrStdout(), docs)
			}
			return printTable(cmd.OutOrStdout(), docs, experimentColumns, "No experiments found.")
		},
	}

	f := cmd.Flags()
	f.StringVar(&crit.Text, "search", "", "Match title or description")
	f.StringVar(&crit.Location, "location", "", "Match city or school")
	f.IntVar(&crit.ClusterID, "cluster", 0, "Cluster id")
	f.StringVar(&crit.Protocol, "protocol", "", "Protocol id")
	f.StringVar(&crit.Status, "status", "", "Experiment status")
	f.BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newExperimentsGetCommand(a *app) *cobra.Command {
	var withSensors bool

	cmd := &cobra.Command{
		Use:   "get <experiment_id>",
		Short: "Print one experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.provider()
			exp, err := p.GetExperiment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !withSensors {
				return printJSON(cmd.OutOrStdout(), exp)
			}

			sensors, err := p.ExperimentSensors(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				Experiment docstore.Document   `json:"experiment"`
				Sensors    []docstore.Document `json:"sensors"`
			}{exp, sensors})
		},
	}

	cmd.Flags().BoolVar(&withSensors, "sensors", false, "Include the experiment's sensors")
	return cmd
}
