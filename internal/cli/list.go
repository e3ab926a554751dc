package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Usaidkhxn/LaunchLens/internal/report"
	"github.com/Usaidkhxn/LaunchLens/internal/warehouse"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all experiments",
		Long:  `List the experiments present in the warehouse with their session and user counts.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withWarehouse(ctx, func(wh warehouse.Provider) error {
				exps, err := wh.Experiments(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(exps) == 0 {
					fmt.Fprintln(out, "No experiments yet.")
					fmt.Fprintln(out)
					fmt.Fprintln(out, "Load session facts into the SQLite warehouse with:")
					fmt.Fprintln(out, "  launchlens load --file sessions.csv")
					return nil
				}
				return report.WriteExperiments(out, exps)
			})
		},
	}
}
