package cli

import (
	"github.com/spf13/cobra"

	"github.com/Usaidkhxn/LaunchLens/internal/analysis"
	"github.com/Usaidkhxn/LaunchLens/internal/report"
	"github.com/Usaidkhxn/LaunchLens/internal/warehouse"
)

func newTrendCmd(a *app) *cobra.Command {
	var window windowFlags

	cmd := &cobra.Command{
		Use:   "trend <experiment-id>",
		Short: "Show the daily metric trend of an experiment",
		Long: `Show per-day, per-variant metric values from the daily rollups,
including pre-period days, followed by the trailing window summary.

Example:
  launchlens trend exp_checkout_v1 --end 2024-03-14`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.analysisConfig(window)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			return a.withWarehouse(ctx, func(wh warehouse.Provider) error {
				tr, err := analysis.RunTrend(ctx, wh, args[0], cfg)
				if err != nil {
					return err
				}
				return report.WriteTrend(cmd.OutOrStdout(), tr, cfg.Catalog)
			})
		},
	}

	window.register(cmd)
	return cmd
}
