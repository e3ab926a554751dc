package cli

import (
	"github.com/spf13/cobra"

	"github.com/Usaidkhxn/LaunchLens/internal/analysis"
	"github.com/Usaidkhxn/LaunchLens/internal/report"
	"github.com/Usaidkhxn/LaunchLens/internal/warehouse"
)

func newSRMCmd(a *app) *cobra.Command {
	var window windowFlags

	cmd := &cobra.Command{
		Use:   "srm <experiment-id>",
		Short: "Check the sample ratio of an experiment",
		Long: `Run the chi-square sample ratio mismatch checks on users (the gating
check) and sessions (diagnostic only).

Example:
  launchlens srm exp_checkout_v1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.analysisConfig(window)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			return a.withWarehouse(ctx, func(wh warehouse.Provider) error {
				b, err := analysis.Run(ctx, wh, args[0], cfg)
				if err != nil {
					return err
				}
				return report.WriteSRM(cmd.OutOrStdout(), b.UserSRM, b.SessionSRM)
			})
		},
	}

	window.register(cmd)
	return cmd
}
