package cli

import (
	"github.com/spf13/cobra"

	"github.com/Usaidkhxn/LaunchLens/internal/analysis"
	"github.com/Usaidkhxn/LaunchLens/internal/report"
	"github.com/Usaidkhxn/LaunchLens/internal/warehouse"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		window windowFlags
		format string
	)

	cmd := &cobra.Command{
		Use:   "export <experiment-id>",
		Short: "Export a readout",
		Long: `Export a readout in a machine-readable format. csv writes the metric
table; json and yaml write the complete readout.

Examples:
  launchlens export exp_checkout_v1 --format csv > readout.csv
  launchlens export exp_checkout_v1 --format json > readout.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
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
				return report.Write(cmd.OutOrStdout(), b, f, cfg.Catalog)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format (text, csv, json or yaml)")
	window.register(cmd)
	return cmd
}
