package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/mattn/go-isatty"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Usaidkhxn/LaunchLens/internal/analysis"
	"github.com/Usaidkhxn/LaunchLens/internal/report"
	"github.com/Usaidkhxn/LaunchLens/internal/warehouse"
)

func newReadoutCmd(a *app) *cobra.Command {
	var window windowFlags

	cmd := &cobra.Command{
		Use:   "readout [experiment-id]",
		Short: "Show the full readout for an experiment",
		Long: `Show the full readout for an experiment: metric lifts with confidence
intervals, sample-ratio checks, guardrails, trailing trend, data quality
and the recommendation.

Without an experiment id, an interactive picker is shown when attached
to a terminal.

Example:
  launchlens readout exp_checkout_v1 --start 2024-03-01`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.analysisConfig(window)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			return a.withWarehouse(ctx, func(wh warehouse.Provider) error {
				var id string
				if len(args) == 1 {
					id = args[0]
				} else if id, err = pickExperiment(ctx, wh); err != nil {
					return err
				}

				b, err := analysis.Run(ctx, wh, id, cfg)
				if err != nil {
					return err
				}
				return report.WriteText(cmd.OutOrStdout(), b, cfg.Catalog)
			})
		},
	}

	window.register(cmd)
	return cmd
}

// pickExperiment prompts for one of the warehouse's experiments.
func pickExperiment(ctx context.Context, wh warehouse.Provider) (string, error) {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return "", eris.New("experiment id required when not attached to a terminal")
	}

	exps, err := wh.Experiments(ctx)
	if err != nil {
		return "", err
	}
	if len(exps) == 0 {
		return "", eris.Wrap(analysis.ErrNotFound, "no experiments in warehouse")
	}

	items := make([]string, len(exps))
	for i, e := range exps {
		items[i] = fmt.Sprintf("%s  (%d sessions, %s..%s)", e.ID, e.Sessions,
			e.FirstDate.Format(warehouse.DateLayout), e.LastDate.Format(warehouse.DateLayout))
	}

	prompt := promptui.Select{
		Label: "Select experiment",
		Items: items,
		Size:  10,
	}

	idx, _, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(ExitOK)
		}
		return "", eris.Wrap(err, "prompt failed")
	}
	return exps[idx].ID, nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
