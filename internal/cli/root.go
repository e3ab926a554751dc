package cli

import (
	"errors"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Usaidkhxn/LaunchLens/internal/analysis"
	"github.com/Usaidkhxn/LaunchLens/internal/config"
	"github.com/Usaidkhxn/LaunchLens/internal/warehouse"
)

// Process exit codes.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitNotFound       = 2
	ExitSchemaMismatch = 3
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	configFile string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "launchlens",
		Short: "LaunchLens - experiment readouts from aggregated warehouse counts",
		Long: `LaunchLens reads an experiment's aggregated funnel counts from the
warehouse and produces a readout: per-metric lifts with confidence
intervals, sample-ratio checks, guardrails, a daily trend and a
ship / hold / continue recommendation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(a.configFile, cmd.Flags())
			if err != nil {
				return eris.Wrap(err, "load config")
			}
			a.cfg = c

			if err := config.InitLogger(c.Log); err != nil {
				return eris.Wrap(err, "init logger")
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = zap.L().Sync()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default ./launchlens.yaml)")
	rootCmd.PersistentFlags().String("db", "", "SQLite warehouse path (overrides store.path)")
	rootCmd.PersistentFlags().String("driver", "", "warehouse driver: sqlite or postgres (overrides store.driver)")

	rootCmd.AddCommand(
		newReadoutCmd(a),
		newSRMCmd(a),
		newTrendCmd(a),
		newListCmd(a),
		newExportCmd(a),
		newLoadCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}

func Execute() error {
	return newRootCmd().Execute()
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, analysis.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, warehouse.ErrSchemaMismatch):
		return ExitSchemaMismatch
	}
	return ExitFailure
}
