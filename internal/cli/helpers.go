package cli

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Usaidkhxn/LaunchLens/internal/analysis"
	"github.com/Usaidkhxn/LaunchLens/internal/warehouse"
)

// withWarehouse opens the configured warehouse, executes the function, and
// handles cleanup.
func (a *app) withWarehouse(ctx context.Context, fn func(warehouse.Provider) error) error {
	var (
		wh  warehouse.Provider
		err error
	)
	switch a.cfg.Store.Driver {
	case "postgres":
		wh, err = warehouse.NewPostgres(ctx, a.cfg.Store.DatabaseURL)
	default:
		// Opening a missing SQLite file would silently create an empty one.
		if _, statErr := os.Stat(a.cfg.Store.Path); statErr != nil {
			return eris.Wrapf(statErr, "warehouse %s (run 'launchlens load' first)", a.cfg.Store.Path)
		}
		wh, err = warehouse.Open(a.cfg.Store.Path)
	}
	if err != nil {
		return eris.Wrap(err, "failed to open warehouse")
	}
	defer wh.Close()

	return fn(wh)
}

// windowFlags are the --start and --end overrides of the configured window.
type windowFlags struct {
	start string
	end   string
}

func (w *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&w.start, "start", "", "first event date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&w.end, "end", "", "last event date to include (YYYY-MM-DD)")
}

// analysisConfig builds the engine configuration with the window overrides applied.
func (a *app) analysisConfig(w windowFlags) (analysis.Config, error) {
	cfg, err := a.cfg.Analysis()
	if err != nil {
		return cfg, err
	}
	if w.start != "" {
		if cfg.Window.Start, err = warehouse.ParseDate(w.start); err != nil {
			return cfg, eris.Wrap(analysis.ErrInvalidConfig, err.Error())
		}
	}
	if w.end != "" {
		if cfg.Window.End, err = warehouse.ParseDate(w.end); err != nil {
			return cfg, eris.Wrap(analysis.ErrInvalidConfig, err.Error())
		}
	}
	return cfg, cfg.Validate()
}
