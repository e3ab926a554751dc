package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Usaidkhxn/LaunchLens/internal/warehouse"
)

func newLoadCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load session facts into the SQLite warehouse",
		Long: `Append session facts from a CSV export of fact_sessions to the SQLite
warehouse, creating it if needed, and rebuild daily_metrics and dq_checks.

Expected columns: user_id, session_id, experiment_id, variant, event_date,
is_experiment_period, has_impression, has_click, has_add_to_cart,
has_purchase, revenue.

Example:
  launchlens load --file sessions.csv --db data/launchlens.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Store.Driver != "sqlite" {
				return eris.Errorf("load only supports the sqlite driver (got %s)", a.cfg.Store.Driver)
			}

			in, err := os.Open(file)
			if err != nil {
				return eris.Wrap(err, "open csv")
			}
			defer in.Close()

			facts, err := warehouse.ReadSessionsCSV(in)
			if err != nil {
				return err
			}

			if dir := filepath.Dir(a.cfg.Store.Path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return eris.Wrap(err, "create warehouse directory")
				}
			}
			s, err := warehouse.Open(a.cfg.Store.Path)
			if err != nil {
				return eris.Wrap(err, "failed to open warehouse")
			}
			defer s.Close()

			ctx := cmd.Context()
			if err := s.Migrate(ctx); err != nil {
				return err
			}
			if err := s.InsertSessions(ctx, facts); err != nil {
				return err
			}
			if err := s.Rebuild(ctx); err != nil {
				return err
			}

			zap.L().Info("load complete",
				zap.Int("sessions", len(facts)),
				zap.String("csv", file),
				zap.String("db", a.cfg.Store.Path),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d sessions into %s\n", len(facts), a.cfg.Store.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to CSV file (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
