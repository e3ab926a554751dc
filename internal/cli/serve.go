package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Usaidkhxn/LaunchLens/internal/server"
	"github.com/Usaidkhxn/LaunchLens/internal/warehouse"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the read-only LaunchLens HTTP API.

The server provides:
  - GET /health
  - GET /api/experiments
  - GET /api/experiments/{id}/readout[?format=json|csv|yaml&start=&end=]
  - GET /api/experiments/{id}/trend

When server.token is set, /api requires it as a Bearer token, a token
query parameter or the cookie set by the query parameter.

Example:
  launchlens serve --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.analysisConfig(windowFlags{})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.withWarehouse(ctx, func(wh warehouse.Provider) error {
				srv := server.New(wh, cfg, a.cfg.Server.Port, a.cfg.Server.Token)
				return srv.Start(ctx)
			})
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "port to listen on (overrides server.port)")
	return cmd
}
