package cli

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rileyhilliard/pxd/internal/server"
	"github.com/spf13/cobra"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API over HTTP",
	Long: `Start the HTTP API. Every query and action is available under /api,
the system overview is pushed over a websocket at /api/ws/overview, and
Prometheus metrics are served at /metrics.

Examples:
  pxd serve
  pxd serve --listen 0.0.0.0:8087`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			cfg := a.cfg.Server
			if serveListen != "" {
				cfg.Listen = serveListen
			}
			if !debugOutput {
				gin.SetMode(gin.ReleaseMode)
			}

			a.cache.StartJanitor(ctx, a.cfg.Cache.SweepInterval)

			srv := server.New(cfg, server.Deps{
				Aggregator: a.agg,
				Scripts:    a.scripts,
				Suggest:    a.suggest,
				Metrics:    a.metrics,
				Gatherer:   a.registry,
				Log:        a.log,
			})
			return srv.Run(ctx)
		})
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "address to listen on (overrides server.listen)")
	rootCmd.AddCommand(serveCmd)
}
