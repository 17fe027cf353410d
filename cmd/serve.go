package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kyleking/sqlassist/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query API over HTTP",
	Long: `Start an HTTP server exposing:

  POST /query   {"prompt": "...", "conversation_id": "..."}
  GET  /schema  the table and its columns
  GET  /health  liveness and database reachability`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default :8000)")
	serveCmd.Flags().String("session-backend", "", "Session store: memory, duckdb or sqlite3")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := GetConfigFromContext(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(a.engine, a.catalog, a.gateway, cfg.Server, a.logger, version)

	return srv.Run(ctx)
}
