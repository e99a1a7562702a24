package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sakif/todolist/internal/server"
)

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server. The schema is migrated on start-up.

Examples:
  todo serve
  todo serve --port 9090
  JWT_SECRET=$(openssl rand -hex 32) todo serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, closer, err := setup()
			if err != nil {
				return err
			}
			defer closer.Close()

			if port > 0 {
				cfg.OverridePort(port)
			}

			srv, err := server.New(cfg, log)
			if err != nil {
				log.Error("failed to create server", slog.String("error", err.Error()))
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Run(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides PORT)")
	return cmd
}
