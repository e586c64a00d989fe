package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ownding/headscale-console/internal/server"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			return withApp(cmd, func(ctx context.Context, a *app) error {
				srv, err := server.NewAPIServer(a.console, a.diag, server.Options{
					Listen:         a.cfg.Server.Listen,
					StatusInterval: a.cfg.Server.StatusInterval,
					Logger:         a.log.WithComponent("api"),
					Metrics:        a.metrics,
				})
				if err != nil {
					return err
				}
				a.log.Info("admin api starting", "listen", a.cfg.Server.Listen, "rest", a.cfg.REST.URL, "rpc_enabled", a.rpc != nil)
				return srv.ListenAndServe(ctx)
			})
		},
	}
	cmd.Flags().String("server.listen", "", "Admin API listen address")
	return cmd
}
