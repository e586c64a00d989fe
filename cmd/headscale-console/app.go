package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ownding/headscale-console/internal/config"
	"github.com/ownding/headscale-console/internal/diagnostics"
	"github.com/ownding/headscale-console/internal/grpcclient"
	"github.com/ownding/headscale-console/internal/hybrid"
	"github.com/ownding/headscale-console/internal/logging"
	"github.com/ownding/headscale-console/internal/metrics"
	"github.com/ownding/headscale-console/internal/restclient"
	"github.com/ownding/headscale-console/internal/rpcdial"
	"github.com/spf13/cobra"
)

// app holds the wired components for one command invocation.
type app struct {
	cfg     config.Config
	log     *logging.Logger
	metrics *metrics.Registry
	rest    *restclient.Client
	rpc     *grpcclient.Client // nil when rpc.enabled is false
	console *hybrid.Service
	diag    *diagnostics.Prober
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(cmd.Flags(), path)
}

func setupLogging(cfg config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	l := logging.New(logging.Config{Level: level, JSON: cfg.Log.JSON, Output: os.Stderr})
	logging.SetDefault(l)
	return l, nil
}

func endpointFor(cfg config.Config) rpcdial.Endpoint {
	return rpcdial.Endpoint{
		Host:       cfg.RPC.Host,
		Port:       cfg.RPC.Port,
		TLS:        cfg.RPC.TLS,
		CACertPath: cfg.RPC.CACert,
		ServerName: cfg.RPC.ServerName,
		Insecure:   cfg.RPC.Insecure,
	}
}

// newApp loads configuration and wires both transports, the router and
// diagnostics. Callers must Close the result.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := setupLogging(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, metrics: metrics.Get()}
	a.rest = restclient.New(cfg.REST.URL, cfg.REST.APIKey, cfg.REST.Timeout,
		restclient.WithLogger(log.WithComponent("rest")),
		restclient.WithMetrics(a.metrics))

	ep := endpointFor(cfg)
	var rpc hybrid.RPCBackend
	if cfg.RPC.Enabled {
		a.rpc, err = grpcclient.Dial(cmd.Context(), ep, grpcclient.Options{
			Token:   cfg.REST.APIKey,
			Timeout: cfg.RPC.Timeout,
			Logger:  log.WithComponent("rpc"),
			Metrics: a.metrics,
		})
		if err != nil {
			// The REST transport alone still serves almost everything.
			log.Warn("rpc transport disabled", "target", ep.Address(), "error", err)
			a.rpc = nil
		} else {
			rpc = a.rpc
		}
	}

	a.console = hybrid.New(a.rest, rpc,
		hybrid.WithLogger(log.WithComponent("hybrid")),
		hybrid.WithMetrics(a.metrics))
	a.diag = diagnostics.New(a.rpc, ep, diagnostics.Options{
		Token:   cfg.REST.APIKey,
		RESTURL: cfg.REST.URL,
		Logger:  log.WithComponent("diagnostics"),
		Metrics: a.metrics,
	})
	return a, nil
}

// Close releases the RPC handle.
func (a *app) Close() {
	if a.rpc == nil {
		return
	}
	if err := a.rpc.Close(); err != nil {
		a.log.Warn("rpc release failed", "error", err)
	}
}

// withApp runs fn with a wired app and a context bounded by the command.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}
