package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ownding/headscale-console/internal/hybrid"
	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report which transports are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := newOutputFormatter(cmd)
			return withApp(cmd, func(ctx context.Context, a *app) error {
				st := a.console.ConnectionStatus(ctx)
				if err := out.Print(st, statusText(st)); err != nil {
					return err
				}
				if !st.AnyAvailable() {
					return fmt.Errorf("no transport available")
				}
				return nil
			})
		},
	}
}

func statusText(st hybrid.ConnectionStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "REST:  %s\n", availability(st.RESTAvailable))
	fmt.Fprintf(&b, "gRPC:  %s\n", availability(st.RPCAvailable))
	fmt.Fprintf(&b, "Mode:  %s\n", st.Mode)
	fmt.Fprintf(&b, "%s\n", st.Summary)
	if st.RESTError != "" {
		fmt.Fprintf(&b, "REST error: %s\n", st.RESTError)
	}
	return b.String()
}

func availability(ok bool) string {
	if ok {
		return "available"
	}
	return "unavailable"
}

func newDiagnoseCommand() *cobra.Command {
	var connectivity, modes bool
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Explain the state of the gRPC transport",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := newOutputFormatter(cmd)
			return withApp(cmd, func(ctx context.Context, a *app) error {
				switch {
				case connectivity:
					c := a.diag.CheckConnectivity(ctx)
					text := fmt.Sprintf("State: %s -> %s\nEstablished: %t\n%s\n", c.StateBefore, c.StateAfter, c.Established, c.Message)
					return out.Print(c, text)
				case modes:
					m := a.diag.SuggestModes(ctx)
					return out.Print(m, m.Text())
				default:
					r := a.diag.Report(ctx)
					return out.Print(r, r.Text())
				}
			})
		},
	}
	cmd.Flags().BoolVar(&connectivity, "connectivity", false, "Only force the channel to connect, without issuing a call")
	cmd.Flags().BoolVar(&modes, "modes", false, "Suggest alternative ports and TLS settings")
	cmd.MarkFlagsMutuallyExclusive("connectivity", "modes")
	return cmd
}

func newProbeCommand() *cobra.Command {
	var (
		host   string
		port   int
		useTLS bool
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe an arbitrary gRPC endpoint with a temporary channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := newOutputFormatter(cmd)
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if host == "" {
					host = a.cfg.RPC.Host
				}
				if port == 0 {
					port = a.cfg.RPC.Port
				}
				res, err := a.diag.ProbeEndpoint(ctx, host, port, useTLS)
				if err != nil {
					return err
				}
				return out.Print(res, res.Text())
			})
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Host to probe (defaults to rpc.host)")
	cmd.Flags().IntVar(&port, "port", 0, "Port to probe (defaults to rpc.port)")
	cmd.Flags().BoolVar(&useTLS, "tls", false, "Use TLS for the probe")
	return cmd
}
