// Package diagnostics explains why the RPC transport does or does not work.
//
// It never changes the shared connection handle. Probes against other
// endpoints open their own short-lived handle and release it before
// returning.
package diagnostics

import (
	"context"
	"fmt"
	"time"

	"github.com/ownding/headscale-console/internal/constants"
	"github.com/ownding/headscale-console/internal/grpcclient"
	"github.com/ownding/headscale-console/internal/headscale"
	"github.com/ownding/headscale-console/internal/logging"
	"github.com/ownding/headscale-console/internal/metrics"
	"github.com/ownding/headscale-console/internal/rpcdial"
)

// Dialer opens a channel to ep.
type Dialer func(ctx context.Context, ep rpcdial.Endpoint) (grpcclient.Channel, error)

// DefaultDialer dials with the same channel settings as the long-lived handle.
func DefaultDialer(ctx context.Context, ep rpcdial.Endpoint) (grpcclient.Channel, error) {
	return rpcdial.NewClient(ctx, ep, rpcdial.DefaultQoS())
}

// Options configures a Prober.
type Options struct {
	Token   string
	RESTURL string // used to spot an RPC port that actually serves REST
	Dialer  Dialer
	Logger  *logging.Logger
	Metrics *metrics.Registry
}

// Prober runs diagnostics against the configured endpoint. client may be
// nil when the RPC transport is disabled.
type Prober struct {
	client   *grpcclient.Client
	endpoint rpcdial.Endpoint
	token    string
	restURL  string
	dial     Dialer
	log      *logging.Logger
	metrics  *metrics.Registry
}

func New(client *grpcclient.Client, ep rpcdial.Endpoint, opts Options) *Prober {
	p := &Prober{
		client:   client,
		endpoint: ep,
		token:    opts.Token,
		restURL:  opts.RESTURL,
		dial:     opts.Dialer,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
	if p.dial == nil {
		p.dial = DefaultDialer
	}
	if p.log == nil {
		p.log = logging.WithComponent("diagnostics")
	}
	return p
}

// Verdict is the headline outcome of a probe.
type Verdict string

const (
	VerdictReachable      Verdict = "reachable"
	VerdictNotEstablished Verdict = "channel not established"
	VerdictAuthRejected   Verdict = "authentication rejected"
	VerdictMismatch       Verdict = "protocol mismatch"
	VerdictTimeout        Verdict = "timed out"
	VerdictFailed         Verdict = "call failed"
)

// VerdictOf reduces a probe result to its verdict.
func VerdictOf(r grpcclient.ProbeResult) Verdict {
	switch {
	case r.Reachable:
		return VerdictReachable
	case r.Cause == grpcclient.CauseUnauthenticated:
		return VerdictAuthRejected
	case r.Cause == grpcclient.CauseProtocolMismatch:
		return VerdictMismatch
	case r.Cause == grpcclient.CauseTimeout:
		return VerdictTimeout
	case r.StateAfter != grpcclient.StateReady:
		return VerdictNotEstablished
	}
	return VerdictFailed
}

// ProbeSummary is the serializable form of a probe result.
type ProbeSummary struct {
	Target      string  `json:"target"`
	Verdict     Verdict `json:"verdict"`
	Reachable   bool    `json:"reachable"`
	StateBefore string  `json:"stateBefore"`
	StateAfter  string  `json:"stateAfter"`
	UserCount   int     `json:"userCount"`
	Latency     string  `json:"latency"`
	Cause       string  `json:"cause,omitempty"`
	Detail      string  `json:"detail,omitempty"`
	Error       string  `json:"error,omitempty"`
}

func summarize(r grpcclient.ProbeResult) ProbeSummary {
	s := ProbeSummary{
		Target:      r.Target,
		Verdict:     VerdictOf(r),
		Reachable:   r.Reachable,
		StateBefore: r.StateBefore.String(),
		StateAfter:  r.StateAfter.String(),
		UserCount:   r.UserCount,
		Latency:     r.Latency.Round(time.Millisecond).String(),
	}
	if r.Err != nil {
		s.Cause = string(r.Cause)
		s.Detail = r.Summary()
		s.Error = r.Err.Error()
	}
	return s
}

// ProbeEndpoint opens a temporary handle to host:port, probes it, and
// releases the handle before returning on every path. A blank host uses
// the configured one. The shared handle is not touched.
func (p *Prober) ProbeEndpoint(ctx context.Context, host string, port int, useTLS bool) (ProbeSummary, error) {
	ep := p.endpoint
	if host != "" {
		ep.Host = host
	}
	ep.Port = port
	ep.TLS = useTLS
	if err := ep.Validate(); err != nil {
		return ProbeSummary{}, &headscale.ValidationError{Field: "endpoint", Message: err.Error()}
	}

	ch, err := p.dial(ctx, ep)
	if err != nil {
		return ProbeSummary{}, fmt.Errorf("open temporary channel to %s: %w", ep.Address(), err)
	}
	client := grpcclient.NewClient(ch, ep.Address(), grpcclient.Options{
		Token:        p.token,
		Timeout:      constants.RPCEndpointProbeTimeout,
		ProbeTimeout: constants.RPCEndpointProbeTimeout,
		Logger:       p.log,
		Metrics:      p.metrics,
	})
	defer func() {
		if err := client.Close(); err != nil {
			p.log.Warn("temporary rpc channel release failed", "target", ep.Address(), "error", err)
		}
	}()

	res := summarize(client.Probe(ctx))
	p.log.Info("endpoint probe finished", "target", res.Target, "tls", useTLS, "verdict", res.Verdict)
	return res, nil
}

// Connectivity is the result of a connect-only check.
type Connectivity struct {
	Configured  bool   `json:"configured"`
	StateBefore string `json:"stateBefore"`
	StateAfter  string `json:"stateAfter"`
	Established bool   `json:"established"`
	Message     string `json:"message"`
}

// CheckConnectivity forces the shared channel to connect and waits up to
// one second without issuing any call.
func (p *Prober) CheckConnectivity(ctx context.Context) Connectivity {
	if p.client == nil {
		return Connectivity{Message: "rpc transport is disabled"}
	}
	c := Connectivity{Configured: true}
	before := p.client.State()
	c.StateBefore = before.String()
	if before == grpcclient.StateShutdown {
		c.StateAfter = before.String()
		c.Message = "channel is shut down"
		return c
	}

	ctx, cancel := context.WithTimeout(ctx, constants.RPCConnectivityWait)
	defer cancel()
	after := p.client.Handle().Establish(ctx)
	c.StateAfter = after.String()
	c.Established = after == grpcclient.StateReady
	if c.Established {
		c.Message = "transport connected; if calls still fail, check the API key and server version"
	} else {
		c.Message = "cannot establish connection"
	}
	return c
}
