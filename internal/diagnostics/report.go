package diagnostics

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Report describes the configured RPC endpoint and a fresh probe of it.
// It records whether a credential is set, never its value.
type Report struct {
	Endpoint        string        `json:"endpoint"`
	TLS             bool          `json:"tls"`
	Timeout         string        `json:"timeout"`
	TokenConfigured bool          `json:"apiKeyConfigured"`
	Configured      bool          `json:"configured"`
	ChannelState    string        `json:"channelState"`
	Probe           *ProbeSummary `json:"probe,omitempty"`
	Hints           []string      `json:"hints,omitempty"`
}

// Report probes the shared handle and explains the result.
func (p *Prober) Report(ctx context.Context) Report {
	r := Report{
		Endpoint:        p.endpoint.Address(),
		TLS:             p.endpoint.TLS,
		TokenConfigured: strings.TrimSpace(p.token) != "",
		Configured:      p.client != nil,
		ChannelState:    "not configured",
	}
	if p.client != nil {
		r.Timeout = p.client.Timeout().String()
		r.ChannelState = p.client.State().String()
		res := summarize(p.client.Probe(ctx))
		r.Probe = &res
	}
	r.Hints = p.hints(r)
	return r
}

func (p *Prober) hints(r Report) []string {
	var hints []string
	if !r.Configured {
		hints = append(hints, "rpc transport is disabled: set rpc.enabled=true to use display names and namespace creation")
		return hints
	}
	if !r.TokenConfigured {
		hints = append(hints, "no API key configured: set rest.api_key (create one with `headscale apikeys create`)")
	}
	if p.restPort() == p.endpoint.Port && p.restHost() == p.endpoint.Host {
		hints = append(hints, fmt.Sprintf("rpc.port %d is the REST port; headscale serves gRPC on grpc_listen_addr (default 50443)", p.endpoint.Port))
	}
	if r.Probe == nil {
		return hints
	}
	switch r.Probe.Verdict {
	case VerdictMismatch:
		if r.TLS {
			hints = append(hints, "try disabling TLS: set rpc.tls=false")
		} else {
			hints = append(hints, "the port answers but not with plaintext gRPC: it may serve HTTP, or require TLS (set rpc.tls=true)")
		}
		hints = append(hints, fmt.Sprintf("verify the server accepts gRPC on port %d", p.endpoint.Port))
	case VerdictAuthRejected:
		hints = append(hints, "the API key was rejected: check that it is valid and not expired")
	case VerdictNotEstablished:
		hints = append(hints, "check that headscale is running and grpc_listen_addr is reachable from this host")
		if !r.TLS {
			hints = append(hints, "headscale only allows plaintext gRPC when grpc_allow_insecure is set; otherwise enable rpc.tls")
		}
	case VerdictTimeout:
		hints = append(hints, "the call timed out: check network latency or raise rpc.timeout")
	case VerdictFailed:
		hints = append(hints, "ensure the headscale version supports the ListUsers and CreateUser methods")
	}
	return hints
}

func (p *Prober) restHost() string {
	u, err := url.Parse(p.restURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func (p *Prober) restPort() int {
	u, err := url.Parse(p.restURL)
	if err != nil || u.Host == "" {
		return 0
	}
	if port := u.Port(); port != "" {
		n, _ := strconv.Atoi(port)
		return n
	}
	if u.Scheme == "https" {
		return 443
	}
	return 80
}

// Text renders the report for a terminal.
func (r Report) Text() string {
	var b strings.Builder
	b.WriteString("=== Headscale RPC Diagnostics ===\n")
	host, port, _ := net.SplitHostPort(r.Endpoint)
	fmt.Fprintf(&b, "Host: %s\n", host)
	fmt.Fprintf(&b, "Port: %s\n", port)
	fmt.Fprintf(&b, "TLS: %t\n", r.TLS)
	if r.Timeout != "" {
		fmt.Fprintf(&b, "Timeout: %s\n", r.Timeout)
	}
	if r.TokenConfigured {
		b.WriteString("API key: ***configured***\n")
	} else {
		b.WriteString("API key: NOT SET\n")
	}
	fmt.Fprintf(&b, "Channel state: %s\n", r.ChannelState)
	if r.Probe != nil {
		writeProbe(&b, *r.Probe)
	}
	if len(r.Hints) > 0 {
		b.WriteString("\n=== Troubleshooting Suggestions ===\n")
		for i, h := range r.Hints {
			fmt.Fprintf(&b, "%d. %s\n", i+1, h)
		}
	}
	return b.String()
}

// Text renders a single probe.
func (s ProbeSummary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Probe %s ===\n", s.Target)
	writeProbe(&b, s)
	return b.String()
}

func writeProbe(b *strings.Builder, s ProbeSummary) {
	fmt.Fprintf(b, "Probe: %s", s.Verdict)
	if s.Reachable {
		fmt.Fprintf(b, " (%d users, %s)\n", s.UserCount, s.Latency)
	} else {
		fmt.Fprintf(b, " (%s -> %s, %s)\n", s.StateBefore, s.StateAfter, s.Latency)
	}
	if s.Detail != "" {
		fmt.Fprintf(b, "Detail: %s\n", s.Detail)
	}
	if s.Error != "" {
		fmt.Fprintf(b, "Error: %s\n", s.Error)
	}
}

