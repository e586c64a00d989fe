package diagnostics

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// CommonPorts are ports headscale deployments commonly expose gRPC on.
var CommonPorts = []int{50443, 9090, 50051}

// Modes compares the configured endpoint against common alternatives.
type Modes struct {
	Port        int      `json:"port"`
	TLS         bool     `json:"tls"`
	Succeeded   bool     `json:"succeeded"`
	Verdict     Verdict  `json:"verdict,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// SuggestModes probes the configured endpoint and, when it fails, lists
// other ports and TLS settings worth trying. It does not probe them.
func (p *Prober) SuggestModes(ctx context.Context) Modes {
	m := Modes{Port: p.endpoint.Port, TLS: p.endpoint.TLS}
	if p.client != nil {
		res := summarize(p.client.Probe(ctx))
		m.Succeeded = res.Reachable
		m.Verdict = res.Verdict
	}
	if m.Succeeded {
		return m
	}
	m.Suggestions = append(m.Suggestions, fmt.Sprintf("try TLS=%t on port %d", !m.TLS, m.Port))
	for _, port := range AlternativePorts(m.Port) {
		m.Suggestions = append(m.Suggestions, fmt.Sprintf("try port %d", port))
	}
	return m
}

// AlternativePorts returns CommonPorts without the configured one.
func AlternativePorts(configured int) []int {
	out := make([]int, 0, len(CommonPorts))
	for _, port := range CommonPorts {
		if port != configured {
			out = append(out, port)
		}
	}
	return slices.Clip(out)
}

// Text renders the comparison.
func (m Modes) Text() string {
	var b strings.Builder
	b.WriteString("=== Connection Mode Tests ===\n")
	result := "FAILED"
	if m.Succeeded {
		result = "SUCCESS"
	}
	fmt.Fprintf(&b, "Current config (port=%d, TLS=%t): %s\n", m.Port, m.TLS, result)
	if m.Verdict != "" && !m.Succeeded {
		fmt.Fprintf(&b, "Verdict: %s\n", m.Verdict)
	}
	for _, s := range m.Suggestions {
		fmt.Fprintf(&b, "Suggestion: %s\n", s)
	}
	return b.String()
}
