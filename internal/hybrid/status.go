package hybrid

import (
	"context"

	"github.com/ownding/headscale-console/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Mode names which transports are reachable.
type Mode string

const (
	ModeBoth     Mode = "both"
	ModeRESTOnly Mode = "rest-only"
	ModeRPCOnly  Mode = "rpc-only"
	ModeNone     Mode = "none"
)

// ConnectionStatus is the result of probing both transports.
type ConnectionStatus struct {
	RESTAvailable bool   `json:"restAvailable"`
	RPCAvailable  bool   `json:"grpcAvailable"`
	Mode          Mode   `json:"mode"`
	Summary       string `json:"status"`
	RESTError     string `json:"restError,omitempty"`
}

// AnyAvailable reports whether at least one transport answered.
func (s ConnectionStatus) AnyAvailable() bool {
	return s.RESTAvailable || s.RPCAvailable
}

func newStatus(restOK, rpcOK bool) ConnectionStatus {
	st := ConnectionStatus{RESTAvailable: restOK, RPCAvailable: rpcOK}
	switch {
	case restOK && rpcOK:
		st.Mode, st.Summary = ModeBoth, "Both REST and gRPC APIs are available"
	case restOK:
		st.Mode, st.Summary = ModeRESTOnly, "Only REST API is available"
	case rpcOK:
		st.Mode, st.Summary = ModeRPCOnly, "Only gRPC API is available"
	default:
		st.Mode, st.Summary = ModeNone, "No APIs are available"
	}
	return st
}

// ConnectionStatus probes both transports concurrently. The probes are
// independent; one failing does not cut the other short.
func (s *Service) ConnectionStatus(ctx context.Context) ConnectionStatus {
	var (
		restErr error
		rpcOK   bool
		g       errgroup.Group
	)
	g.Go(func() error {
		restErr = s.rest.Ping(ctx)
		s.metrics.RecordProbe(metrics.TransportREST, restErr == nil)
		return nil
	})
	g.Go(func() error {
		rpcOK = s.rpc != nil && s.rpc.Available(ctx)
		return nil
	})
	_ = g.Wait()

	st := newStatus(restErr == nil, rpcOK)
	if restErr != nil {
		st.RESTError = restErr.Error()
	}
	s.log.Debug("connection status", "rest", st.RESTAvailable, "rpc", st.RPCAvailable, "mode", st.Mode)
	return st
}

// TestConnection probes both transports and reports whether REST, the
// primary transport, is reachable.
func (s *Service) TestConnection(ctx context.Context) bool {
	st := s.ConnectionStatus(ctx)
	s.log.Info("connection test", "rest", st.RESTAvailable, "rpc", st.RPCAvailable)
	return st.RESTAvailable
}
