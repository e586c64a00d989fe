// Package server exposes the console over HTTP: a JSON admin API, a
// Prometheus endpoint and a websocket stream of connection status.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ownding/headscale-console/internal/constants"
	"github.com/ownding/headscale-console/internal/diagnostics"
	"github.com/ownding/headscale-console/internal/headscale"
	"github.com/ownding/headscale-console/internal/hybrid"
	"github.com/ownding/headscale-console/internal/logging"
	"github.com/ownding/headscale-console/internal/metrics"
)

// Console is the routed API surface the handlers call.
type Console interface {
	ConnectionStatus(ctx context.Context) hybrid.ConnectionStatus
	CreateNamespace(ctx context.Context, name string) error
	ListUsers(ctx context.Context) ([]headscale.User, error)
	GetUserByName(ctx context.Context, name string) (headscale.User, error)
	CreateUser(ctx context.Context, name, displayName string) (headscale.User, error)
	DeleteUserSafely(ctx context.Context, name string) error
	CanDeleteUser(ctx context.Context, name string) (bool, string, error)
	ListPreAuthKeys(ctx context.Context, name string) ([]headscale.PreAuthKey, error)
	CreatePreAuthKey(ctx context.Context, name string, opts headscale.PreAuthKeyOptions) (headscale.PreAuthKey, error)
	ListNodes(ctx context.Context) ([]headscale.Node, error)
	ListNodesByUser(ctx context.Context, name string) ([]headscale.Node, error)
	GetNode(ctx context.Context, id string) (headscale.Node, error)
	DeleteNode(ctx context.Context, id string) error
	NodeStatus(ctx context.Context) (headscale.NodeSummary, error)
	GetPolicy(ctx context.Context) (string, error)
	SetPolicy(ctx context.Context, policy string) (string, error)
}

// Diagnostics explains the state of the RPC transport.
type Diagnostics interface {
	Report(ctx context.Context) diagnostics.Report
	CheckConnectivity(ctx context.Context) diagnostics.Connectivity
	SuggestModes(ctx context.Context) diagnostics.Modes
	ProbeEndpoint(ctx context.Context, host string, port int, useTLS bool) (diagnostics.ProbeSummary, error)
}

// Options configures an APIServer.
type Options struct {
	Listen         string
	StatusInterval time.Duration
	Logger         *logging.Logger
	Metrics        *metrics.Registry
}

// APIServer serves the admin API.
type APIServer struct {
	console Console
	diag    Diagnostics
	metrics *metrics.Registry
	log     *logging.Logger
	listen  string
	status  *statusStream

	mu         sync.Mutex
	httpServer *http.Server
}

// NewAPIServer wires the handlers. diag may be nil, in which case the
// /api/rpc routes answer 503.
func NewAPIServer(console Console, diag Diagnostics, opts Options) (*APIServer, error) {
	if console == nil {
		return nil, errors.New("server: console is required")
	}
	log := opts.Logger
	if log == nil {
		log = logging.WithComponent("api")
	}
	interval := opts.StatusInterval
	if interval <= 0 {
		interval = constants.StatusStreamInterval
	}
	s := &APIServer{
		console: console,
		diag:    diag,
		metrics: opts.Metrics,
		log:     log,
		listen:  opts.Listen,
	}
	s.status = newStatusStream(console, interval, log)
	return s, nil
}

// Handler returns the routed handler wrapped with request IDs and metrics.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/test", s.handleTest)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/namespaces", s.handleNamespaces)
	mux.HandleFunc("/api/users", s.handleUsersRoot)
	mux.HandleFunc("/api/users/", s.handleUserSubroutes)
	mux.HandleFunc("/api/nodes", s.handleNodesRoot)
	mux.HandleFunc("/api/nodes/", s.handleNodeSubroutes)
	mux.HandleFunc("/api/acl", s.handleACL)
	mux.HandleFunc("/api/rpc/diagnostics", s.handleRPCDiagnostics)
	mux.HandleFunc("/api/rpc/connectivity", s.handleRPCConnectivity)
	mux.HandleFunc("/api/rpc/modes", s.handleRPCModes)
	mux.HandleFunc("/api/rpc/probe", s.handleRPCProbe)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/ws/status", s.status.HandleWebSocket)
	return s.wrapWithRequestID(s.wrapWithMetrics(mux))
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *APIServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: constants.ServerReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("admin api listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *APIServer) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listen, err)
	}
	return s.Serve(ctx, ln)
}

// Shutdown stops the status streams and the HTTP server.
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.status.Close()
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
