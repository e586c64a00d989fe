package server

import (
	"context"
	"sync"

	"github.com/ownding/headscale-console/internal/diagnostics"
	"github.com/ownding/headscale-console/internal/headscale"
	"github.com/ownding/headscale-console/internal/hybrid"
)

// stubConsole records calls and returns canned results. A nil error field
// means success.
type stubConsole struct {
	mu    sync.Mutex
	calls []string

	status      hybrid.ConnectionStatus
	users       []headscale.User
	nodes       []headscale.Node
	keys        []headscale.PreAuthKey
	policy      string
	err         error
	created     [2]string
	keyOpts     headscale.PreAuthKeyOptions
	policySet   string
	canDelete   bool
	deleteMsg   string
	namespace   string
	nodeSummary headscale.NodeSummary
}

func (s *stubConsole) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *stubConsole) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubConsole) ConnectionStatus(context.Context) hybrid.ConnectionStatus {
	s.record("ConnectionStatus")
	return s.status
}

func (s *stubConsole) CreateNamespace(_ context.Context, name string) error {
	s.record("CreateNamespace")
	s.namespace = name
	return s.err
}

func (s *stubConsole) ListUsers(context.Context) ([]headscale.User, error) {
	s.record("ListUsers")
	return s.users, s.err
}

func (s *stubConsole) GetUserByName(_ context.Context, name string) (headscale.User, error) {
	s.record("GetUserByName")
	if s.err != nil {
		return headscale.User{}, s.err
	}
	return headscale.User{ID: "1", Name: name}, nil
}

func (s *stubConsole) CreateUser(_ context.Context, name, displayName string) (headscale.User, error) {
	s.record("CreateUser")
	s.created = [2]string{name, displayName}
	if s.err != nil {
		return headscale.User{}, s.err
	}
	return headscale.User{ID: "1", Name: name, DisplayName: displayName}, nil
}

func (s *stubConsole) DeleteUserSafely(context.Context, string) error {
	s.record("DeleteUserSafely")
	return s.err
}

func (s *stubConsole) CanDeleteUser(context.Context, string) (bool, string, error) {
	s.record("CanDeleteUser")
	return s.canDelete, s.deleteMsg, s.err
}

func (s *stubConsole) ListPreAuthKeys(context.Context, string) ([]headscale.PreAuthKey, error) {
	s.record("ListPreAuthKeys")
	return s.keys, s.err
}

func (s *stubConsole) CreatePreAuthKey(_ context.Context, name string, opts headscale.PreAuthKeyOptions) (headscale.PreAuthKey, error) {
	s.record("CreatePreAuthKey")
	s.keyOpts = opts
	if s.err != nil {
		return headscale.PreAuthKey{}, s.err
	}
	return headscale.PreAuthKey{ID: "5", Key: "k", User: headscale.Owner(name), Reusable: opts.Reusable}, nil
}

func (s *stubConsole) ListNodes(context.Context) ([]headscale.Node, error) {
	s.record("ListNodes")
	return s.nodes, s.err
}

func (s *stubConsole) ListNodesByUser(context.Context, string) ([]headscale.Node, error) {
	s.record("ListNodesByUser")
	return s.nodes, s.err
}

func (s *stubConsole) GetNode(_ context.Context, id string) (headscale.Node, error) {
	s.record("GetNode")
	if s.err != nil {
		return headscale.Node{}, s.err
	}
	return headscale.Node{ID: headscale.ID(id)}, nil
}

func (s *stubConsole) DeleteNode(context.Context, string) error {
	s.record("DeleteNode")
	return s.err
}

func (s *stubConsole) NodeStatus(context.Context) (headscale.NodeSummary, error) {
	s.record("NodeStatus")
	return s.nodeSummary, s.err
}

func (s *stubConsole) GetPolicy(context.Context) (string, error) {
	s.record("GetPolicy")
	return s.policy, s.err
}

func (s *stubConsole) SetPolicy(_ context.Context, policy string) (string, error) {
	s.record("SetPolicy")
	s.policySet = policy
	return policy, s.err
}

type stubDiagnostics struct {
	probeArgs struct {
		host string
		port int
		tls  bool
	}
	probeErr error
}

func (d *stubDiagnostics) Report(context.Context) diagnostics.Report {
	return diagnostics.Report{Endpoint: "127.0.0.1:50443", Configured: true, ChannelState: "ready"}
}

func (d *stubDiagnostics) CheckConnectivity(context.Context) diagnostics.Connectivity {
	return diagnostics.Connectivity{Configured: true, StateBefore: "unestablished", StateAfter: "ready", Established: true}
}

func (d *stubDiagnostics) SuggestModes(context.Context) diagnostics.Modes {
	return diagnostics.Modes{Port: 50443, Suggestions: []string{"try port 9090"}}
}

func (d *stubDiagnostics) ProbeEndpoint(_ context.Context, host string, port int, useTLS bool) (diagnostics.ProbeSummary, error) {
	d.probeArgs.host, d.probeArgs.port, d.probeArgs.tls = host, port, useTLS
	if d.probeErr != nil {
		return diagnostics.ProbeSummary{}, d.probeErr
	}
	return diagnostics.ProbeSummary{Target: "h:1", Verdict: diagnostics.VerdictReachable, Reachable: true}, nil
}
