// Package hybrid routes console operations across the REST and RPC
// transports.
//
// REST serves everything it can express. RPC is used opportunistically for
// user creation with a display name, and exclusively for namespace
// creation. The only fallback is RPC to REST in CreateUser; there are no
// retries.
package hybrid

import (
	"context"
	"errors"
	"strings"

	"github.com/ownding/headscale-console/internal/grpcclient"
	"github.com/ownding/headscale-console/internal/headscale"
	"github.com/ownding/headscale-console/internal/logging"
	"github.com/ownding/headscale-console/internal/metrics"
)

// RESTBackend is the request/response transport.
type RESTBackend interface {
	Ping(ctx context.Context) error
	ListUsers(ctx context.Context) ([]headscale.User, error)
	CreateUser(ctx context.Context, name string) (headscale.User, error)
	GetUserByName(ctx context.Context, name string) (headscale.User, error)
	DeleteUser(ctx context.Context, name string) error
	DeleteUserSafely(ctx context.Context, name string) error
	UserHasNodes(ctx context.Context, name string) (bool, error)
	CanDeleteUser(ctx context.Context, name string) (bool, string, error)
	ListNodes(ctx context.Context) ([]headscale.Node, error)
	ListNodesByUser(ctx context.Context, name string) ([]headscale.Node, error)
	GetNode(ctx context.Context, id string) (headscale.Node, error)
	DeleteNode(ctx context.Context, id string) error
	NodeStatus(ctx context.Context) (headscale.NodeSummary, error)
	ListPreAuthKeys(ctx context.Context, name string) ([]headscale.PreAuthKey, error)
	CreatePreAuthKey(ctx context.Context, name string, opts headscale.PreAuthKeyOptions) (headscale.PreAuthKey, error)
	GetPolicy(ctx context.Context) (string, error)
	SetPolicy(ctx context.Context, policy string) (string, error)
}

// RPCBackend is the subset of the RPC transport the router uses.
type RPCBackend interface {
	Available(ctx context.Context) bool
	CreateUser(ctx context.Context, name, displayName string) (headscale.User, error)
	CreateNamespace(ctx context.Context, name string) error
}

// Service is the merged API surface over both transports.
type Service struct {
	rest    RESTBackend
	rpc     RPCBackend
	log     *logging.Logger
	metrics *metrics.Registry
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metrics.Registry) Option {
	return func(s *Service) { s.metrics = m }
}

// New builds a router. rpc may be nil when the RPC transport is disabled.
func New(rest RESTBackend, rpc RPCBackend, opts ...Option) *Service {
	s := &Service{rest: rest, rpc: rpc, log: logging.WithComponent("hybrid")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RPCConfigured reports whether an RPC backend was supplied.
func (s *Service) RPCConfigured() bool {
	return s.rpc != nil
}

// CreateUser creates a user. With a display name and an available RPC
// transport the user is created over RPC; if that fails for any reason the
// user is created over REST and the display name is dropped. Without a
// display name RPC is never consulted.
func (s *Service) CreateUser(ctx context.Context, name, displayName string) (headscale.User, error) {
	name, err := headscale.RequireNonBlank("username", name)
	if err != nil {
		return headscale.User{}, err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return s.rest.CreateUser(ctx, name)
	}

	switch {
	case s.rpc == nil:
		s.log.Warn("rpc transport disabled, display name will not be set", "user", name, "display_name", displayName)
		s.metrics.RecordFallback("CreateUser", "disabled")
	case !s.rpc.Available(ctx):
		s.log.Warn("rpc transport unavailable, display name will not be set", "user", name, "display_name", displayName)
		s.metrics.RecordFallback("CreateUser", "unavailable")
	default:
		u, err := s.rpc.CreateUser(ctx, name, displayName)
		if err == nil {
			s.log.Info("user created over rpc", "user", name, "display_name", displayName)
			return u, nil
		}
		reason := fallbackReason(err)
		s.log.Warn("rpc create failed, falling back to rest without display name",
			"user", name, "reason", reason, "error", err)
		s.metrics.RecordFallback("CreateUser", reason)
	}
	return s.rest.CreateUser(ctx, name)
}

// CreateNamespace creates a namespace. Only the RPC transport can do this;
// when it is unavailable the call fails with a CapabilityUnavailableError.
func (s *Service) CreateNamespace(ctx context.Context, name string) error {
	name, err := headscale.RequireNonBlank("namespace", name)
	if err != nil {
		return err
	}
	if s.rpc == nil || !s.rpc.Available(ctx) {
		return &headscale.CapabilityUnavailableError{Op: "namespace creation", Transport: "rpc"}
	}
	err = s.rpc.CreateNamespace(ctx, name)
	if errors.Is(err, headscale.ErrChannelUnavailable) {
		return &headscale.CapabilityUnavailableError{Op: "namespace creation", Transport: "rpc", Cause: err}
	}
	if err != nil {
		return err
	}
	s.log.Info("namespace created over rpc", "namespace", name)
	return nil
}

func fallbackReason(err error) string {
	if errors.Is(err, headscale.ErrChannelUnavailable) {
		return "channel-unavailable"
	}
	return string(grpcclient.CauseOf(err))
}

// ─── REST-only operations ───

func (s *Service) ListUsers(ctx context.Context) ([]headscale.User, error) {
	return s.rest.ListUsers(ctx)
}

func (s *Service) GetUserByName(ctx context.Context, name string) (headscale.User, error) {
	return s.rest.GetUserByName(ctx, name)
}

func (s *Service) DeleteUser(ctx context.Context, name string) error {
	return s.rest.DeleteUser(ctx, name)
}

// DeleteUserSafely deletes a user only when no nodes are attached.
func (s *Service) DeleteUserSafely(ctx context.Context, name string) error {
	return s.rest.DeleteUserSafely(ctx, name)
}

func (s *Service) UserHasNodes(ctx context.Context, name string) (bool, error) {
	return s.rest.UserHasNodes(ctx, name)
}

func (s *Service) CanDeleteUser(ctx context.Context, name string) (bool, string, error) {
	return s.rest.CanDeleteUser(ctx, name)
}

func (s *Service) ListNodes(ctx context.Context) ([]headscale.Node, error) {
	return s.rest.ListNodes(ctx)
}

func (s *Service) ListNodesByUser(ctx context.Context, name string) ([]headscale.Node, error) {
	return s.rest.ListNodesByUser(ctx, name)
}

func (s *Service) GetNode(ctx context.Context, id string) (headscale.Node, error) {
	return s.rest.GetNode(ctx, id)
}

func (s *Service) DeleteNode(ctx context.Context, id string) error {
	return s.rest.DeleteNode(ctx, id)
}

func (s *Service) NodeStatus(ctx context.Context) (headscale.NodeSummary, error) {
	return s.rest.NodeStatus(ctx)
}

func (s *Service) ListPreAuthKeys(ctx context.Context, name string) ([]headscale.PreAuthKey, error) {
	return s.rest.ListPreAuthKeys(ctx, name)
}

func (s *Service) CreatePreAuthKey(ctx context.Context, name string, opts headscale.PreAuthKeyOptions) (headscale.PreAuthKey, error) {
	return s.rest.CreatePreAuthKey(ctx, name, opts)
}

func (s *Service) GetPolicy(ctx context.Context) (string, error) {
	return s.rest.GetPolicy(ctx)
}

func (s *Service) SetPolicy(ctx context.Context, policy string) (string, error) {
	return s.rest.SetPolicy(ctx, policy)
}
