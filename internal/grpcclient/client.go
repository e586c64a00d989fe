// Package grpcclient is the binary RPC transport to headscale.
//
// It owns one long-lived Handle and exposes only what the RPC API is used
// for here: a connection probe, listing users, and creating users with the
// metadata the REST API cannot carry. Every other operation fails fast with
// headscale.ErrNotImplemented without touching the channel.
package grpcclient

import (
	"context"
	"strings"
	"time"

	"github.com/ownding/headscale-console/internal/constants"
	"github.com/ownding/headscale-console/internal/headscale"
	"github.com/ownding/headscale-console/internal/logging"
	"github.com/ownding/headscale-console/internal/metrics"
	"github.com/ownding/headscale-console/internal/rpcdial"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Options configures a Client.
type Options struct {
	Token        string
	Timeout      time.Duration // per call
	ProbeTimeout time.Duration
	ReleaseGrace time.Duration
	Logger       *logging.Logger
	Metrics      *metrics.Registry
}

type Client struct {
	handle       *Handle
	token        string
	timeout      time.Duration
	probeTimeout time.Duration
	log          *logging.Logger
	metrics      *metrics.Registry
}

// Dial creates the channel for ep and wraps it in a Client. The channel
// connects lazily; call Establish or Probe to force a connection.
func Dial(ctx context.Context, ep rpcdial.Endpoint, opts Options) (*Client, error) {
	conn, err := rpcdial.NewClient(ctx, ep, rpcdial.DefaultQoS())
	if err != nil {
		return nil, err
	}
	return NewClient(conn, ep.Address(), opts), nil
}

// NewClient wraps an existing channel.
func NewClient(ch Channel, target string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = constants.RPCDefaultTimeout
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = constants.RPCProbeTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logging.WithComponent("rpc")
	}
	return &Client{
		handle:       NewHandle(ch, target, opts.ReleaseGrace, log),
		token:        strings.TrimSpace(opts.Token),
		timeout:      opts.Timeout,
		probeTimeout: opts.ProbeTimeout,
		log:          log,
		metrics:      opts.Metrics,
	}
}

// Handle exposes the connection handle for diagnostics.
func (c *Client) Handle() *Handle {
	return c.handle
}

// State reports the handle state.
func (c *Client) State() State {
	return c.handle.State()
}

// HasToken reports whether a bearer credential is configured.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// Timeout returns the per-call deadline.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Close releases the handle within its grace period.
func (c *Client) Close() error {
	return c.handle.Release()
}

// ─── operations ───

// ListUsers lists all users.
func (c *Client) ListUsers(ctx context.Context) ([]headscale.User, error) {
	resp := &ListUsersResponse{}
	if err := c.call(ctx, "ListUsers", MethodListUsers, &ListUsersRequest{}, resp); err != nil {
		return nil, err
	}
	users := make([]headscale.User, 0, len(resp.Users))
	for _, u := range resp.Users {
		users = append(users, u.Domain())
	}
	return users, nil
}

// CreateUser creates a user with an optional display name.
func (c *Client) CreateUser(ctx context.Context, name, displayName string) (headscale.User, error) {
	name, err := headscale.RequireNonBlank("username", name)
	if err != nil {
		return headscale.User{}, err
	}
	req := &CreateUserRequest{Name: name, DisplayName: strings.TrimSpace(displayName)}
	resp := &CreateUserResponse{}
	if err := c.call(ctx, "CreateUser", MethodCreateUser, req, resp); err != nil {
		return headscale.User{}, err
	}
	if resp.User == nil {
		// Older servers answer with an empty body; echo the request.
		return headscale.User{Name: req.Name, DisplayName: req.DisplayName}, nil
	}
	return resp.User.Domain(), nil
}

// CreateNamespace creates a namespace. Headscale models namespaces as
// users, so this issues CreateUser without a display name.
func (c *Client) CreateNamespace(ctx context.Context, name string) error {
	name, err := headscale.RequireNonBlank("namespace", name)
	if err != nil {
		return err
	}
	return c.call(ctx, "CreateNamespace", MethodCreateUser, &CreateUserRequest{Name: name}, &CreateUserResponse{})
}

func (c *Client) DeleteUser(context.Context, string) error {
	return headscale.NotImplemented("DeleteUser")
}

func (c *Client) ListNodes(context.Context) ([]headscale.Node, error) {
	return nil, headscale.NotImplemented("ListNodes")
}

func (c *Client) ListPreAuthKeys(context.Context, string) ([]headscale.PreAuthKey, error) {
	return nil, headscale.NotImplemented("ListPreAuthKeys")
}

func (c *Client) CreatePreAuthKey(context.Context, string, headscale.PreAuthKeyOptions) (headscale.PreAuthKey, error) {
	return headscale.PreAuthKey{}, headscale.NotImplemented("CreatePreAuthKey")
}

func (c *Client) GetPolicy(context.Context) (string, error) {
	return "", headscale.NotImplemented("GetPolicy")
}

func (c *Client) SetPolicy(context.Context, string) (string, error) {
	return "", headscale.NotImplemented("SetPolicy")
}

// ─── probing ───

// ProbeResult is the outcome of one live round trip.
type ProbeResult struct {
	Target      string
	StateBefore State
	StateAfter  State
	Reachable   bool
	UserCount   int
	Latency     time.Duration
	Err         error
	Cause       Cause
}

// Summary is a one-line description of the result.
func (r ProbeResult) Summary() string {
	if r.Reachable {
		return "reachable"
	}
	if r.Err == nil {
		return "channel not established (" + r.StateAfter.String() + ")"
	}
	return r.Cause.Describe()
}

// Probe establishes the channel if needed and issues a ListUsers round trip
// under the probe deadline. Unlike regular calls it does not require the
// handle to be ready beforehand, so a failed connection surfaces its cause.
func (c *Client) Probe(ctx context.Context) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	res := ProbeResult{Target: c.handle.Target(), StateBefore: c.handle.State()}
	start := time.Now()
	defer func() {
		res.Latency = time.Since(start)
		c.metrics.RecordProbe(metrics.TransportRPC, res.Reachable)
	}()

	if res.StateBefore == StateShutdown {
		res.StateAfter = StateShutdown
		res.Err = &headscale.ChannelUnavailableError{Op: "Probe", State: StateShutdown.String()}
		res.Cause = CauseUnreachable
		return res
	}

	c.handle.Establish(ctx)

	resp := &ListUsersResponse{}
	err := c.invoke(ctx, "Probe", MethodListUsers, &ListUsersRequest{}, resp)
	res.StateAfter = c.handle.State()
	if err != nil {
		res.Err = err
		res.Cause = CauseOf(err)
		c.log.Debug("rpc probe failed", "target", res.Target, "cause", res.Cause, "error", err)
		return res
	}
	res.Reachable = true
	res.UserCount = len(resp.Users)
	return res
}

// Available reports whether the handle exists, is not shut down, and a
// live probe succeeds.
func (c *Client) Available(ctx context.Context) bool {
	if c == nil || c.handle == nil {
		return false
	}
	return c.Probe(ctx).Reachable
}

// TestConnection runs a probe and returns its error.
func (c *Client) TestConnection(ctx context.Context) error {
	return c.Probe(ctx).Err
}

// ─── internal helpers ───

// call issues a regular RPC. It fails immediately unless the handle is ready.
func (c *Client) call(ctx context.Context, op, method string, req, resp wireMessage) error {
	if err := c.handle.requireReady(op); err != nil {
		c.metrics.ObserveCall(metrics.TransportRPC, op, time.Now(), err)
		return err
	}
	return c.invoke(ctx, op, method, req, resp)
}

func (c *Client) invoke(ctx context.Context, op, method string, req, resp wireMessage) (err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveCall(metrics.TransportRPC, op, start, err) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = c.withToken(ctx)

	if err := c.handle.ch.Invoke(ctx, method, req, resp, grpc.ForceCodec(wireCodec{})); err != nil {
		return classify(op, err)
	}
	return nil
}

// withToken appends the bearer token to outgoing gRPC metadata.
func (c *Client) withToken(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
}
