// Package rpcdial builds gRPC client connections to the headscale RPC endpoint.
//
// A plaintext endpoint gets insecure credentials; a TLS endpoint gets
// credentials built from the system roots or an explicit CA bundle. There
// is no silent fallback from TLS to plaintext.
package rpcdial

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ownding/headscale-console/internal/constants"
	"github.com/ownding/headscale-console/internal/tlswarn"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// Endpoint identifies an RPC server and how to secure the connection to it.
type Endpoint struct {
	Host       string
	Port       int
	TLS        bool
	CACertPath string // optional CA bundle; system roots when empty
	ServerName string // SNI override
	Insecure   bool   // dev only: skip certificate verification
}

// Address returns host:port.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Validate checks host and port.
func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.Host) == "" {
		return fmt.Errorf("rpcdial: host cannot be blank")
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("rpcdial: port %d out of range", e.Port)
	}
	return nil
}

// QoSConfig holds channel tuning parameters.
type QoSConfig struct {
	KeepaliveTime     time.Duration
	KeepaliveTimeout  time.Duration
	MinConnectTimeout time.Duration
	MaxRecvMsgSize    int
}

// DefaultQoS returns the defaults for the long-lived channel.
func DefaultQoS() *QoSConfig {
	return &QoSConfig{
		KeepaliveTime:     constants.RPCKeepaliveTime,
		KeepaliveTimeout:  constants.RPCKeepaliveTimeout,
		MinConnectTimeout: constants.RPCMinConnectTimeout,
		MaxRecvMsgSize:    constants.RPCMaxInboundMessageSize,
	}
}

// BuildTLSConfig converts the endpoint's TLS fields into a *tls.Config.
// It returns nil for plaintext endpoints.
func (e Endpoint) BuildTLSConfig() (*tls.Config, error) {
	if !e.TLS {
		return nil, nil
	}

	serverName := e.ServerName
	if serverName == "" {
		serverName = e.Host
	}
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: serverName,
	}

	if e.Insecure {
		tlswarn.LogInsecure(e.Address())
		cfg.InsecureSkipVerify = true //nolint:gosec // dev-only flag
		return cfg, nil
	}

	if e.CACertPath != "" {
		caPEM, err := os.ReadFile(e.CACertPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, &os.PathError{Op: "parse", Path: e.CACertPath, Err: os.ErrInvalid}
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

type dialerContextKey struct{}

// ContextWithDialer attaches a custom dialer to the context.
// This is primarily for tests that need to intercept or fail the dial.
func ContextWithDialer(ctx context.Context, dialer func(context.Context, string) (net.Conn, error)) context.Context {
	if ctx == nil || dialer == nil {
		return ctx
	}
	return context.WithValue(ctx, dialerContextKey{}, dialer)
}

// DialerFromContext extracts a custom dialer from the context, if present.
func DialerFromContext(ctx context.Context) func(context.Context, string) (net.Conn, error) {
	if ctx == nil {
		return nil
	}
	dialer, _ := ctx.Value(dialerContextKey{}).(func(context.Context, string) (net.Conn, error))
	return dialer
}

// PassthroughPrefix is the gRPC target scheme that bypasses DNS resolution.
const PassthroughPrefix = "passthrough:///"

// DialOptions returns gRPC dial options for the endpoint.
//
// When qos is non-nil, keepalive, connect timeout and message size limits
// are added for any field that is set.
func DialOptions(ctx context.Context, ep Endpoint, qos *QoSConfig) ([]grpc.DialOption, error) {
	var opts []grpc.DialOption

	tlsCfg, err := ep.BuildTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("rpcdial: build TLS config: %w", err)
	}
	if tlsCfg != nil {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsCfg)))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	if qos != nil {
		if qos.KeepaliveTime > 0 {
			opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
				Time:                qos.KeepaliveTime,
				Timeout:             qos.KeepaliveTimeout,
				PermitWithoutStream: true,
			}))
		}
		if qos.MinConnectTimeout > 0 {
			opts = append(opts, grpc.WithConnectParams(grpc.ConnectParams{
				Backoff:           backoff.DefaultConfig,
				MinConnectTimeout: qos.MinConnectTimeout,
			}))
		}
		if qos.MaxRecvMsgSize > 0 {
			opts = append(opts, grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(qos.MaxRecvMsgSize)))
		}
	}

	if dialer := DialerFromContext(ctx); dialer != nil {
		opts = append(opts, grpc.WithContextDialer(dialer))
	}

	return opts, nil
}

// NewClient validates the endpoint and creates a lazily connecting
// *grpc.ClientConn. No network I/O happens until the first call or an
// explicit Connect.
func NewClient(ctx context.Context, ep Endpoint, qos *QoSConfig, extraOpts ...grpc.DialOption) (*grpc.ClientConn, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	dialOpts, err := DialOptions(ctx, ep, qos)
	if err != nil {
		return nil, err
	}
	dialOpts = append(dialOpts, extraOpts...)

	conn, err := grpc.NewClient(PassthroughPrefix+ep.Address(), dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("create rpc client for %s: %w", ep.Address(), err)
	}
	return conn, nil
}
