package diagnostics

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ownding/headscale-console/internal/grpcclient"
	"github.com/ownding/headscale-console/internal/headscale"
	"github.com/ownding/headscale-console/internal/logging"
	"github.com/ownding/headscale-console/internal/rpcdial"
	"github.com/ownding/headscale-console/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/status"
)

const testToken = "hskey-secret-value"

var configured = rpcdial.Endpoint{Host: "127.0.0.1", Port: 50443}

func sharedClient(ch grpcclient.Channel) *grpcclient.Client {
	return grpcclient.NewClient(ch, configured.Address(), grpcclient.Options{Token: testToken, Logger: logging.Discard()})
}

func fakeDialer(ch *testutil.FakeChannel, dials *atomic.Int32) Dialer {
	return func(context.Context, rpcdial.Endpoint) (grpcclient.Channel, error) {
		dials.Add(1)
		return ch, nil
	}
}

func succeed(string, any) error { return nil }

func TestProbeEndpointReleasesOnSuccess(t *testing.T) {
	shared := testutil.NewFakeChannel(connectivity.Ready)
	temp := testutil.NewFakeChannel(connectivity.Ready)
	temp.InvokeFunc = succeed
	var dials atomic.Int32
	p := New(sharedClient(shared), configured, Options{Token: testToken, Dialer: fakeDialer(temp, &dials), Logger: logging.Discard()})

	res, err := p.ProbeEndpoint(context.Background(), "", 9090, false)
	require.NoError(t, err)
	assert.True(t, res.Reachable)
	assert.Equal(t, VerdictReachable, res.Verdict)
	assert.Equal(t, "127.0.0.1:9090", res.Target)

	assert.Equal(t, 1, temp.Closes())
	assert.Equal(t, 0, shared.Invokes())
	assert.Equal(t, 0, shared.Closes())
}

func TestProbeEndpointReleasesOnFailure(t *testing.T) {
	temp := testutil.NewFakeChannel(connectivity.TransientFailure)
	temp.InvokeErr = status.Error(codes.Unavailable, "connection refused")
	var dials atomic.Int32
	p := New(nil, configured, Options{Dialer: fakeDialer(temp, &dials), Logger: logging.Discard()})

	res, err := p.ProbeEndpoint(context.Background(), "10.0.0.1", 50051, true)
	require.NoError(t, err)
	assert.False(t, res.Reachable)
	assert.Equal(t, VerdictNotEstablished, res.Verdict)
	assert.Equal(t, "unreachable", res.Cause)
	assert.NotEmpty(t, res.Error)

	assert.Equal(t, 1, temp.Closes())
	assert.Equal(t, int32(1), dials.Load())
}

func TestProbeEndpointDialFailure(t *testing.T) {
	p := New(nil, configured, Options{
		Dialer: func(context.Context, rpcdial.Endpoint) (grpcclient.Channel, error) {
			return nil, errors.New("bad ca bundle")
		},
		Logger: logging.Discard(),
	})
	_, err := p.ProbeEndpoint(context.Background(), "", 9090, true)
	assert.ErrorContains(t, err, "bad ca bundle")
}

func TestProbeEndpointRejectsBadPort(t *testing.T) {
	var dials atomic.Int32
	p := New(nil, configured, Options{Dialer: fakeDialer(testutil.NewFakeChannel(connectivity.Ready), &dials), Logger: logging.Discard()})

	for _, port := range []int{0, -1, 65536} {
		_, err := p.ProbeEndpoint(context.Background(), "", port, false)
		var verr *headscale.ValidationError
		assert.ErrorAs(t, err, &verr, "port %d", port)
	}
	assert.Zero(t, dials.Load())
}

type countingChannel struct {
	grpcclient.Channel
	closes atomic.Int32
}

func (c *countingChannel) Close() error {
	c.closes.Add(1)
	return c.Channel.Close()
}

func TestProbeEndpointAgainstRealServers(t *testing.T) {
	var opened []*countingChannel
	dial := func(ctx context.Context, ep rpcdial.Endpoint) (grpcclient.Channel, error) {
		ch, err := DefaultDialer(ctx, ep)
		if err != nil {
			return nil, err
		}
		c := &countingChannel{Channel: ch}
		opened = append(opened, c)
		return c, nil
	}
	p := New(nil, configured, Options{Token: testToken, Dialer: dial, Logger: logging.Discard()})

	srv, host, port := testutil.StartRPCServer(t, "alice", "bob")
	srv.RequireToken(testToken)
	res, err := p.ProbeEndpoint(context.Background(), host, port, false)
	require.NoError(t, err)
	assert.True(t, res.Reachable, res.Error)
	assert.Equal(t, 2, res.UserCount)

	host, port = testutil.ClosedPort(t)
	res, err = p.ProbeEndpoint(context.Background(), host, port, false)
	require.NoError(t, err)
	assert.False(t, res.Reachable)

	require.Len(t, opened, 2)
	for _, c := range opened {
		assert.Equal(t, int32(1), c.closes.Load())
	}
}

func TestReportNeverContainsToken(t *testing.T) {
	shared := testutil.NewFakeChannel(connectivity.Ready)
	shared.InvokeFunc = succeed
	p := New(sharedClient(shared), configured, Options{Token: testToken, Logger: logging.Discard()})

	r := p.Report(context.Background())
	assert.True(t, r.TokenConfigured)
	require.NotNil(t, r.Probe)
	assert.Equal(t, VerdictReachable, r.Probe.Verdict)
	assert.Equal(t, "ready", r.ChannelState)

	text := r.Text()
	assert.NotContains(t, text, testToken)
	assert.Contains(t, text, "API key: ***configured***")
	assert.Contains(t, text, "Port: 50443")
	assert.Contains(t, text, "Probe: reachable")
}

func TestReportVerdictsAndHints(t *testing.T) {
	tests := []struct {
		name    string
		state   connectivity.State
		err     error
		tls     bool
		verdict Verdict
		hint    string
	}{
		{
			name:    "auth rejected",
			state:   connectivity.Ready,
			err:     status.Error(codes.Unauthenticated, "invalid token"),
			verdict: VerdictAuthRejected,
			hint:    "API key was rejected",
		},
		{
			name:    "plaintext against http port",
			state:   connectivity.TransientFailure,
			err:     status.Error(codes.Unavailable, `connection error: desc = "error reading server preface: http2: frame too large"`),
			verdict: VerdictMismatch,
			hint:    "rpc.tls=true",
		},
		{
			name:    "tls against plaintext port",
			state:   connectivity.TransientFailure,
			err:     status.Error(codes.Unavailable, "tls: first record does not look like a TLS handshake"),
			tls:     true,
			verdict: VerdictMismatch,
			hint:    "rpc.tls=false",
		},
		{
			name:    "server down",
			state:   connectivity.TransientFailure,
			err:     status.Error(codes.Unavailable, "connection refused"),
			verdict: VerdictNotEstablished,
			hint:    "grpc_listen_addr",
		},
		{
			name:    "deadline",
			state:   connectivity.Ready,
			err:     status.Error(codes.DeadlineExceeded, "deadline exceeded"),
			verdict: VerdictTimeout,
			hint:    "rpc.timeout",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := testutil.NewFakeChannel(tt.state)
			ch.InvokeErr = tt.err
			ep := configured
			ep.TLS = tt.tls
			p := New(sharedClient(ch), ep, Options{Token: testToken, Logger: logging.Discard()})

			r := p.Report(context.Background())
			require.NotNil(t, r.Probe)
			assert.Equal(t, tt.verdict, r.Probe.Verdict)
			assert.Contains(t, strings.Join(r.Hints, "\n"), tt.hint)
			assert.Contains(t, r.Text(), "Troubleshooting Suggestions")
		})
	}
}

func TestReportWithoutRPC(t *testing.T) {
	p := New(nil, configured, Options{Logger: logging.Discard()})
	r := p.Report(context.Background())

	assert.False(t, r.Configured)
	assert.False(t, r.TokenConfigured)
	assert.Nil(t, r.Probe)
	assert.Equal(t, "not configured", r.ChannelState)
	require.Len(t, r.Hints, 1)
	assert.Contains(t, r.Hints[0], "rpc.enabled")
	assert.Contains(t, r.Text(), "API key: NOT SET")
}

func TestReportSpotsRESTPort(t *testing.T) {
	ch := testutil.NewFakeChannel(connectivity.Ready)
	ch.InvokeFunc = succeed
	ep := rpcdial.Endpoint{Host: "localhost", Port: 8080}
	p := New(sharedClient(ch), ep, Options{Token: testToken, RESTURL: "http://localhost:8080", Logger: logging.Discard()})

	r := p.Report(context.Background())
	assert.Contains(t, strings.Join(r.Hints, "\n"), "is the REST port")
}

func TestCheckConnectivity(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		c := New(nil, configured, Options{Logger: logging.Discard()}).CheckConnectivity(context.Background())
		assert.False(t, c.Configured)
		assert.False(t, c.Established)
	})

	t.Run("ready", func(t *testing.T) {
		ch := testutil.NewFakeChannel(connectivity.Ready)
		c := New(sharedClient(ch), configured, Options{Logger: logging.Discard()}).CheckConnectivity(context.Background())
		assert.True(t, c.Established)
		assert.Equal(t, "ready", c.StateAfter)
		assert.Zero(t, ch.Invokes())
	})

	t.Run("never connects", func(t *testing.T) {
		ch := testutil.NewFakeChannel(connectivity.Idle)
		c := New(sharedClient(ch), configured, Options{Logger: logging.Discard()}).CheckConnectivity(context.Background())
		assert.False(t, c.Established)
		assert.Equal(t, "unestablished", c.StateBefore)
		assert.Equal(t, 1, ch.Connects())
		assert.Zero(t, ch.Invokes())
	})

	t.Run("shut down", func(t *testing.T) {
		ch := testutil.NewFakeChannel(connectivity.Ready)
		client := sharedClient(ch)
		require.NoError(t, client.Close())
		c := New(client, configured, Options{Logger: logging.Discard()}).CheckConnectivity(context.Background())
		assert.Equal(t, "shutdown", c.StateAfter)
		assert.Equal(t, 0, ch.Connects())
	})
}

func TestAlternativePorts(t *testing.T) {
	assert.Equal(t, []int{9090, 50051}, AlternativePorts(50443))
	assert.Equal(t, []int{50443, 9090, 50051}, AlternativePorts(8080))
}

func TestSuggestModes(t *testing.T) {
	failing := testutil.NewFakeChannel(connectivity.TransientFailure)
	m := New(sharedClient(failing), configured, Options{Logger: logging.Discard()}).SuggestModes(context.Background())
	assert.False(t, m.Succeeded)
	assert.Contains(t, m.Suggestions, "try port 9090")
	assert.Contains(t, m.Suggestions, "try TLS=true on port 50443")
	assert.NotContains(t, m.Suggestions, "try port 50443")
	assert.Contains(t, m.Text(), "FAILED")

	ok := testutil.NewFakeChannel(connectivity.Ready)
	ok.InvokeFunc = succeed
	m = New(sharedClient(ok), configured, Options{Logger: logging.Discard()}).SuggestModes(context.Background())
	assert.True(t, m.Succeeded)
	assert.Empty(t, m.Suggestions)
}
