package grpcclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ownding/headscale-console/internal/constants"
	"github.com/ownding/headscale-console/internal/headscale"
	"github.com/ownding/headscale-console/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
)

// State is the observable lifecycle state of a Handle.
type State int

const (
	StateUnestablished State = iota
	StateConnecting
	StateReady
	StateTransientFailure
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateUnestablished:
		return "unestablished"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateTransientFailure:
		return "transient-failure"
	case StateShutdown:
		return "shutdown"
	}
	return "unknown"
}

func stateFrom(cs connectivity.State) State {
	switch cs {
	case connectivity.Connecting:
		return StateConnecting
	case connectivity.Ready:
		return StateReady
	case connectivity.TransientFailure:
		return StateTransientFailure
	case connectivity.Shutdown:
		return StateShutdown
	}
	return StateUnestablished
}

// ErrReleaseAbandoned is returned by Release when the channel did not close
// within the grace period.
var ErrReleaseAbandoned = errors.New("rpc channel release abandoned after grace period")

// Channel is the subset of *grpc.ClientConn a Handle needs.
type Channel interface {
	grpc.ClientConnInterface
	GetState() connectivity.State
	Connect()
	WaitForStateChange(ctx context.Context, source connectivity.State) bool
	Close() error
}

// Handle owns one long-lived channel. It is safe for concurrent use; only
// Release mutates it, and Release runs at most once.
type Handle struct {
	ch     Channel
	target string
	grace  time.Duration
	log    *logging.Logger

	released    atomic.Bool
	releaseOnce sync.Once
	releaseErr  error
}

// NewHandle wraps ch. A non-positive grace uses the default.
func NewHandle(ch Channel, target string, grace time.Duration, log *logging.Logger) *Handle {
	if grace <= 0 {
		grace = constants.RPCReleaseGrace
	}
	if log == nil {
		log = logging.WithComponent("rpc")
	}
	return &Handle{ch: ch, target: target, grace: grace, log: log}
}

// Target returns the dialed address.
func (h *Handle) Target() string {
	return h.target
}

// State reports the current state without triggering a connection.
func (h *Handle) State() State {
	if h == nil || h.ch == nil {
		return StateUnestablished
	}
	if h.released.Load() {
		return StateShutdown
	}
	return stateFrom(h.ch.GetState())
}

// Establish asks the channel to connect and waits until it is ready, has
// failed, or ctx is done. It returns the state it stopped in.
func (h *Handle) Establish(ctx context.Context) State {
	if h == nil || h.ch == nil {
		return StateUnestablished
	}
	if h.released.Load() {
		return StateShutdown
	}
	cs := h.ch.GetState()
	if cs == connectivity.Idle {
		h.ch.Connect()
	}
	for {
		cs = h.ch.GetState()
		switch cs {
		case connectivity.Ready, connectivity.TransientFailure, connectivity.Shutdown:
			return stateFrom(cs)
		}
		if !h.ch.WaitForStateChange(ctx, cs) {
			return h.State()
		}
	}
}

// requireReady fails with a ChannelUnavailableError unless the handle is ready.
func (h *Handle) requireReady(op string) error {
	if s := h.State(); s != StateReady {
		return &headscale.ChannelUnavailableError{Op: op, State: s.String()}
	}
	return nil
}

// Release closes the channel once. If Close does not return within the
// grace period the release is abandoned and ErrReleaseAbandoned returned;
// later calls return the first result.
func (h *Handle) Release() error {
	if h == nil || h.ch == nil {
		return nil
	}
	h.releaseOnce.Do(func() {
		h.released.Store(true)
		done := make(chan error, 1)
		go func() { done <- h.ch.Close() }()

		timer := time.NewTimer(h.grace)
		defer timer.Stop()
		select {
		case err := <-done:
			h.releaseErr = err
			h.log.Info("rpc channel released", "target", h.target)
		case <-timer.C:
			h.releaseErr = ErrReleaseAbandoned
			h.log.Warn("rpc channel release abandoned", "target", h.target, "grace", h.grace)
		}
	})
	return h.releaseErr
}
