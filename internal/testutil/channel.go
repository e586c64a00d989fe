package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/status"
)

// FakeChannel is a grpcclient.Channel that never touches the network.
// Invoke fails with Unavailable unless InvokeErr or InvokeFunc overrides it.
type FakeChannel struct {
	mu         sync.Mutex
	state      connectivity.State
	InvokeErr  error
	InvokeFunc func(method string, reply any) error
	// CloseBlock, when non-nil, makes Close wait until it is closed.
	CloseBlock chan struct{}

	invokes  atomic.Int32
	closes   atomic.Int32
	connects atomic.Int32
}

// NewFakeChannel returns a channel in the given state.
func NewFakeChannel(state connectivity.State) *FakeChannel {
	return &FakeChannel{state: state}
}

func (f *FakeChannel) Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error {
	f.invokes.Add(1)
	if f.InvokeFunc != nil {
		return f.InvokeFunc(method, reply)
	}
	if f.InvokeErr != nil {
		return f.InvokeErr
	}
	return status.Error(codes.Unavailable, "fake channel")
}

func (f *FakeChannel) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("fake channel: streams not supported")
}

func (f *FakeChannel) GetState() connectivity.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SetState changes the reported state.
func (f *FakeChannel) SetState(s connectivity.State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *FakeChannel) Connect() {
	f.connects.Add(1)
}

// WaitForStateChange never observes a change; it returns false when ctx ends.
func (f *FakeChannel) WaitForStateChange(ctx context.Context, source connectivity.State) bool {
	if f.GetState() != source {
		return true
	}
	<-ctx.Done()
	return false
}

func (f *FakeChannel) Close() error {
	f.closes.Add(1)
	if f.CloseBlock != nil {
		<-f.CloseBlock
	}
	f.SetState(connectivity.Shutdown)
	return nil
}

// Invokes returns how many calls reached the channel.
func (f *FakeChannel) Invokes() int { return int(f.invokes.Load()) }

// Closes returns how many times Close was called.
func (f *FakeChannel) Closes() int { return int(f.closes.Load()) }

// Connects returns how many times Connect was called.
func (f *FakeChannel) Connects() int { return int(f.connects.Load()) }
