package hybrid

import (
	"context"
	"errors"
	"testing"

	"github.com/ownding/headscale-console/internal/grpcclient"
	"github.com/ownding/headscale-console/internal/headscale"
	"github.com/ownding/headscale-console/internal/logging"
	"github.com/ownding/headscale-console/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var anyCtx = mock.Anything

func newService(rest *mockREST, rpc RPCBackend) (*Service, *metrics.Registry) {
	reg := metrics.New()
	return New(rest, rpc, WithLogger(logging.Discard()), WithMetrics(reg)), reg
}

func TestCreateUserWithoutDisplayNameNeverTouchesRPC(t *testing.T) {
	rest, rpc := &mockREST{}, &mockRPC{}
	rest.On("CreateUser", anyCtx, "alice").Return(headscale.User{ID: "1", Name: "alice"}, nil)
	svc, _ := newService(rest, rpc)

	for _, display := range []string{"", "   "} {
		u, err := svc.CreateUser(context.Background(), "alice", display)
		require.NoError(t, err)
		assert.Equal(t, "alice", u.Name)
	}

	rest.AssertNumberOfCalls(t, "CreateUser", 2)
	rpc.AssertNotCalled(t, "Available", anyCtx)
	rpc.AssertNotCalled(t, "CreateUser", anyCtx, mock.Anything, mock.Anything)
}

func TestCreateUserWithDisplayNameUsesRPC(t *testing.T) {
	rest, rpc := &mockREST{}, &mockRPC{}
	rpc.On("Available", anyCtx).Return(true)
	rpc.On("CreateUser", anyCtx, "alice", "Alice A").Return(headscale.User{ID: "1", Name: "alice", DisplayName: "Alice A"}, nil)
	svc, _ := newService(rest, rpc)

	u, err := svc.CreateUser(context.Background(), "alice", " Alice A ")
	require.NoError(t, err)
	assert.Equal(t, "Alice A", u.DisplayName)

	rpc.AssertNumberOfCalls(t, "CreateUser", 1)
	rest.AssertNotCalled(t, "CreateUser", anyCtx, mock.Anything)
}

func TestCreateUserFallsBackOnAnyRPCError(t *testing.T) {
	failures := map[string]error{
		"unreachable":         &grpcclient.RPCError{Op: "CreateUser", Code: codes.Unavailable, Cause: grpcclient.CauseUnreachable, Detail: "connection refused"},
		"channel-unavailable": &headscale.ChannelUnavailableError{Op: "CreateUser", State: "connecting"},
		"unknown":             errors.New("boom"),
	}
	for reason, rpcErr := range failures {
		t.Run(reason, func(t *testing.T) {
			rest, rpc := &mockREST{}, &mockRPC{}
			rpc.On("Available", anyCtx).Return(true)
			rpc.On("CreateUser", anyCtx, "alice", "Alice").Return(headscale.User{}, rpcErr)
			rest.On("CreateUser", anyCtx, "alice").Return(headscale.User{ID: "9", Name: "alice"}, nil)
			svc, reg := newService(rest, rpc)

			u, err := svc.CreateUser(context.Background(), "alice", "Alice")
			require.NoError(t, err)
			assert.Equal(t, headscale.ID("9"), u.ID)
			assert.Empty(t, u.DisplayName)

			rpc.AssertNumberOfCalls(t, "CreateUser", 1)
			rest.AssertNumberOfCalls(t, "CreateUser", 1)
			assert.Equal(t, 1.0, testutil.ToFloat64(reg.Fallbacks.WithLabelValues("CreateUser", reason)))
		})
	}
}

func TestCreateUserSkipsUnavailableRPC(t *testing.T) {
	rest, rpc := &mockREST{}, &mockRPC{}
	rpc.On("Available", anyCtx).Return(false)
	rest.On("CreateUser", anyCtx, "alice").Return(headscale.User{ID: "1", Name: "alice"}, nil)
	svc, reg := newService(rest, rpc)

	u, err := svc.CreateUser(context.Background(), "alice", "Alice")
	require.NoError(t, err)
	assert.Empty(t, u.DisplayName)
	rpc.AssertNotCalled(t, "CreateUser", anyCtx, mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Fallbacks.WithLabelValues("CreateUser", "unavailable")))
}

func TestCreateUserWithoutRPCBackend(t *testing.T) {
	rest := &mockREST{}
	rest.On("CreateUser", anyCtx, "alice").Return(headscale.User{Name: "alice"}, nil)
	svc, _ := newService(rest, nil)

	_, err := svc.CreateUser(context.Background(), "alice", "Alice")
	require.NoError(t, err)
	assert.False(t, svc.RPCConfigured())
}

func TestCreateUserRESTFailureSurfaces(t *testing.T) {
	rest, rpc := &mockREST{}, &mockRPC{}
	rpc.On("Available", anyCtx).Return(true)
	rpc.On("CreateUser", anyCtx, "alice", "Alice").Return(headscale.User{}, errors.New("rpc down"))
	restErr := &headscale.TransportError{Op: "CreateUser", StatusCode: 500, Status: "500 Internal Server Error"}
	rest.On("CreateUser", anyCtx, "alice").Return(headscale.User{}, restErr)
	svc, _ := newService(rest, rpc)

	_, err := svc.CreateUser(context.Background(), "alice", "Alice")
	assert.ErrorIs(t, err, error(restErr))
}

func TestCreateUserBlankName(t *testing.T) {
	rest, rpc := &mockREST{}, &mockRPC{}
	svc, _ := newService(rest, rpc)

	_, err := svc.CreateUser(context.Background(), " ", "Alice")
	var verr *headscale.ValidationError
	require.ErrorAs(t, err, &verr)
	rest.AssertNotCalled(t, "CreateUser", anyCtx, mock.Anything)
	rpc.AssertNotCalled(t, "Available", anyCtx)
}

func TestCreateNamespaceRequiresRPC(t *testing.T) {
	t.Run("unavailable", func(t *testing.T) {
		rest, rpc := &mockREST{}, &mockRPC{}
		rpc.On("Available", anyCtx).Return(false)
		svc, _ := newService(rest, rpc)

		err := svc.CreateNamespace(context.Background(), "team")
		require.ErrorIs(t, err, headscale.ErrCapabilityUnavailable)
		assert.Contains(t, err.Error(), "requires the rpc transport, which is unavailable")
		rpc.AssertNotCalled(t, "CreateNamespace", anyCtx, mock.Anything)
		assert.Empty(t, rest.Calls)
	})

	t.Run("not configured", func(t *testing.T) {
		rest := &mockREST{}
		svc, _ := newService(rest, nil)
		assert.ErrorIs(t, svc.CreateNamespace(context.Background(), "team"), headscale.ErrCapabilityUnavailable)
		assert.Empty(t, rest.Calls)
	})

	t.Run("channel dropped mid-call", func(t *testing.T) {
		rest, rpc := &mockREST{}, &mockRPC{}
		rpc.On("Available", anyCtx).Return(true)
		rpc.On("CreateNamespace", anyCtx, "team").Return(&headscale.ChannelUnavailableError{Op: "CreateNamespace", State: "transient-failure"})
		svc, _ := newService(rest, rpc)

		err := svc.CreateNamespace(context.Background(), "team")
		assert.ErrorIs(t, err, headscale.ErrCapabilityUnavailable)
		assert.ErrorIs(t, err, headscale.ErrChannelUnavailable)
	})

	t.Run("rpc error surfaces", func(t *testing.T) {
		rest, rpc := &mockREST{}, &mockRPC{}
		rpc.On("Available", anyCtx).Return(true)
		rpcErr := status.Error(codes.AlreadyExists, "exists")
		rpc.On("CreateNamespace", anyCtx, "team").Return(rpcErr)
		svc, _ := newService(rest, rpc)

		err := svc.CreateNamespace(context.Background(), "team")
		assert.Equal(t, codes.AlreadyExists, status.Code(err))
		assert.Empty(t, rest.Calls)
	})

	t.Run("success", func(t *testing.T) {
		rest, rpc := &mockREST{}, &mockRPC{}
		rpc.On("Available", anyCtx).Return(true)
		rpc.On("CreateNamespace", anyCtx, "team").Return(nil)
		svc, _ := newService(rest, rpc)

		require.NoError(t, svc.CreateNamespace(context.Background(), "team"))
		rpc.AssertExpectations(t)
	})
}

func TestRESTOperationsNeverConsultRPC(t *testing.T) {
	rest, rpc := &mockREST{}, &mockRPC{}
	ctx := context.Background()
	rest.On("ListUsers", anyCtx).Return([]headscale.User{{Name: "alice"}}, nil)
	rest.On("GetUserByName", anyCtx, "alice").Return(headscale.User{Name: "alice"}, nil)
	rest.On("DeleteUser", anyCtx, "alice").Return(nil)
	rest.On("DeleteUserSafely", anyCtx, "alice").Return(nil)
	rest.On("UserHasNodes", anyCtx, "alice").Return(false, nil)
	rest.On("CanDeleteUser", anyCtx, "alice").Return(true, "", nil)
	rest.On("ListNodes", anyCtx).Return([]headscale.Node{}, nil)
	rest.On("ListNodesByUser", anyCtx, "alice").Return([]headscale.Node{}, nil)
	rest.On("GetNode", anyCtx, "1").Return(headscale.Node{ID: "1"}, nil)
	rest.On("DeleteNode", anyCtx, "1").Return(nil)
	rest.On("NodeStatus", anyCtx).Return(headscale.NodeSummary{}, nil)
	rest.On("ListPreAuthKeys", anyCtx, "alice").Return([]headscale.PreAuthKey{}, nil)
	rest.On("CreatePreAuthKey", anyCtx, "alice", headscale.PreAuthKeyOptions{Reusable: true}).Return(headscale.PreAuthKey{Key: "k"}, nil)
	rest.On("GetPolicy", anyCtx).Return("{}", nil)
	rest.On("SetPolicy", anyCtx, "{}").Return("{}", nil)
	svc, _ := newService(rest, rpc)

	_, _ = svc.ListUsers(ctx)
	_, _ = svc.GetUserByName(ctx, "alice")
	_ = svc.DeleteUser(ctx, "alice")
	_ = svc.DeleteUserSafely(ctx, "alice")
	_, _ = svc.UserHasNodes(ctx, "alice")
	_, _, _ = svc.CanDeleteUser(ctx, "alice")
	_, _ = svc.ListNodes(ctx)
	_, _ = svc.ListNodesByUser(ctx, "alice")
	_, _ = svc.GetNode(ctx, "1")
	_ = svc.DeleteNode(ctx, "1")
	_, _ = svc.NodeStatus(ctx)
	_, _ = svc.ListPreAuthKeys(ctx, "alice")
	_, _ = svc.CreatePreAuthKey(ctx, "alice", headscale.PreAuthKeyOptions{Reusable: true})
	_, _ = svc.GetPolicy(ctx)
	_, _ = svc.SetPolicy(ctx, "{}")

	rest.AssertExpectations(t)
	assert.Empty(t, rpc.Calls)
}
