package hybrid

import (
	"context"

	"github.com/ownding/headscale-console/internal/headscale"
	"github.com/stretchr/testify/mock"
)

type mockREST struct {
	mock.Mock
}

func (m *mockREST) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockREST) ListUsers(ctx context.Context) ([]headscale.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]headscale.User)
	return users, args.Error(1)
}

func (m *mockREST) CreateUser(ctx context.Context, name string) (headscale.User, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(headscale.User), args.Error(1)
}

func (m *mockREST) GetUserByName(ctx context.Context, name string) (headscale.User, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(headscale.User), args.Error(1)
}

func (m *mockREST) DeleteUser(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockREST) DeleteUserSafely(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockREST) UserHasNodes(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *mockREST) CanDeleteUser(ctx context.Context, name string) (bool, string, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.String(1), args.Error(2)
}

func (m *mockREST) ListNodes(ctx context.Context) ([]headscale.Node, error) {
	args := m.Called(ctx)
	nodes, _ := args.Get(0).([]headscale.Node)
	return nodes, args.Error(1)
}

func (m *mockREST) ListNodesByUser(ctx context.Context, name string) ([]headscale.Node, error) {
	args := m.Called(ctx, name)
	nodes, _ := args.Get(0).([]headscale.Node)
	return nodes, args.Error(1)
}

func (m *mockREST) GetNode(ctx context.Context, id string) (headscale.Node, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(headscale.Node), args.Error(1)
}

func (m *mockREST) DeleteNode(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockREST) NodeStatus(ctx context.Context) (headscale.NodeSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(headscale.NodeSummary), args.Error(1)
}

func (m *mockREST) ListPreAuthKeys(ctx context.Context, name string) ([]headscale.PreAuthKey, error) {
	args := m.Called(ctx, name)
	keys, _ := args.Get(0).([]headscale.PreAuthKey)
	return keys, args.Error(1)
}

func (m *mockREST) CreatePreAuthKey(ctx context.Context, name string, opts headscale.PreAuthKeyOptions) (headscale.PreAuthKey, error) {
	args := m.Called(ctx, name, opts)
	return args.Get(0).(headscale.PreAuthKey), args.Error(1)
}

func (m *mockREST) GetPolicy(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockREST) SetPolicy(ctx context.Context, policy string) (string, error) {
	args := m.Called(ctx, policy)
	return args.String(0), args.Error(1)
}

type mockRPC struct {
	mock.Mock
}

func (m *mockRPC) Available(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *mockRPC) CreateUser(ctx context.Context, name, displayName string) (headscale.User, error) {
	args := m.Called(ctx, name, displayName)
	return args.Get(0).(headscale.User), args.Error(1)
}

func (m *mockRPC) CreateNamespace(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}
