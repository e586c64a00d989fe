package grpcclient

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// Codec returns the codec for the headscale.v1 messages. Servers serving
// these messages must install it with grpc.ForceServerCodec.
func Codec() encoding.Codec { return wireCodec{} }

// HeadscaleServer is the server side of the subset of
// headscale.v1.HeadscaleService used by the console.
type HeadscaleServer interface {
	ListUsers(context.Context, *ListUsersRequest) (*ListUsersResponse, error)
	CreateUser(context.Context, *CreateUserRequest) (*CreateUserResponse, error)
}

// RegisterHeadscaleServer registers srv on s.
func RegisterHeadscaleServer(s grpc.ServiceRegistrar, srv HeadscaleServer) {
	s.RegisterService(&headscaleServiceDesc, srv)
}

func listUsersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListUsersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HeadscaleServer).ListUsers(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListUsers}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HeadscaleServer).ListUsers(ctx, req.(*ListUsersRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func createUserHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateUserRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HeadscaleServer).CreateUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodCreateUser}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HeadscaleServer).CreateUser(ctx, req.(*CreateUserRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var headscaleServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HeadscaleServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListUsers", Handler: listUsersHandler},
		{MethodName: "CreateUser", Handler: createUserHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "headscale/v1/headscale.proto",
}
