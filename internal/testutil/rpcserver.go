// Package testutil provides fakes shared by package tests: a scripted
// headscale RPC server, a listener that only speaks HTTP/1.1, and a
// counting rpc channel.
package testutil

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ownding/headscale-console/internal/grpcclient"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// RPCServer is an in-memory headscale RPC server.
type RPCServer struct {
	mu           sync.Mutex
	requireToken string
	createErr    error
	users       []*grpcclient.User
	nextID      uint64
	lastAuth    string
	lastCreate  *grpcclient.CreateUserRequest
	listCalls   int
	createCalls int
}

// StartRPCServer serves a fresh RPCServer on 127.0.0.1:0. The test is
// skipped when the sandbox forbids listening.
func StartRPCServer(t *testing.T, users ...string) (*RPCServer, string, int) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("network not permitted: %v", err)
	}

	fake := &RPCServer{nextID: 1}
	for _, name := range users {
		fake.add(&grpcclient.CreateUserRequest{Name: name})
	}

	server := grpc.NewServer(grpc.ForceServerCodec(grpcclient.Codec()))
	grpcclient.RegisterHeadscaleServer(server, fake)

	go func() {
		if err := server.Serve(lis); err != nil {
			t.Logf("grpc serve exited: %v", err)
		}
	}()
	t.Cleanup(server.Stop)

	host, portStr, _ := net.SplitHostPort(lis.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return fake, host, port
}

func (s *RPCServer) authorize(ctx context.Context) error {
	var auth string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get("authorization"); len(values) > 0 {
			auth = values[0]
		}
	}
	s.mu.Lock()
	s.lastAuth = auth
	want := s.requireToken
	s.mu.Unlock()

	if want != "" && auth != "Bearer "+want {
		return status.Error(codes.Unauthenticated, "invalid token")
	}
	return nil
}

func (s *RPCServer) add(req *grpcclient.CreateUserRequest) *grpcclient.User {
	u := &grpcclient.User{
		ID:          strconv.FormatUint(s.nextID, 10),
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		CreatedAt:   timestamppb.New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	s.nextID++
	s.users = append(s.users, u)
	return u
}

func (s *RPCServer) ListUsers(ctx context.Context, _ *grpcclient.ListUsersRequest) (*grpcclient.ListUsersResponse, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	return &grpcclient.ListUsersResponse{Users: append([]*grpcclient.User(nil), s.users...)}, nil
}

func (s *RPCServer) CreateUser(ctx context.Context, req *grpcclient.CreateUserRequest) (*grpcclient.CreateUserResponse, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	s.lastCreate = req
	if s.createErr != nil {
		return nil, s.createErr
	}
	for _, u := range s.users {
		if u.Name == req.Name {
			return nil, status.Error(codes.AlreadyExists, "user already exists")
		}
	}
	return &grpcclient.CreateUserResponse{User: s.add(req)}, nil
}

// RequireToken makes every call without "Bearer <token>" fail with
// Unauthenticated.
func (s *RPCServer) RequireToken(token string) {
	s.mu.Lock()
	s.requireToken = token
	s.mu.Unlock()
}

// FailCreate makes CreateUser return err.
func (s *RPCServer) FailCreate(err error) {
	s.mu.Lock()
	s.createErr = err
	s.mu.Unlock()
}

// LastAuth returns the authorization metadata of the last call.
func (s *RPCServer) LastAuth() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth
}

// LastCreate returns the last CreateUser request.
func (s *RPCServer) LastCreate() *grpcclient.CreateUserRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCreate
}

// Calls returns how many ListUsers and CreateUser calls were served.
func (s *RPCServer) Calls() (list, create int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls, s.createCalls
}

// StartHTTPOnlyListener accepts connections and answers every one with an
// HTTP/1.1 400 response, like a REST port would answer a gRPC client.
func StartHTTPOnlyListener(t *testing.T) (string, int) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("network not permitted: %v", err)
	}
	t.Cleanup(func() { lis.Close() })

	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				_ = c.SetDeadline(time.Now().Add(2 * time.Second))
				buf := make([]byte, 1024)
				_, _ = c.Read(buf)
				_, _ = c.Write([]byte("HTTP/1.1 400 Bad Request\r\nContent-Type: text/plain; charset=utf-8\r\nConnection: close\r\n\r\n400 Bad Request"))
				time.Sleep(100 * time.Millisecond)
			}(conn)
		}
	}()

	host, portStr, _ := net.SplitHostPort(lis.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return host, port
}

// ClosedPort returns a loopback port with nothing listening on it.
func ClosedPort(t *testing.T) (string, int) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("network not permitted: %v", err)
	}
	host, portStr, _ := net.SplitHostPort(lis.Addr().String())
	port, _ := strconv.Atoi(portStr)
	lis.Close()
	return host, port
}
