package grpcclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Cause
	}{
		{"refused", status.Error(codes.Unavailable, `connection error: desc = "transport: Error while dialing: dial tcp 127.0.0.1:1: connect: connection refused"`), CauseUnreachable},
		{"dns", status.Error(codes.Unavailable, `dial tcp: lookup nowhere: no such host`), CauseUnreachable},
		{"http on grpc port", status.Error(codes.Unavailable, `connection error: desc = "error reading server preface: http2: frame too large"`), CauseProtocolMismatch},
		{"tls to plaintext", status.Error(codes.Unavailable, `connection error: desc = "transport: authentication handshake failed: EOF"`), CauseProtocolMismatch},
		{"html answer", status.Error(codes.Unknown, `unexpected HTTP status code received from server: 200 (OK); transport: received unexpected content-type "text/html"`), CauseProtocolMismatch},
		{"unknown service", status.Error(codes.Unimplemented, `unknown service headscale.v1.HeadscaleService`), CauseProtocolMismatch},
		{"cancelled", status.Error(codes.Canceled, `context canceled`), CauseProtocolMismatch},
		{"bad token", status.Error(codes.Unauthenticated, `invalid token`), CauseUnauthenticated},
		{"forbidden", status.Error(codes.PermissionDenied, `nope`), CauseUnauthenticated},
		{"deadline", status.Error(codes.DeadlineExceeded, `context deadline exceeded`), CauseTimeout},
		{"raw deadline", context.DeadlineExceeded, CauseTimeout},
		{"other", status.Error(codes.AlreadyExists, `user exists`), CauseUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("ListUsers", tt.err)
			assert.Equal(t, tt.want, CauseOf(err), err.Error())
		})
	}
}

func TestRPCErrorKeepsStatus(t *testing.T) {
	err := classify("CreateUser", status.Error(codes.Unauthenticated, "invalid token"))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Contains(t, err.Error(), "CreateUser")
	assert.Contains(t, err.Error(), "invalid token")

	plain := errors.New("plain")
	assert.Same(t, plain, classify("x", plain))
	assert.Nil(t, classify("x", nil))
}
