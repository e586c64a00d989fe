package grpcclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Cause is the diagnostic class of an RPC failure.
type Cause string

const (
	CauseUnreachable      Cause = "unreachable"
	CauseUnauthenticated  Cause = "unauthenticated"
	CauseProtocolMismatch Cause = "protocol-mismatch"
	CauseTimeout          Cause = "timeout"
	CauseUnknown          Cause = "unknown"
)

// Describe returns the operator-facing explanation of the cause.
func (c Cause) Describe() string {
	switch c {
	case CauseUnreachable:
		return "rpc service unreachable: check that headscale is running and the host and port are correct"
	case CauseUnauthenticated:
		return "authentication rejected: check the API key"
	case CauseProtocolMismatch:
		return "likely protocol mismatch: the port may serve HTTP instead of gRPC, or the TLS setting does not match the server"
	case CauseTimeout:
		return "rpc call timed out"
	}
	return "rpc call failed"
}

// RPCError is a classified failure from the RPC transport.
type RPCError struct {
	Op     string
	Code   codes.Code
	Cause  Cause
	Detail string
}

func (e *RPCError) Error() string {
	msg := fmt.Sprintf("%s: %s (%s)", e.Op, e.Cause.Describe(), e.Code)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// GRPCStatus lets status.Code and status.FromError see through the wrapper.
func (e *RPCError) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Detail)
}

// mismatchMarkers appear in connection errors when the peer does not speak
// gRPC with the expected transport security.
var mismatchMarkers = []string{
	"server preface",
	"frame too large",
	"http2",
	"content-type",
	"handshake",
	"first record does not look like a tls handshake",
	"eof",
}

// classify maps a call error onto a Cause. Errors that are not gRPC
// statuses pass through unchanged.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return &RPCError{Op: op, Code: codes.DeadlineExceeded, Cause: CauseTimeout, Detail: err.Error()}
		case errors.Is(err, context.Canceled):
			return &RPCError{Op: op, Code: codes.Canceled, Cause: CauseProtocolMismatch, Detail: err.Error()}
		}
		return err
	}

	e := &RPCError{Op: op, Code: st.Code(), Detail: st.Message()}
	lower := strings.ToLower(st.Message())
	switch {
	case st.Code() == codes.Unauthenticated || st.Code() == codes.PermissionDenied:
		e.Cause = CauseUnauthenticated
	case st.Code() == codes.DeadlineExceeded:
		e.Cause = CauseTimeout
	case st.Code() == codes.Canceled:
		// A cancelled call with no caller-side cancellation is what a
		// certificate or protocol mismatch looks like from this side.
		e.Cause = CauseProtocolMismatch
	case containsAny(lower, mismatchMarkers):
		e.Cause = CauseProtocolMismatch
	case st.Code() == codes.Unimplemented:
		e.Cause = CauseProtocolMismatch
	case st.Code() == codes.Unavailable:
		e.Cause = CauseUnreachable
	default:
		e.Cause = CauseUnknown
	}
	return e
}

// CauseOf extracts the Cause from err, or CauseUnknown.
func CauseOf(err error) Cause {
	var rerr *RPCError
	if errors.As(err, &rerr) {
		return rerr.Cause
	}
	return CauseUnknown
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
