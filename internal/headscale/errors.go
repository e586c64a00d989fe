package headscale

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound marks a resource the control plane does not know about.
	ErrNotFound = errors.New("resource not found")
	// ErrUserHasNodes marks a user that cannot be deleted because devices are still attached.
	ErrUserHasNodes = errors.New("user still has nodes attached; delete all devices before deleting the user")
	// ErrChannelUnavailable is matched by every *ChannelUnavailableError.
	ErrChannelUnavailable = errors.New("rpc channel unavailable")
	// ErrNotImplemented marks an operation the RPC transport does not support.
	ErrNotImplemented = errors.New("operation not implemented on the rpc transport")
	// ErrCapabilityUnavailable is matched by every *CapabilityUnavailableError.
	ErrCapabilityUnavailable = errors.New("required transport unavailable")
)

// ValidationError reports blank or malformed input caught before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Blank returns a ValidationError for an empty required field.
func Blank(field string) error {
	return &ValidationError{Field: field, Message: "cannot be blank"}
}

// RequireNonBlank trims value and fails when nothing is left.
func RequireNonBlank(field, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", Blank(field)
	}
	return trimmed, nil
}

// TransportError is a non-success response from the REST transport.
//
// Message holds a refined, human readable explanation when the body matched
// one of the known patterns, otherwise the raw status line. Kind is set by
// that same best-effort match and is what errors.Is sees; callers should
// treat it as advisory because the upstream error format is undocumented.
type TransportError struct {
	Op         string
	StatusCode int
	Status     string
	Message    string
	Body       string
	Kind       error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Status
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *TransportError) Unwrap() error { return e.Kind }

// ParseFailure reports a response body that matched none of the known shapes.
type ParseFailure struct {
	Op   string
	Body string
	Err  error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("%s: unrecognized response shape: %v", e.Op, e.Err)
}

func (e *ParseFailure) Unwrap() error { return e.Err }

// ChannelUnavailableError is returned when an RPC is issued while the
// connection handle is not ready.
type ChannelUnavailableError struct {
	Op    string
	State string
}

func (e *ChannelUnavailableError) Error() string {
	return fmt.Sprintf("%s: rpc channel unavailable (state %s)", e.Op, e.State)
}

func (e *ChannelUnavailableError) Is(target error) bool { return target == ErrChannelUnavailable }

// NotImplemented wraps ErrNotImplemented with the operation name.
func NotImplemented(op string) error {
	return fmt.Errorf("%s: %w", op, ErrNotImplemented)
}

// CapabilityUnavailableError is returned when an operation can only be served
// by a transport that is currently down.
type CapabilityUnavailableError struct {
	Op        string
	Transport string
	Cause     error
}

func (e *CapabilityUnavailableError) Error() string {
	msg := fmt.Sprintf("%s requires the %s transport, which is unavailable", e.Op, e.Transport)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *CapabilityUnavailableError) Is(target error) bool { return target == ErrCapabilityUnavailable }

func (e *CapabilityUnavailableError) Unwrap() error { return e.Cause }
