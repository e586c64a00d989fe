package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ownding/headscale-console/internal/headscale"
	"github.com/ownding/headscale-console/internal/logging"
)

// ErrorResponse is the standard JSON error envelope returned by all HTTP error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse acknowledges an operation that returns no resource.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeError writes a JSON error response with the given HTTP status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeFailure maps err onto a status code and writes it.
func writeFailure(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.WithComponent("api").Warn("failed to write response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}

// statusFor maps the error taxonomy onto HTTP status codes. Upstream
// client errors other than auth failures keep their status; everything else
// from the control plane is a bad gateway.
func statusFor(err error) int {
	var (
		verr *headscale.ValidationError
		terr *headscale.TransportError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, headscale.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, headscale.ErrUserHasNodes):
		return http.StatusConflict
	case errors.Is(err, headscale.ErrCapabilityUnavailable), errors.Is(err, headscale.ErrChannelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, headscale.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.As(err, &terr) && terr.StatusCode >= 400 && terr.StatusCode < 500 &&
		terr.StatusCode != http.StatusUnauthorized && terr.StatusCode != http.StatusForbidden:
		return terr.StatusCode
	}
	return http.StatusBadGateway
}
