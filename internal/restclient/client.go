// Package restclient is the JSON request/response transport to the headscale
// API (/api/v1). Every call is a single synchronous round trip bounded by the
// configured timeout and the caller's context; nothing is cached.
//
// The downstream API addresses users by id only, so every by-name operation
// lists all users and scans for the name first. That is an O(n) join on each
// call and is accepted as a known cost.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ownding/headscale-console/internal/constants"
	"github.com/ownding/headscale-console/internal/headscale"
	"github.com/ownding/headscale-console/internal/logging"
	"github.com/ownding/headscale-console/internal/metrics"
	"github.com/ownding/headscale-console/internal/version"
)

const apiPrefix = "/api/v1"

// Client talks to the headscale REST API.
type Client struct {
	client  *http.Client
	baseURL string
	token   string
	log     *logging.Logger
	metrics *metrics.Registry
}

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the HTTP round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.client.Transport = rt
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics sets the metrics registry. A nil registry disables metrics.
func WithMetrics(m *metrics.Registry) Option {
	return func(c *Client) { c.metrics = m }
}

// New builds a client for baseURL. A non-positive timeout uses the default.
func New(baseURL, token string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = constants.RESTDefaultTimeout
	}
	c := &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		log:     logging.WithComponent("rest"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the base HTTP URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HasToken reports whether a bearer credential is configured.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// Ping issues the cheapest authenticated call (list users) and reports
// whether it succeeded.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListUsers(ctx)
	return err
}

// do executes one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, op, method, path string, payload any) (body []byte, err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveCall(metrics.TransportREST, op, start, err) }()

	var reader io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.addAuth(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, constants.MaxErrorBody))
		terr := newTransportError(op, resp, errBody)
		c.log.Debug("request failed", "op", op, "status", resp.StatusCode, "body", string(errBody))
		return nil, terr
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, constants.MaxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}
	c.log.Debug("response", "op", op, "status", resp.StatusCode, "body", string(body))
	return body, nil
}

func (c *Client) addAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// newTransportError builds a TransportError from a non-success response.
//
// The classification is a best-effort match on the body text; the upstream
// error format is undocumented and may change.
func newTransportError(op string, resp *http.Response, body []byte) *headscale.TransportError {
	trimmed := strings.TrimSpace(string(body))
	terr := &headscale.TransportError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Message:    resp.Status,
		Body:       trimmed,
	}

	detail := errorDetail(trimmed)
	lower := strings.ToLower(trimmed)
	switch {
	case strings.Contains(lower, "node(s) found") || strings.Contains(lower, "not empty"):
		terr.Kind = headscale.ErrUserHasNodes
		terr.Message = headscale.ErrUserHasNodes.Error()
	case strings.Contains(lower, "not found"):
		terr.Kind = headscale.ErrNotFound
		terr.Message = "not found: " + detail
	case resp.StatusCode == http.StatusNotFound:
		terr.Kind = headscale.ErrNotFound
		if detail != "" {
			terr.Message = resp.Status + ": " + detail
		}
	case detail != "":
		terr.Message = resp.Status + ": " + detail
	}
	return terr
}

// errorDetail extracts "message" or "error" from a JSON error body, falling
// back to the raw text.
func errorDetail(body string) string {
	if body == "" {
		return ""
	}
	if strings.HasPrefix(body, "{") {
		var payload struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal([]byte(body), &payload); err == nil {
			if msg := strings.TrimSpace(payload.Message); msg != "" {
				return msg
			}
			if msg := strings.TrimSpace(payload.Error); msg != "" {
				return msg
			}
		}
	}
	return body
}

// isNotFound reports whether err carries the not-found classification.
func isNotFound(err error) bool {
	return errors.Is(err, headscale.ErrNotFound)
}
