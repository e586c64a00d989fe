package restclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ownding/headscale-console/internal/headscale"
)

// GetPolicy returns the ACL policy text.
//
// The "policy" field is returned verbatim when it is a string and re-encoded
// when it is an object. A JSON body without that field is returned as is.
func (c *Client) GetPolicy(ctx context.Context) (string, error) {
	body, err := c.do(ctx, "GetPolicy", http.MethodGet, "/policy", nil)
	if err != nil {
		return "", err
	}
	return extractPolicy("GetPolicy", body, "")
}

// SetPolicy validates policy as JSON and replaces the server's ACL policy.
// It returns the policy the server reports back, or the input when the
// response omits it.
func (c *Client) SetPolicy(ctx context.Context, policy string) (string, error) {
	policy, err := headscale.RequireNonBlank("policy", policy)
	if err != nil {
		return "", err
	}
	if !json.Valid([]byte(policy)) {
		return "", &headscale.ValidationError{Field: "policy", Message: "invalid JSON format"}
	}
	body, err := c.do(ctx, "SetPolicy", http.MethodPut, "/policy", map[string]string{"policy": policy})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(body)) == "" {
		return policy, nil
	}
	return extractPolicy("SetPolicy", body, policy)
}

func extractPolicy(op string, body []byte, fallback string) (string, error) {
	if !json.Valid(body) {
		return "", parseFailure(op, body, errors.New("policy response is not JSON"))
	}
	env, err := decodeEnvelope(body)
	if err != nil {
		return "", parseFailure(op, body, err)
	}
	raw, ok := present(env, "policy")
	if !ok {
		if fallback != "" {
			return fallback, nil
		}
		return strings.TrimSpace(string(body)), nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}
	return string(raw), nil
}
