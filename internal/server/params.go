package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ownding/headscale-console/internal/constants"
	"github.com/ownding/headscale-console/internal/headscale"
)

// params holds request parameters from the query string, a form body or
// a flat JSON object body. JSON values win over query values.
type params map[string]string

func readParams(r *http.Request) (params, error) {
	p := params{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") && r.Body != nil {
		var raw map[string]any
		dec := json.NewDecoder(io.LimitReader(r.Body, constants.MaxRequestBody))
		if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, &headscale.ValidationError{Message: fmt.Sprintf("invalid JSON payload: %v", err)}
		}
		for k, v := range raw {
			p[k] = flatten(v)
		}
	}
	if err := r.ParseForm(); err != nil {
		return nil, &headscale.ValidationError{Message: fmt.Sprintf("invalid form: %v", err)}
	}
	for k := range r.Form {
		if _, ok := p[k]; !ok {
			p[k] = r.Form.Get(k)
		}
	}
	return p, nil
}

func flatten(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, flatten(item))
		}
		return strings.Join(parts, ",")
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// first returns the first non-blank value among keys.
func (p params) first(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(p[k]); v != "" {
			return v
		}
	}
	return ""
}

func (p params) flag(key string) (bool, error) {
	v := strings.TrimSpace(p[key])
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &headscale.ValidationError{Field: key, Message: "must be true or false"}
	}
	return b, nil
}

func (p params) number(key string) (int, error) {
	v := strings.TrimSpace(p[key])
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &headscale.ValidationError{Field: key, Message: "must be an integer"}
	}
	return n, nil
}

// list splits a comma separated value, dropping blanks.
func (p params) list(key string) []string {
	var out []string
	for _, part := range strings.Split(p[key], ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// expiration accepts an RFC 3339 timestamp or a Go duration relative to now.
func (p params) expiration(key string, now time.Time) (time.Time, error) {
	v := strings.TrimSpace(p[key])
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return now.Add(d), nil
	}
	return time.Time{}, &headscale.ValidationError{Field: key, Message: "must be an RFC 3339 time or a positive duration"}
}

func preAuthKeyOptions(p params, now time.Time) (headscale.PreAuthKeyOptions, error) {
	var (
		opts headscale.PreAuthKeyOptions
		err  error
	)
	if opts.Reusable, err = p.flag("reusable"); err != nil {
		return opts, err
	}
	if opts.Ephemeral, err = p.flag("ephemeral"); err != nil {
		return opts, err
	}
	if opts.Expiration, err = p.expiration("expiration", now); err != nil {
		return opts, err
	}
	opts.ACLTags = p.list("aclTags")
	return opts, nil
}

// readBody returns the raw request body, which may be a bare policy
// document or a JSON object with a "policy" string field.
func readBody(r *http.Request) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, constants.MaxRequestBody))
	if err != nil {
		return "", &headscale.ValidationError{Message: fmt.Sprintf("read body: %v", err)}
	}
	var wrapped struct {
		Policy *string `json:"policy"`
	}
	if json.Unmarshal(raw, &wrapped) == nil && wrapped.Policy != nil {
		return *wrapped.Policy, nil
	}
	return string(raw), nil
}
