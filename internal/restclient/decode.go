package restclient

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/ownding/headscale-console/internal/headscale"
)

// resourceKind selects which envelope keys carry a resource.
type resourceKind int

const (
	kindUser resourceKind = iota
	kindNode
	kindPreAuthKey
)

// envelopeKeys are the single and list keys a wrapped response may use.
var envelopeKeys = map[resourceKind]struct{ one, many string }{
	kindUser:       {"user", "users"},
	kindNode:       {"node", "nodes"},
	kindPreAuthKey: {"preAuthKey", "preAuthKeys"},
}

var (
	errNoPayload   = errors.New("envelope carries no field for the expected resource")
	errNoIdentity  = errors.New("decoded record has neither id nor name")
	errNotAnObject = errors.New("body is neither a bare value nor an envelope object")
)

// identified is satisfied by pointers to records with an identity check.
type identified[T any] interface {
	*T
	HasIdentity() bool
}

// decodeOne decodes a single record. The bare shape is tried first and is
// accepted only when it yields an identity; otherwise the body is read as
// an envelope and the resource key is extracted. Anything else is a
// ParseFailure carrying the raw body.
func decodeOne[T any, PT identified[T]](op string, kind resourceKind, body []byte) (T, error) {
	var zero T

	var bare T
	if err := json.Unmarshal(body, &bare); err == nil && PT(&bare).HasIdentity() {
		return bare, nil
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		return zero, parseFailure(op, body, err)
	}
	raw, ok := present(env, envelopeKeys[kind].one)
	if !ok {
		return zero, parseFailure(op, body, errNoPayload)
	}
	var wrapped T
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return zero, parseFailure(op, body, err)
	}
	if !PT(&wrapped).HasIdentity() {
		return zero, parseFailure(op, body, errNoIdentity)
	}
	return wrapped, nil
}

// decodeList decodes a collection from either a bare array or an envelope.
// An empty object is an empty collection: the upstream gateway omits empty
// repeated fields.
func decodeList[T any](op string, kind resourceKind, body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, parseFailure(op, body, err)
		}
		return nonNil(items), nil
	}

	env, err := decodeEnvelope(trimmed)
	if err != nil {
		return nil, parseFailure(op, body, err)
	}
	if len(env) == 0 {
		return []T{}, nil
	}
	raw, ok := present(env, envelopeKeys[kind].many)
	if !ok {
		if _, exists := env[envelopeKeys[kind].many]; exists {
			return []T{}, nil // explicit null
		}
		return nil, parseFailure(op, body, errNoPayload)
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, parseFailure(op, body, err)
	}
	return nonNil(items), nil
}

func decodeEnvelope(body []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errNotAnObject
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, err
	}
	return env, nil
}

// present returns the raw value for key when it exists and is not null.
func present(env map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := env[key]
	if !ok {
		return nil, false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}
	return raw, true
}

func parseFailure(op string, body []byte, err error) *headscale.ParseFailure {
	return &headscale.ParseFailure{Op: op, Body: string(body), Err: err}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
