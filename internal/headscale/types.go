// Package headscale holds the resource records exchanged with a headscale
// control plane and the error vocabulary shared by both transports.
//
// Records are plain values rebuilt from every response; nothing here is
// cached or owned beyond a single call.
package headscale

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID is a resource identifier. Older servers send identifiers as JSON
// strings, newer ones as numbers; both decode to the same value.
type ID string

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("headscale: id is neither string nor number: %s", data)
	}
	*id = ID(n.String())
	return nil
}

// FromUint64 formats a numeric identifier.
func FromUint64(v uint64) ID {
	return ID(strconv.FormatUint(v, 10))
}

func (id ID) String() string { return string(id) }

// User is a headscale user (formerly "namespace").
type User struct {
	ID            ID     `json:"id"`
	Name          string `json:"name"`
	DisplayName   string `json:"displayName,omitempty"`
	Email         string `json:"email,omitempty"`
	Provider      string `json:"provider,omitempty"`
	ProviderID    string `json:"providerId,omitempty"`
	ProfilePicURL string `json:"profilePicUrl,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// HasIdentity reports whether the record carries an id or a name.
func (u *User) HasIdentity() bool {
	return u != nil && (u.ID != "" || u.Name != "")
}

// Node is a device registered with the control plane.
type Node struct {
	ID                   ID          `json:"id"`
	Name                 string      `json:"name"`
	GivenName            string      `json:"given_name,omitempty"`
	MachineKey           string      `json:"machine_key,omitempty"`
	NodeKey              string      `json:"node_key,omitempty"`
	DiscoKey             string      `json:"disco_key,omitempty"`
	IPAddresses          []string    `json:"ip_addresses,omitempty"`
	User                 *User       `json:"user,omitempty"`
	PreAuthKey           *PreAuthKey `json:"preAuthKey,omitempty"`
	LastSeen             string      `json:"last_seen,omitempty"`
	LastSuccessfulUpdate string      `json:"last_successful_update,omitempty"`
	Expiry               string      `json:"expiry,omitempty"`
	CreatedAt            string      `json:"created_at,omitempty"`
	UpdatedAt            string      `json:"updated_at,omitempty"`
	Online               bool        `json:"online"`
	Invalid              bool        `json:"invalid,omitempty"`
	ForcedTags           []string    `json:"forced_tags,omitempty"`
	ValidTags            []string    `json:"validTags,omitempty"`
	InvalidTags          []string    `json:"invalidTags,omitempty"`
	RegisterMethod       string      `json:"registerMethod,omitempty"`
}

// HasIdentity reports whether the record carries an id or a name.
func (n *Node) HasIdentity() bool {
	return n != nil && (n.ID != "" || n.Name != "")
}

// PreAuthKey is a pre-authorization key issued for a user.
type PreAuthKey struct {
	ID         ID       `json:"id"`
	Key        string   `json:"key"`
	User       Owner    `json:"user,omitempty"`
	Reusable   bool     `json:"reusable"`
	Ephemeral  bool     `json:"ephemeral"`
	Used       bool     `json:"used"`
	Expiration string   `json:"expiration,omitempty"`
	CreatedAt  string   `json:"created_at,omitempty"`
	UpdatedAt  string   `json:"updated_at,omitempty"`
	ACLTags    []string `json:"acl_tags,omitempty"`
}

// HasIdentity reports whether the record carries an id or a key.
func (k *PreAuthKey) HasIdentity() bool {
	return k != nil && (k.ID != "" || k.Key != "")
}

// Owner names the user a key belongs to. Older servers send the user name
// as a string, newer ones embed the user object.
type Owner string

// UnmarshalJSON accepts a string, a user object or null.
func (o *Owner) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*o = ""
		return nil
	case data[0] == '{':
		var u User
		if err := json.Unmarshal(data, &u); err != nil {
			return err
		}
		*o = Owner(u.Name)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = Owner(s)
	return nil
}

// PreAuthKeyOptions describes a key to be created.
type PreAuthKeyOptions struct {
	Reusable   bool
	Ephemeral  bool
	Expiration time.Time // zero means server default
	ACLTags    []string
}

// NodeSummary counts nodes by online state.
type NodeSummary struct {
	Total   int `json:"total"`
	Online  int `json:"online"`
	Offline int `json:"offline"`
}

// SummarizeNodes counts online and offline nodes.
func SummarizeNodes(nodes []Node) NodeSummary {
	s := NodeSummary{Total: len(nodes)}
	for _, n := range nodes {
		if n.Online {
			s.Online++
		}
	}
	s.Offline = s.Total - s.Online
	return s
}
