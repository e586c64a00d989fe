package restclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/ownding/headscale-console/internal/headscale"
)

type createPreAuthKeyRequest struct {
	User       string   `json:"user"`
	Reusable   bool     `json:"reusable"`
	Ephemeral  bool     `json:"ephemeral"`
	Expiration string   `json:"expiration,omitempty"`
	ACLTags    []string `json:"acl_tags,omitempty"`
}

// ListPreAuthKeys returns the user's pre-auth keys. A response body that
// matches no known shape yields an empty list and a warning, so listing
// stays usable against servers with an unexpected schema.
func (c *Client) ListPreAuthKeys(ctx context.Context, name string) ([]headscale.PreAuthKey, error) {
	u, err := c.GetUserByName(ctx, name)
	if err != nil {
		return nil, err
	}
	q := url.Values{"user": {u.ID.String()}}
	body, err := c.do(ctx, "ListPreAuthKeys", http.MethodGet, "/preauthkey?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	keys, err := decodeList[headscale.PreAuthKey]("ListPreAuthKeys", kindPreAuthKey, body)
	var perr *headscale.ParseFailure
	if errors.As(err, &perr) {
		c.log.Warn("unrecognized pre-auth key listing, returning empty list", "user", u.Name, "error", perr.Err)
		return []headscale.PreAuthKey{}, nil
	}
	return keys, err
}

// CreatePreAuthKey issues a key for the named user.
func (c *Client) CreatePreAuthKey(ctx context.Context, name string, opts headscale.PreAuthKeyOptions) (headscale.PreAuthKey, error) {
	u, err := c.GetUserByName(ctx, name)
	if err != nil {
		return headscale.PreAuthKey{}, err
	}
	req := createPreAuthKeyRequest{
		User:      u.ID.String(),
		Reusable:  opts.Reusable,
		Ephemeral: opts.Ephemeral,
		ACLTags:   opts.ACLTags,
	}
	if !opts.Expiration.IsZero() {
		req.Expiration = opts.Expiration.UTC().Format(time.RFC3339)
	}
	body, err := c.do(ctx, "CreatePreAuthKey", http.MethodPost, "/preauthkey", req)
	if err != nil {
		return headscale.PreAuthKey{}, err
	}
	return decodeOne[headscale.PreAuthKey]("CreatePreAuthKey", kindPreAuthKey, body)
}
