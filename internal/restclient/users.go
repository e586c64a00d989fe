package restclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ownding/headscale-console/internal/headscale"
)

// ListUsers returns every user.
func (c *Client) ListUsers(ctx context.Context) ([]headscale.User, error) {
	body, err := c.do(ctx, "ListUsers", http.MethodGet, "/user", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[headscale.User]("ListUsers", kindUser, body)
}

// CreateUser creates a user. The REST API cannot carry a display name.
func (c *Client) CreateUser(ctx context.Context, name string) (headscale.User, error) {
	name, err := headscale.RequireNonBlank("username", name)
	if err != nil {
		return headscale.User{}, err
	}
	body, err := c.do(ctx, "CreateUser", http.MethodPost, "/user", map[string]string{"name": name})
	if err != nil {
		return headscale.User{}, err
	}
	return decodeOne[headscale.User]("CreateUser", kindUser, body)
}

// GetUserByName resolves a user by exact name. The result wraps
// headscale.ErrNotFound when no user matches.
func (c *Client) GetUserByName(ctx context.Context, name string) (headscale.User, error) {
	name, err := headscale.RequireNonBlank("username", name)
	if err != nil {
		return headscale.User{}, err
	}
	users, err := c.ListUsers(ctx)
	if err != nil {
		return headscale.User{}, err
	}
	for _, u := range users {
		if u.Name == name {
			return u, nil
		}
	}
	return headscale.User{}, fmt.Errorf("user %q: %w", name, headscale.ErrNotFound)
}

// DeleteUserByID deletes a user by id without checking for nodes.
func (c *Client) DeleteUserByID(ctx context.Context, id string) error {
	id, err := headscale.RequireNonBlank("user id", id)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, "DeleteUser", http.MethodDelete, "/user/"+url.PathEscape(id), nil)
	return err
}

// DeleteUser resolves name and deletes the user without checking for nodes.
// The server decides what happens to attached nodes.
func (c *Client) DeleteUser(ctx context.Context, name string) error {
	u, err := c.GetUserByName(ctx, name)
	if err != nil {
		return err
	}
	return c.DeleteUserByID(ctx, u.ID.String())
}

// DeleteUserSafely deletes a user only after confirming it has no nodes.
// With one or more nodes attached it fails with headscale.ErrUserHasNodes
// and issues no delete.
func (c *Client) DeleteUserSafely(ctx context.Context, name string) error {
	u, err := c.GetUserByName(ctx, name)
	if err != nil {
		return err
	}
	nodes, err := c.nodesForUser(ctx, "DeleteUserSafely", u.ID)
	if err != nil {
		return err
	}
	if len(nodes) > 0 {
		c.log.Info("refusing to delete user with nodes", "user", u.Name, "nodes", len(nodes))
		return fmt.Errorf("delete user %q (%d nodes): %w", u.Name, len(nodes), headscale.ErrUserHasNodes)
	}
	return c.DeleteUserByID(ctx, u.ID.String())
}

// UserHasNodes reports whether any node belongs to the user. A user that
// does not exist, including one deleted concurrently, has no nodes.
func (c *Client) UserHasNodes(ctx context.Context, name string) (bool, error) {
	u, err := c.GetUserByName(ctx, name)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	nodes, err := c.nodesForUser(ctx, "UserHasNodes", u.ID)
	if isNotFound(err) {
		c.log.Debug("user vanished while listing nodes", "user", u.Name)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

// CanDeleteUser reports whether the user can be deleted safely, with a
// reason when it cannot.
func (c *Client) CanDeleteUser(ctx context.Context, name string) (bool, string, error) {
	has, err := c.UserHasNodes(ctx, name)
	if err != nil {
		var verr *headscale.ValidationError
		if errors.As(err, &verr) {
			return false, "", err
		}
		return false, "", fmt.Errorf("check nodes for %q: %w", name, err)
	}
	if has {
		return false, headscale.ErrUserHasNodes.Error(), nil
	}
	return true, "", nil
}
