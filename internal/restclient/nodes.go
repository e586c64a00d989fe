package restclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ownding/headscale-console/internal/headscale"
)

// ListNodes returns every node.
func (c *Client) ListNodes(ctx context.Context) ([]headscale.Node, error) {
	body, err := c.do(ctx, "ListNodes", http.MethodGet, "/node", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[headscale.Node]("ListNodes", kindNode, body)
}

// ListNodesByUser returns the nodes owned by the named user.
func (c *Client) ListNodesByUser(ctx context.Context, name string) ([]headscale.Node, error) {
	u, err := c.GetUserByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.nodesForUser(ctx, "ListNodesByUser", u.ID)
}

// nodesForUser lists nodes for an already resolved user id.
func (c *Client) nodesForUser(ctx context.Context, op string, id headscale.ID) ([]headscale.Node, error) {
	q := url.Values{"user": {id.String()}}
	body, err := c.do(ctx, op, http.MethodGet, "/node?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return decodeList[headscale.Node](op, kindNode, body)
}

// GetNode returns one node by id.
func (c *Client) GetNode(ctx context.Context, id string) (headscale.Node, error) {
	id, err := headscale.RequireNonBlank("node id", id)
	if err != nil {
		return headscale.Node{}, err
	}
	body, err := c.do(ctx, "GetNode", http.MethodGet, "/node/"+url.PathEscape(id), nil)
	if err != nil {
		return headscale.Node{}, err
	}
	return decodeOne[headscale.Node]("GetNode", kindNode, body)
}

// DeleteNode deletes one node by id.
func (c *Client) DeleteNode(ctx context.Context, id string) error {
	id, err := headscale.RequireNonBlank("node id", id)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, "DeleteNode", http.MethodDelete, "/node/"+url.PathEscape(id), nil)
	return err
}

// NodeStatus counts all nodes by online state.
func (c *Client) NodeStatus(ctx context.Context) (headscale.NodeSummary, error) {
	nodes, err := c.ListNodes(ctx)
	if err != nil {
		return headscale.NodeSummary{}, err
	}
	return headscale.SummarizeNodes(nodes), nil
}
