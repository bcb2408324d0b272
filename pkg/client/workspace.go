package client

import (
	"context"
	"net/http"
)

type workspaceResource struct {
	Location string `json:"location"`
}

// Location returns the configured region, falling back to the workspace's own region.
func (c *Connection) Location(ctx context.Context) (string, error) {
	if c.Details.Location != "" {
		return c.Details.Location, nil
	}
	workspaceUrl, err := c.WorkspaceUrl()
	if err != nil {
		return "", err
	}
	var ws workspaceResource
	if _, err := c.Do(ctx, http.MethodGet, workspaceUrl, nil, &ws, "workspace", c.Details.WorkspaceName); err != nil {
		return "", err
	}
	c.Details.Location = ws.Location
	return ws.Location, nil
}
