// Package graph is a minimal client for the downstream profile endpoint the
// service calls on behalf of its users, plus the augmenter that glues the
// on-behalf-of exchange to that call.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Profile is the downstream representation of the signed-in user.
type Profile struct {
	GivenName         string `json:"givenName"`
	Surname           string `json:"surname"`
	DisplayName       string `json:"displayName,omitempty"`
	UserPrincipalName string `json:"userPrincipalName,omitempty"`
}

// Client fetches profiles from a fixed profile URL using a bearer token
// minted for that resource.
type Client struct {
	// ProfileURL is the "me" endpoint of the downstream resource.
	ProfileURL string

	// HTTPClient overrides the default transport.
	HTTPClient *http.Client
}

var defaultHTTPClient = &http.Client{Timeout: 30 * time.Second}

const maxResponseBodySize = 1 << 20

// Me retrieves the profile of the user the token was minted for. Any non-2xx
// status or undecodable body is an error; the caller decides whether that is
// fatal.
func (c *Client) Me(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ProfileURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	client := c.HTTPClient
	if client == nil {
		client = defaultHTTPClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph: profile request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("graph: profile endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("graph: profile response: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("graph: decode profile: %w", err)
	}
	return &p, nil
}
