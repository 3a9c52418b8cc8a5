package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elnormous/contenttype"
)

// ErrNetwork indicates a transport-level failure (DNS, timeout, connection
// reset). It is terminal for the call and never retried automatically.
var ErrNetwork = errors.New("client: network failure")

var (
	jsonMediaType = contenttype.NewMediaType("application/json")
	textMediaType = contenttype.NewMediaType("text/plain")
)

// StatusError carries a non-success, non-challenge response for display.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: unexpected status %d: %s", e.Status, e.Body)
}

const maxBodySize = 1 << 20

// Invoker issues authenticated calls against protected endpoints and drives
// the claims-challenge retry loop.
type Invoker struct {
	// Acquirer supplies tokens. Required.
	Acquirer *TokenAcquirer

	// HTTPClient overrides the default transport.
	HTTPClient *http.Client
}

var defaultHTTPClient = &http.Client{Timeout: 30 * time.Second}

// Get calls a protected read endpoint and returns the decoded JSON payload.
func (c *Invoker) Get(ctx context.Context, resource, endpoint string) (json.RawMessage, error) {
	return c.call(ctx, resource, http.MethodGet, endpoint, nil)
}

// Post sends body as JSON to a protected write endpoint. The result is nil
// for no-content responses.
func (c *Invoker) Post(ctx context.Context, resource, endpoint string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("client: encode request body: %w", err)
	}
	return c.call(ctx, resource, http.MethodPost, endpoint, payload)
}

// call acquires a token, issues the request, and classifies the response. A
// claims challenge (403 with a text/plain body) triggers one challenged
// re-acquisition and one retry of the same request; a second challenge is
// surfaced as an error. At most one extra provider round-trip happens per
// challenge.
func (c *Invoker) call(ctx context.Context, resource, method, endpoint string, payload []byte) (json.RawMessage, error) {
	tok, err := c.Acquirer.Acquire(ctx, resource)
	if err != nil {
		return nil, err
	}

	result, challenge, err := c.doOnce(ctx, method, endpoint, tok.AccessToken, payload)
	if err != nil || challenge == "" {
		return result, err
	}

	tok, err = c.Acquirer.Acquire(ctx, resource, WithClaimsChallenge(challenge))
	if err != nil {
		return nil, err
	}
	result, challenge, err = c.doOnce(ctx, method, endpoint, tok.AccessToken, payload)
	if err != nil {
		return nil, err
	}
	if challenge != "" {
		return nil, &StatusError{Status: http.StatusForbidden, Body: challenge}
	}
	return result, nil
}

// doOnce performs a single HTTP round-trip. It returns a non-empty challenge
// string when the response is the claims-challenge combination.
func (c *Invoker) doOnce(ctx context.Context, method, endpoint, accessToken string, payload []byte) (json.RawMessage, string, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, "", fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = defaultHTTPClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading response: %v", ErrNetwork, err)
	}

	ctype := contenttype.NewMediaType(resp.Header.Get("Content-Type"))

	switch {
	case resp.StatusCode == http.StatusOK && ctype.Matches(jsonMediaType):
		return json.RawMessage(body), "", nil
	case resp.StatusCode == http.StatusNoContent:
		return nil, "", nil
	case resp.StatusCode == http.StatusForbidden && ctype.Matches(textMediaType):
		// The body is the opaque challenge; any other 403 falls through to
		// the generic error below.
		return nil, string(body), nil
	default:
		return nil, "", &StatusError{Status: resp.StatusCode, Body: string(body)}
	}
}
