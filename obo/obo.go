// Package obo implements the on-behalf-of grant: exchanging a caller's
// inbound bearer assertion, together with this service's own credential, for
// a new access token scoped to a downstream resource.
//
// The exchange presents the caller's original assertion verbatim. A token the
// service minted or derived itself will not do; the authorization server
// requires proof that the user delegated to this service.
//
// Transient provider failures (HTTP 5xx, or an OAuth error response of
// "temporarily_unavailable") are retried exactly once after a fixed one
// second backoff. Every other failure is terminal for the exchange. Callers
// that use the exchanged token to augment a primary operation must treat an
// exchange failure as "augmentation unavailable", never as a failure of the
// primary operation.
package obo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"
)

const (
	// grantTypeJWTBearer is the on-behalf-of grant type.
	grantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// requestedTokenUse marks the assertion as an on-behalf-of delegation.
	requestedTokenUse = "on_behalf_of"

	// errCodeTemporarilyUnavailable is the OAuth error code treated as transient.
	errCodeTemporarilyUnavailable = "temporarily_unavailable"

	// transientBackoff is the fixed wait before the single retry.
	transientBackoff = 1 * time.Second

	// maxAttempts bounds the exchange at one initial attempt plus one retry.
	maxAttempts = 2

	// maxResponseBodySize caps token endpoint response reads (1 MB).
	maxResponseBodySize = 1 << 20
)

// ErrTransientProvider indicates the authorization server reported a
// transient unavailability. It is retried internally; callers only observe it
// wrapped inside ErrExchangeFailed once the retry budget is spent.
var ErrTransientProvider = errors.New("obo: provider temporarily unavailable")

// ErrExchangeFailed indicates the on-behalf-of exchange did not yield a
// token: the provider rejected the grant, or transient retries were
// exhausted.
var ErrExchangeFailed = errors.New("obo: exchange failed")

var defaultHTTPClient = &http.Client{Timeout: 30 * time.Second}

// Config describes the exchange target and this service's own credential.
type Config struct {
	// TokenURL is the authorization server's token endpoint.
	TokenURL string

	// ClientID and ClientSecret identify this service to the authorization
	// server. Both are sent as form fields, matching a confidential client
	// registration.
	ClientID     string
	ClientSecret string

	// Resource identifies the downstream resource the exchanged token is
	// minted for. The token must never be presented anywhere else.
	Resource string

	// Scopes optionally narrows the delegation on the exchanged token.
	Scopes []string

	// Cache, when non-nil, stores exchanged tokens keyed per (caller subject,
	// downstream resource). A cache shared across principals without that
	// keying leaks tokens between users; implementations in this module key
	// correctly.
	Cache TokenCache

	// HTTPClient overrides the transport used for token endpoint requests.
	HTTPClient *http.Client
}

func (c *Config) validate() error {
	if c.TokenURL == "" {
		return errors.New("TokenURL is required")
	}
	if _, err := url.Parse(c.TokenURL); err != nil {
		return fmt.Errorf("TokenURL is not a valid URL: %w", err)
	}
	if c.ClientID == "" {
		return errors.New("ClientID is required")
	}
	if c.Resource == "" {
		return errors.New("Resource is required")
	}
	return nil
}

// Exchanger performs on-behalf-of exchanges against a single downstream
// resource. It is safe for concurrent use.
type Exchanger struct {
	cfg  Config
	wait time.Duration // overridable in tests
}

// New validates cfg and returns an Exchanger.
func New(cfg Config) (*Exchanger, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("obo: invalid config: %w", err)
	}
	return &Exchanger{cfg: cfg, wait: transientBackoff}, nil
}

// Resource returns the downstream resource identifier tokens are minted for.
func (e *Exchanger) Resource() string { return e.cfg.Resource }

// Exchange obtains an access token for the configured downstream resource on
// behalf of the caller identified by subject, presenting assertion (the
// caller's original inbound bearer token) plus this service's credential.
//
// A cached token for (subject, resource) is returned without a provider
// round-trip when still valid. Errors match ErrExchangeFailed via errors.Is.
func (e *Exchanger) Exchange(ctx context.Context, subject, assertion string) (*oauth2.Token, error) {
	if assertion == "" {
		return nil, fmt.Errorf("%w: empty assertion", ErrExchangeFailed)
	}

	if e.cfg.Cache != nil && subject != "" {
		if tok, err := e.cfg.Cache.Get(ctx, subject, e.cfg.Resource); err == nil && tok.Valid() {
			return tok, nil
		}
	}

	op := func() (*oauth2.Token, error) {
		tok, err := e.requestToken(ctx, assertion)
		if err != nil {
			if errors.Is(err, ErrTransientProvider) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return tok, nil
	}

	tok, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(e.wait)),
		backoff.WithMaxTries(maxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}

	if e.cfg.Cache != nil && subject != "" {
		// Cache failures only cost a future round-trip.
		_ = e.cfg.Cache.Put(ctx, subject, e.cfg.Resource, tok)
	}
	return tok, nil
}

// tokenResponse decodes the provider's token endpoint response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// providerError decodes an OAuth error response (RFC 6749 section 5.2).
type providerError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	StatusCode  int    `json:"-"`
}

func (e *providerError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("oauth error %q (status %d): %s", e.Code, e.StatusCode, e.Description)
	}
	return fmt.Sprintf("oauth error %q (status %d)", e.Code, e.StatusCode)
}

func (e *Exchanger) requestToken(ctx context.Context, assertion string) (*oauth2.Token, error) {
	form := url.Values{
		"grant_type":          {grantTypeJWTBearer},
		"client_id":           {e.cfg.ClientID},
		"client_secret":       {e.cfg.ClientSecret},
		"assertion":           {assertion},
		"requested_token_use": {requestedTokenUse},
		"resource":            {e.cfg.Resource},
	}
	if len(e.cfg.Scopes) > 0 {
		form.Set("scope", strings.Join(e.cfg.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := e.cfg.HTTPClient
	if client == nil {
		client = defaultHTTPClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token endpoint request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("token endpoint response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		perr := &providerError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(body, perr); err != nil || perr.Code == "" {
			perr = &providerError{Code: "unknown", StatusCode: resp.StatusCode}
		}
		if resp.StatusCode >= 500 || perr.Code == errCodeTemporarilyUnavailable {
			return nil, fmt.Errorf("%w: %w", ErrTransientProvider, perr)
		}
		return nil, perr
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("token endpoint response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, errors.New("token endpoint returned empty access_token")
	}

	tok := &oauth2.Token{AccessToken: tr.AccessToken, TokenType: tr.TokenType}
	if tr.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return tok, nil
}
