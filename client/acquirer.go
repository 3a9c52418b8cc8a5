package client

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// ErrAuthFailed indicates interactive login or token acquisition failed.
var ErrAuthFailed = errors.New("client: authentication failed")

// FlowMode selects how the interactive flow engages the user: a popup window
// or a full-page redirect.
type FlowMode int

const (
	FlowPopup FlowMode = iota
	FlowRedirect
)

func (m FlowMode) String() string {
	if m == FlowRedirect {
		return "redirect"
	}
	return "popup"
}

// InteractiveFlow performs a user-visible token acquisition against the
// authorization server. claims, when non-empty, is an opaque challenge
// payload the server interprets as a step-up requirement.
//
// Implementations wrap whatever interaction the host application supports: a
// browser popup, a full-page redirect, a device-code prompt.
type InteractiveFlow interface {
	Acquire(ctx context.Context, mode FlowMode, resource string, claims string) (*oauth2.Token, *Identity, error)
}

// TokenAcquirer produces valid access tokens for resources, consulting the
// session cache before falling back to the interactive flow.
type TokenAcquirer struct {
	// Flow is the interactive fallback. Required.
	Flow InteractiveFlow

	// Mode is passed through to the flow. Defaults to FlowPopup.
	Mode FlowMode

	// Session carries the cache and identity state. Required.
	Session *Session
}

// AcquireOption configures a single acquisition.
type AcquireOption func(*acquireOptions)

type acquireOptions struct {
	claims string
}

// WithClaimsChallenge carries a server-issued challenge into the interactive
// flow. A challenged acquisition always goes interactive; the cached token is
// what provoked the challenge.
func WithClaimsChallenge(claims string) AcquireOption {
	return func(o *acquireOptions) { o.claims = claims }
}

// Acquire returns a valid access token for resource. Silent cache lookup
// first; cache miss, expiry or a claims challenge escalates to the
// interactive flow. A successful interactive flow updates the session's
// cache and identity. Failures match ErrAuthFailed via errors.Is.
func (a *TokenAcquirer) Acquire(ctx context.Context, resource string, opts ...AcquireOption) (*oauth2.Token, error) {
	var o acquireOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.claims == "" {
		if tok := a.Session.cachedToken(resource); tok != nil {
			return tok, nil
		}
	}

	tok, id, err := a.Flow.Acquire(ctx, a.Mode, resource, o.claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %s flow for %s: %v", ErrAuthFailed, a.Mode, resource, err)
	}
	a.Session.update(resource, tok, id)
	return tok, nil
}
