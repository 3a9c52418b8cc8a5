package auth

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnauthorized indicates authentication failed or no valid credentials were supplied.
var ErrUnauthorized = errors.New("unauthorized")

// ErrInsufficientScope indicates the caller authenticated but lacks the required scope.
var ErrInsufficientScope = errors.New("insufficient scope")

// Principal represents an authenticated caller for the lifetime of a request.
// Implementations should be lightweight and safe for concurrent use.
type Principal interface {
	// Subject returns the stable, immutable identifier for the caller. It is
	// the ownership key for everything the caller creates.
	Subject() string
	// Scopes returns the delegation scopes granted to the calling client.
	Scopes() []string
	// RawToken returns the original inbound bearer assertion, verbatim. An
	// on-behalf-of exchange must present this original assertion to the
	// authorization server, never a derived token.
	RawToken() string
	// Claims unmarshals the caller's claims into the provided struct reference.
	Claims(ref any) error
}

// Authenticator validates bearer tokens and returns the associated principal.
// It should return ErrUnauthorized for invalid credentials.
type Authenticator interface {
	CheckAuthentication(ctx context.Context, tok string) (Principal, error)
}

// RequireScope verifies that the principal's granted scopes contain the exact
// required scope string and returns the principal's subject identifier on
// success. Matching is strict string equality; there is no hierarchy or
// wildcard expansion. The returned error matches ErrInsufficientScope via
// errors.Is.
func RequireScope(p Principal, required string) (string, error) {
	if p == nil {
		return "", fmt.Errorf("%w: no principal", ErrUnauthorized)
	}
	for _, s := range p.Scopes() {
		if s == required {
			return p.Subject(), nil
		}
	}
	return "", fmt.Errorf("%w: scope claim does not contain %q or scope claim not found", ErrInsufficientScope, required)
}
