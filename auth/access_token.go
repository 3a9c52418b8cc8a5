package auth

import (
	"context"
	"errors"
	"time"

	"github.com/ggoodman/todolist-obo-go/internal/jwtauth"
)

// AccessTokenAuthOption configures optional aspects of the JWT access token
// authenticator (algorithms, leeway). Issuer and audience are required formal
// arguments to the constructors.
type AccessTokenAuthOption func(*jwtauth.Config)

// WithAllowedAlgs restricts allowed JWS algorithms. "none" is never allowed.
// Defaults to ["RS256"].
func WithAllowedAlgs(algs ...string) AccessTokenAuthOption {
	return func(c *jwtauth.Config) {
		c.AllowedAlgs = append([]string(nil), algs...)
	}
}

// WithLeeway sets clock skew tolerance for time-based claims.
func WithLeeway(d time.Duration) AccessTokenAuthOption {
	return func(c *jwtauth.Config) { c.Leeway = d }
}

// NewFromDiscovery returns an Authenticator that verifies JWT access tokens
// discovered via OpenID Connect discovery (jwks_uri, issuer, etc.).
//
// Required:
//   - issuer:   authorization server issuer URL
//   - audience: expected audience ("aud") claim, the App ID URI of this resource
func NewFromDiscovery(ctx context.Context, issuer string, audience string, opts ...AccessTokenAuthOption) (Authenticator, error) {
	cfg := jwtauth.DefaultConfig()
	cfg.Issuer = issuer
	cfg.ExpectedAudiences = []string{audience}
	for _, opt := range opts {
		opt(cfg)
	}
	if audience == "" {
		return nil, errors.New("audience is required")
	}
	internal, err := jwtauth.NewFromDiscovery(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &adapter{a: internal}, nil
}

// NewStatic returns an Authenticator that verifies JWT access tokens against a
// statically configured issuer, audience and JWKS URI, without discovery.
func NewStatic(ctx context.Context, issuer string, audience string, jwksURI string, opts ...AccessTokenAuthOption) (Authenticator, error) {
	cfg := jwtauth.DefaultConfig()
	cfg.Issuer = issuer
	cfg.ExpectedAudiences = []string{audience}
	for _, opt := range opts {
		opt(cfg)
	}
	internal, err := jwtauth.NewStatic(ctx, cfg, jwksURI)
	if err != nil {
		return nil, err
	}
	return &adapter{a: internal}, nil
}

// TokenEndpoint reports the issuer's token endpoint for authenticators built
// via discovery, and "" otherwise. An on-behalf-of exchanger posts its grant
// there.
func TokenEndpoint(a Authenticator) string {
	ad, ok := a.(*adapter)
	if !ok {
		return ""
	}
	if dm, ok := any(ad.a).(jwtauth.DiscoveryMetadata); ok {
		return dm.TokenEndpoint()
	}
	return ""
}

// adapter wraps the internal authenticator to satisfy the public interface.
type adapter struct {
	a jwtauth.Authenticator
}

func (ad *adapter) CheckAuthentication(ctx context.Context, tok string) (Principal, error) {
	p, err := ad.a.CheckAuthentication(ctx, tok)
	if err != nil {
		// Map internal sentinel errors to public errors used by the handler.
		return nil, errors.Join(ErrUnauthorized, err)
	}
	return principalAdapter{p: p}, nil
}

type principalAdapter struct{ p jwtauth.Principal }

func (u principalAdapter) Subject() string      { return u.p.Subject() }
func (u principalAdapter) Scopes() []string     { return u.p.Scopes() }
func (u principalAdapter) RawToken() string     { return u.p.RawToken() }
func (u principalAdapter) Claims(ref any) error { return u.p.Claims(ref) }
