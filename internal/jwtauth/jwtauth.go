package jwtauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// Config controls validation behavior for access tokens.
// It is used by discovery-based authenticators to enforce issuer, audience,
// algorithm, and clock-skew policies.
type Config struct {
	Issuer string
	// ExpectedAudiences contains the primary audience (index 0) followed by any
	// additional accepted audiences. The first entry SHOULD be the App ID URI
	// registered with the authorization server; subsequent entries are
	// primarily intended for local / testing scenarios.
	ExpectedAudiences []string
	AllowedAlgs       []string
	Leeway            time.Duration
}

// DefaultConfig returns a Config with safe defaults for algorithm and leeway.
func DefaultConfig() *Config {
	return &Config{
		AllowedAlgs: []string{"RS256"},
		Leeway:      60 * time.Second,
	}
}

// Principal is the internal claims carrier for validated tokens. It mirrors
// the minimal contract needed by the public auth package, including the raw
// inbound assertion required for on-behalf-of exchange.
type Principal interface {
	Subject() string
	Scopes() []string
	RawToken() string
	Claims(ref any) error
}

// principal is the concrete implementation of Principal.
type principal struct {
	sub    string
	scopes []string
	raw    string
	claims map[string]any
}

func (p *principal) Subject() string  { return p.sub }
func (p *principal) Scopes() []string { return append([]string(nil), p.scopes...) }
func (p *principal) RawToken() string { return p.raw }
func (p *principal) Claims(ref any) error {
	b, err := json.Marshal(p.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ref)
}

// Authenticator validates access tokens and returns a minimal Principal that
// exposes the subject, granted scopes and raw claims. Implementations MUST
// perform signature, issuer, audience and time validations.
type Authenticator interface {
	CheckAuthentication(ctx context.Context, tok string) (Principal, error)
}

// ErrUnauthorized indicates that the access token failed validation (e.g.,
// signature, issuer, audience, exp/nbf) and the request should be treated as
// unauthenticated.
var ErrUnauthorized = errors.New("jwtauth: unauthorized")

type discoveryAuthenticator struct {
	cfg     *Config
	keyfunc jwt.Keyfunc
	// expected fields derived from discovery
	iss                   string
	authorizationEndpoint string
	tokenEndpoint         string
}

// DiscoveryMetadata exposes optional endpoints learned via OIDC discovery.
// The token endpoint is what an on-behalf-of exchanger posts its grant to.
type DiscoveryMetadata interface {
	AuthorizationEndpoint() string
	TokenEndpoint() string
}

func (a *discoveryAuthenticator) AuthorizationEndpoint() string { return a.authorizationEndpoint }
func (a *discoveryAuthenticator) TokenEndpoint() string         { return a.tokenEndpoint }

// NewFromDiscovery performs OIDC discovery to obtain jwks_uri and issuer, and
// constructs an Authenticator that validates JWT access tokens using the
// configured policies in Config. JWKS keys are auto-refreshed.
func NewFromDiscovery(ctx context.Context, cfg *Config) (*discoveryAuthenticator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed: %w", err)
	}
	var meta struct {
		Issuer        string `json:"issuer"`
		JwksURI       string `json:"jwks_uri"`
		Authorization string `json:"authorization_endpoint"`
		Token         string `json:"token_endpoint"`
	}
	if err := provider.Claims(&meta); err != nil {
		return nil, fmt.Errorf("invalid discovery metadata: %w", err)
	}
	missing := []string{}
	if meta.JwksURI == "" {
		missing = append(missing, "jwks_uri")
	}
	if meta.Token == "" {
		missing = append(missing, "token_endpoint")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("discovery incomplete: missing %s", strings.Join(missing, ", "))
	}

	// Auto-refreshing JWKS
	kf, err := keyfunc.NewDefaultCtx(ctx, []string{meta.JwksURI})
	if err != nil {
		return nil, fmt.Errorf("jwks init failed: %w", err)
	}

	return &discoveryAuthenticator{
		cfg:                   cfg,
		keyfunc:               guardedKeyfunc(cfg, kf),
		iss:                   meta.Issuer,
		authorizationEndpoint: meta.Authorization,
		tokenEndpoint:         meta.Token,
	}, nil
}

// guardedKeyfunc enforces the allowed algorithm set before key resolution.
func guardedKeyfunc(cfg *Config, kf keyfunc.Keyfunc) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		alg := t.Method.Alg()
		allowed := false
		for _, a := range cfg.AllowedAlgs {
			if alg == a {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, fmt.Errorf("disallowed alg: %s", alg)
		}
		return kf.Keyfunc(t)
	}
}

func (a *discoveryAuthenticator) CheckAuthentication(ctx context.Context, tok string) (Principal, error) {
	return checkToken(a.cfg, a.iss, a.keyfunc, tok)
}

// checkToken is the shared validation path for discovery and static
// authenticators.
func checkToken(cfg *Config, iss string, kf jwt.Keyfunc, tok string) (Principal, error) {
	if tok == "" {
		return nil, fmt.Errorf("%w: empty token", ErrUnauthorized)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(cfg.AllowedAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(iss),
		jwt.WithLeeway(cfg.Leeway),
	}
	if len(cfg.ExpectedAudiences) == 1 {
		opts = append(opts, jwt.WithAudience(cfg.ExpectedAudiences[0]))
	}
	parser := jwt.NewParser(opts...)

	parsed, err := parser.Parse(tok, kf)
	if err != nil {
		return nil, fmt.Errorf("%w: token parse/verify failed: %v", ErrUnauthorized, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claims type", ErrUnauthorized)
	}

	if iss2, _ := claims["iss"].(string); iss2 == "" || iss2 != iss {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrUnauthorized)
	}
	if len(cfg.ExpectedAudiences) != 1 && !audIntersects(claims["aud"], cfg.ExpectedAudiences) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrUnauthorized)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrUnauthorized)
	}

	return &principal{
		sub:    sub,
		scopes: scopesFromClaims(claims),
		raw:    tok,
		claims: claims,
	}, nil
}

// scopesFromClaims collects delegation scopes from the space-delimited "scp"
// claim, falling back to "scope". Both spellings appear in the wild.
func scopesFromClaims(claims jwt.MapClaims) []string {
	raw, _ := claims["scp"].(string)
	if raw == "" {
		raw, _ = claims["scope"].(string)
	}
	return strings.Fields(raw)
}

func audIntersects(aud any, want []string) bool {
	for _, w := range want {
		if audContains(aud, w) {
			return true
		}
	}
	return false
}

func audContains(aud any, want string) bool {
	switch v := aud.(type) {
	case string:
		return v == want
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && s == want {
				return true
			}
		}
	case []string:
		for _, s := range v {
			if s == want {
				return true
			}
		}
	}
	return false
}
