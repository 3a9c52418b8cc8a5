package jwtauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

type mockOIDC struct {
	srv      *httptest.Server
	issuer   string
	jwksPath string
}

func newMockOIDC(t *testing.T, keysJSON []byte) *mockOIDC {
	t.Helper()
	m := &mockOIDC{jwksPath: "/keys"}
	handler := http.NewServeMux()
	handler.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		meta := map[string]any{
			"issuer":                   m.issuer,
			"jwks_uri":                 m.issuer + m.jwksPath,
			"authorization_endpoint":   m.issuer + "/oauth2/auth",
			"token_endpoint":           m.issuer + "/oauth2/token",
			"response_types_supported": []string{"code"},
		}
		_ = json.NewEncoder(w).Encode(meta)
	})
	handler.HandleFunc(m.jwksPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(keysJSON)
	})
	m.srv = httptest.NewServer(handler)
	m.issuer = m.srv.URL
	return m
}

func (m *mockOIDC) Close() { m.srv.Close() }

func genRSA(t *testing.T) (*rsa.PrivateKey, string, []byte) {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	kid := "test-key"
	jwk := jose.JSONWebKey{Key: &pk.PublicKey, KeyID: kid, Algorithm: "RS256", Use: "sig"}
	set := struct {
		Keys []jose.JSONWebKey `json:"keys"`
	}{Keys: []jose.JSONWebKey{jwk}}
	b, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}
	return pk, kid, b
}

func signToken(t *testing.T, pk *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(pk)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func baseConfig(issuer, aud string) *Config {
	cfg := DefaultConfig()
	cfg.Issuer = issuer
	cfg.ExpectedAudiences = []string{aud}
	cfg.Leeway = 0
	return cfg
}

func TestAuthenticator_HappyPath(t *testing.T) {
	pk, kid, jwks := genRSA(t)
	oidcSrv := newMockOIDC(t, jwks)
	defer oidcSrv.Close()

	aud := "https://contoso.example/TodoListService"
	cfg := baseConfig(oidcSrv.issuer, aud)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, err := NewFromDiscovery(ctx, cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.TokenEndpoint() != oidcSrv.issuer+"/oauth2/token" {
		t.Fatalf("token endpoint = %q", a.TokenEndpoint())
	}

	now := time.Now()
	tok := signToken(t, pk, kid, jwt.MapClaims{
		"iss": oidcSrv.issuer,
		"sub": "user-123",
		"aud": aud,
		"exp": now.Add(time.Hour).Unix(),
		"iat": now.Unix(),
		"scp": "user_impersonation",
	})

	p, err := a.CheckAuthentication(ctx, tok)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if p.Subject() != "user-123" {
		t.Errorf("subject = %q, want user-123", p.Subject())
	}
	if got := p.Scopes(); len(got) != 1 || got[0] != "user_impersonation" {
		t.Errorf("scopes = %v", got)
	}
	if p.RawToken() != tok {
		t.Error("raw token not preserved verbatim")
	}
	var claims struct {
		Sub string `json:"sub"`
	}
	if err := p.Claims(&claims); err != nil || claims.Sub != "user-123" {
		t.Errorf("claims: %v %v", claims, err)
	}
}

func TestAuthenticator_ScopeClaimFallback(t *testing.T) {
	pk, kid, jwks := genRSA(t)
	oidcSrv := newMockOIDC(t, jwks)
	defer oidcSrv.Close()

	aud := "https://contoso.example/TodoListService"
	ctx := context.Background()
	a, err := NewFromDiscovery(ctx, baseConfig(oidcSrv.issuer, aud))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	now := time.Now()
	tok := signToken(t, pk, kid, jwt.MapClaims{
		"iss":   oidcSrv.issuer,
		"sub":   "user-123",
		"aud":   aud,
		"exp":   now.Add(time.Hour).Unix(),
		"scope": "todo.read todo.write",
	})

	p, err := a.CheckAuthentication(ctx, tok)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if got := p.Scopes(); len(got) != 2 || got[0] != "todo.read" || got[1] != "todo.write" {
		t.Errorf("scopes = %v", got)
	}
}

func TestAuthenticator_Rejections(t *testing.T) {
	pk, kid, jwks := genRSA(t)
	oidcSrv := newMockOIDC(t, jwks)
	defer oidcSrv.Close()

	aud := "https://contoso.example/TodoListService"
	ctx := context.Background()
	a, err := NewFromDiscovery(ctx, baseConfig(oidcSrv.issuer, aud))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	now := time.Now()
	cases := []struct {
		name   string
		claims jwt.MapClaims
	}{
		{"expired", jwt.MapClaims{
			"iss": oidcSrv.issuer, "sub": "u", "aud": aud,
			"exp": now.Add(-time.Hour).Unix(),
		}},
		{"wrong issuer", jwt.MapClaims{
			"iss": "https://evil.example", "sub": "u", "aud": aud,
			"exp": now.Add(time.Hour).Unix(),
		}},
		{"wrong audience", jwt.MapClaims{
			"iss": oidcSrv.issuer, "sub": "u", "aud": "https://other.example",
			"exp": now.Add(time.Hour).Unix(),
		}},
		{"missing sub", jwt.MapClaims{
			"iss": oidcSrv.issuer, "aud": aud,
			"exp": now.Add(time.Hour).Unix(),
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tok := signToken(t, pk, kid, tc.claims)
			if _, err := a.CheckAuthentication(ctx, tok); !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("want ErrUnauthorized, got %v", err)
			}
		})
	}

	t.Run("empty token", func(t *testing.T) {
		if _, err := a.CheckAuthentication(ctx, ""); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("want ErrUnauthorized, got %v", err)
		}
	})
}

func TestStaticAuthenticator(t *testing.T) {
	pk, kid, jwks := genRSA(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jwks)
	}))
	defer srv.Close()

	issuer := "https://sts.contoso.example"
	aud := "https://contoso.example/TodoListService"
	cfg := baseConfig(issuer, aud)
	ctx := context.Background()
	a, err := NewStatic(ctx, cfg, srv.URL)
	if err != nil {
		t.Fatalf("new static: %v", err)
	}

	now := time.Now()
	tok := signToken(t, pk, kid, jwt.MapClaims{
		"iss": issuer,
		"sub": "user-456",
		"aud": aud,
		"exp": now.Add(time.Hour).Unix(),
		"scp": "user_impersonation",
	})

	p, err := a.CheckAuthentication(ctx, tok)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if p.Subject() != "user-456" {
		t.Errorf("subject = %q", p.Subject())
	}
}
