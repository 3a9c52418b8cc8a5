// Package config loads deployment wiring from the environment. Everything
// here is deployment data (identity provider coordinates, resource
// identifiers, credentials), not user data.
package config

import (
	"fmt"

	"github.com/joeshaw/envdecode"
)

// Service configures the protected TodoList service.
type Service struct {
	// Issuer is the authorization server issuer URL. ENV: AUTH_ISSUER
	Issuer string `env:"AUTH_ISSUER,required"`
	// Audience is the App ID URI of this service. ENV: AUTH_AUDIENCE
	Audience string `env:"AUTH_AUDIENCE,required"`
	// RequiredScope gates every protected operation. ENV: AUTH_REQUIRED_SCOPE
	RequiredScope string `env:"AUTH_REQUIRED_SCOPE,default=user_impersonation"`

	// ClientID and ClientSecret are this service's own credential, used for
	// the on-behalf-of exchange. ENV: OBO_CLIENT_ID / OBO_CLIENT_SECRET
	ClientID     string `env:"OBO_CLIENT_ID,required"`
	ClientSecret string `env:"OBO_CLIENT_SECRET,required"`
	// TokenURL overrides the token endpoint; discovered from Issuer when
	// empty. ENV: OBO_TOKEN_URL
	TokenURL string `env:"OBO_TOKEN_URL"`
	// DownstreamResource identifies the graph resource exchanged tokens are
	// minted for. ENV: GRAPH_RESOURCE_ID
	DownstreamResource string `env:"GRAPH_RESOURCE_ID,required"`
	// ProfileURL is the downstream "me" endpoint. ENV: GRAPH_PROFILE_URL
	ProfileURL string `env:"GRAPH_PROFILE_URL,required"`

	// RedisAddr, when set, switches the on-behalf-of token cache from
	// in-process to Redis. ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR"`

	// ListenAddr is the HTTP listen address. ENV: LISTEN_ADDR
	ListenAddr string `env:"LISTEN_ADDR,default=:9184"`
}

// Client configures a caller of the TodoList service.
type Client struct {
	// APIResource is the App ID URI of the TodoList service.
	// ENV: API_RESOURCE_ID
	APIResource string `env:"API_RESOURCE_ID,required"`
	// APIBaseAddress is the service's base URL. ENV: API_BASE_ADDRESS
	APIBaseAddress string `env:"API_BASE_ADDRESS,default=http://localhost:9184/"`
	// RedirectURI is where the interactive flow returns. ENV: REDIRECT_URI
	RedirectURI string `env:"REDIRECT_URI,default=http://localhost:16969/"`
	// PopUp selects the popup flow over full-page redirect. ENV: AUTH_POPUP
	PopUp bool `env:"AUTH_POPUP,default=true"`
}

// LoadService populates a Service config from the environment.
func LoadService() (*Service, error) {
	var cfg Service
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// LoadClient populates a Client config from the environment.
func LoadClient() (*Client, error) {
	var cfg Client
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
