package client

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/oauth2"
)

// Identity describes the signed-in user as reported by the interactive flow.
// Callers read it to render who is logged in.
type Identity struct {
	Subject string
	Name    string
}

// Session holds one user's client-side authorization state: the current
// identity and a token cache keyed by resource. A Session belongs to exactly
// one principal, which is what keys cached tokens per (principal, resource).
// It is safe for concurrent use.
type Session struct {
	mu       sync.RWMutex
	identity *Identity
	tokens   *lru.Cache[string, *oauth2.Token]
}

const sessionCacheSize = 32

// NewSession creates an empty session.
func NewSession() (*Session, error) {
	cache, err := lru.New[string, *oauth2.Token](sessionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("client: create token cache: %w", err)
	}
	return &Session{tokens: cache}, nil
}

// Identity returns the current signed-in identity, or nil before the first
// successful interactive flow.
func (s *Session) Identity() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// cachedToken returns a still-valid token for resource, or nil.
func (s *Session) cachedToken(resource string) *oauth2.Token {
	s.mu.RLock()
	tok, ok := s.tokens.Get(resource)
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	if !tok.Expiry.IsZero() && time.Now().After(tok.Expiry) {
		s.mu.Lock()
		s.tokens.Remove(resource)
		s.mu.Unlock()
		return nil
	}
	return tok
}

// update records the outcome of a successful interactive flow.
func (s *Session) update(resource string, tok *oauth2.Token, id *Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens.Add(resource, tok)
	if id != nil {
		s.identity = id
	}
}
