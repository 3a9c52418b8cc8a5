// Package authtest provides in-memory auth fixtures for tests and local
// development where a real authorization server is not available.
package authtest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ggoodman/todolist-obo-go/auth"
)

// Principal is a fixed, fully specified principal for tests.
type Principal struct {
	Sub   string
	Scope []string
	Token string
	Extra map[string]any
}

var _ auth.Principal = (*Principal)(nil)

func (p *Principal) Subject() string  { return p.Sub }
func (p *Principal) Scopes() []string { return append([]string(nil), p.Scope...) }
func (p *Principal) RawToken() string { return p.Token }

func (p *Principal) Claims(ref any) error {
	claims := map[string]any{"sub": p.Sub}
	for k, v := range p.Extra {
		claims[k] = v
	}
	b, err := json.Marshal(claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ref)
}

// Static is an Authenticator backed by a fixed token-to-principal table.
// Unknown tokens fail with auth.ErrUnauthorized.
type Static struct {
	Principals map[string]*Principal
}

// NewStatic builds a Static authenticator from the given principals, keyed by
// their raw tokens.
func NewStatic(principals ...*Principal) *Static {
	s := &Static{Principals: make(map[string]*Principal, len(principals))}
	for _, p := range principals {
		s.Principals[p.Token] = p
	}
	return s
}

func (s *Static) CheckAuthentication(_ context.Context, tok string) (auth.Principal, error) {
	p, ok := s.Principals[tok]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token", auth.ErrUnauthorized)
	}
	return p, nil
}
