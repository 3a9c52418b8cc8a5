package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

type flowCall struct {
	mode     FlowMode
	resource string
	claims   string
}

// fakeFlow mints sequential tokens and records every interaction.
type fakeFlow struct {
	mu       sync.Mutex
	calls    []flowCall
	identity *Identity
	err      error
	expiry   time.Duration
}

func (f *fakeFlow) Acquire(_ context.Context, mode FlowMode, resource, claims string) (*oauth2.Token, *Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, flowCall{mode: mode, resource: resource, claims: claims})
	if f.err != nil {
		return nil, nil, f.err
	}
	exp := f.expiry
	if exp == 0 {
		exp = time.Hour
	}
	tok := &oauth2.Token{
		AccessToken: fmt.Sprintf("tok-%d", len(f.calls)),
		Expiry:      time.Now().Add(exp),
	}
	return tok, f.identity, nil
}

func (f *fakeFlow) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newAcquirer(t *testing.T, flow *fakeFlow) *TokenAcquirer {
	t.Helper()
	sess, err := NewSession()
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	return &TokenAcquirer{Flow: flow, Session: sess}
}

func TestAcquire_InteractiveThenSilent(t *testing.T) {
	flow := &fakeFlow{identity: &Identity{Subject: "U1", Name: "Ann Lee"}}
	a := newAcquirer(t, flow)
	ctx := context.Background()

	tok1, err := a.Acquire(ctx, "https://api.example/todolist")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if flow.callCount() != 1 {
		t.Fatalf("flow calls = %d, want 1", flow.callCount())
	}

	// Second acquisition must come from cache, not the flow.
	tok2, err := a.Acquire(ctx, "https://api.example/todolist")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if flow.callCount() != 1 {
		t.Fatalf("flow calls = %d, want still 1 (silent hit)", flow.callCount())
	}
	if tok2.AccessToken != tok1.AccessToken {
		t.Error("cache returned a different token")
	}

	if id := a.Session.Identity(); id == nil || id.Subject != "U1" {
		t.Errorf("session identity = %+v", id)
	}
}

func TestAcquire_ExpiredTokenGoesInteractive(t *testing.T) {
	flow := &fakeFlow{expiry: -time.Minute}
	a := newAcquirer(t, flow)
	ctx := context.Background()

	if _, err := a.Acquire(ctx, "r"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := a.Acquire(ctx, "r"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if flow.callCount() != 2 {
		t.Fatalf("flow calls = %d, want 2 (expired token must not be reused)", flow.callCount())
	}
}

func TestAcquire_ResourceKeysTheCache(t *testing.T) {
	flow := &fakeFlow{}
	a := newAcquirer(t, flow)
	ctx := context.Background()

	t1, _ := a.Acquire(ctx, "resource-a")
	t2, _ := a.Acquire(ctx, "resource-b")
	if t1.AccessToken == t2.AccessToken {
		t.Error("distinct resources shared a token")
	}
	if flow.callCount() != 2 {
		t.Fatalf("flow calls = %d, want 2", flow.callCount())
	}
}

func TestAcquire_ChallengeBypassesCache(t *testing.T) {
	flow := &fakeFlow{}
	a := newAcquirer(t, flow)
	ctx := context.Background()

	if _, err := a.Acquire(ctx, "r"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	tok, err := a.Acquire(ctx, "r", WithClaimsChallenge("step-up-payload"))
	if err != nil {
		t.Fatalf("acquire with challenge: %v", err)
	}
	if flow.callCount() != 2 {
		t.Fatalf("flow calls = %d, want 2 (challenge must not be served from cache)", flow.callCount())
	}
	last := flow.calls[len(flow.calls)-1]
	if last.claims != "step-up-payload" {
		t.Errorf("claims = %q", last.claims)
	}

	// The challenged token replaces the cached one.
	again, _ := a.Acquire(ctx, "r")
	if again.AccessToken != tok.AccessToken {
		t.Error("cache not updated after challenged acquisition")
	}
}

func TestAcquire_FlowFailure(t *testing.T) {
	flow := &fakeFlow{err: errors.New("user closed the popup")}
	a := newAcquirer(t, flow)

	_, err := a.Acquire(context.Background(), "r")
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("want ErrAuthFailed, got %v", err)
	}
	if a.Session.Identity() != nil {
		t.Error("identity set despite failed flow")
	}
}
