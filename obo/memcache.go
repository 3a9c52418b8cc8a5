package obo

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/oauth2"
)

// MemCache is an in-process TokenCache backed by an LRU. Expired tokens are
// dropped on read; eviction otherwise follows LRU order.
type MemCache struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *oauth2.Token]
}

var _ TokenCache = (*MemCache)(nil)

// NewMemCache creates a MemCache holding up to maxEntries tokens.
func NewMemCache(maxEntries int) (*MemCache, error) {
	cache, err := lru.New[string, *oauth2.Token](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("obo: create LRU cache: %w", err)
	}
	return &MemCache{cache: cache}, nil
}

func (c *MemCache) Get(_ context.Context, subject, resource string) (*oauth2.Token, error) {
	key := cacheKey(subject, resource)
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, ok := c.cache.Get(key)
	if !ok {
		return nil, nil
	}
	if !tok.Expiry.IsZero() && time.Now().After(tok.Expiry) {
		c.cache.Remove(key)
		return nil, nil
	}
	return tok, nil
}

func (c *MemCache) Put(_ context.Context, subject, resource string, tok *oauth2.Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(cacheKey(subject, resource), tok)
	return nil
}
