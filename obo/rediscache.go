package obo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// RedisCache is a TokenCache backed by Redis, for deployments running more
// than one service instance. Entries expire with the token they hold.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

var _ TokenCache = (*RedisCache)(nil)

// RedisCacheConfig configures a RedisCache.
type RedisCacheConfig struct {
	// Client is the Redis client instance.
	Client *redis.Client

	// KeyPrefix is the prefix for all cache keys.
	// Default: "todolist:obo:"
	KeyPrefix string
}

// NewRedisCache creates a Redis-backed token cache.
func NewRedisCache(cfg RedisCacheConfig) (*RedisCache, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("obo: redis client is required")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "todolist:obo:"
	}
	return &RedisCache{client: cfg.Client, keyPrefix: prefix}, nil
}

func (c *RedisCache) key(subject, resource string) string {
	return c.keyPrefix + cacheKey(subject, resource)
}

func (c *RedisCache) Get(ctx context.Context, subject, resource string) (*oauth2.Token, error) {
	res := c.client.Get(ctx, c.key(subject, resource))
	if res.Err() != nil {
		if res.Err() == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("obo: redis get: %w", res.Err())
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(res.Val()), &tok); err != nil {
		return nil, fmt.Errorf("obo: unmarshal cached token: %w", err)
	}
	return &tok, nil
}

func (c *RedisCache) Put(ctx context.Context, subject, resource string, tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("obo: marshal token: %w", err)
	}
	var ttl time.Duration
	if !tok.Expiry.IsZero() {
		ttl = time.Until(tok.Expiry)
		if ttl <= 0 {
			return nil
		}
	}
	if err := c.client.Set(ctx, c.key(subject, resource), b, ttl).Err(); err != nil {
		return fmt.Errorf("obo: redis set: %w", err)
	}
	return nil
}
