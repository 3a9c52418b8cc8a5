package obo

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenCache stores exchanged tokens keyed per (caller subject, downstream
// resource). Keying by subject is load-bearing: a cache keyed by resource
// alone would hand one user's delegated token to another.
//
// Get returns (nil, nil) on a miss. Implementations must be safe for
// concurrent use.
type TokenCache interface {
	Get(ctx context.Context, subject, resource string) (*oauth2.Token, error)
	Put(ctx context.Context, subject, resource string, tok *oauth2.Token) error
}

// cacheKey builds the composite cache key. The separator cannot appear in a
// resource URI authority-first form, and subjects are opaque stable IDs.
func cacheKey(subject, resource string) string {
	return subject + "|" + resource
}
