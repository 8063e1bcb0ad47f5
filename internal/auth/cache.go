package auth

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultCacheSize = 10000
	DefaultCacheTTL  = 60 * time.Second
)

// Cache is the bounded TTL cache in front of a TokenResolver, keyed by
// token hash. Revocation calls Invalidate with the hash; the TTL bounds
// staleness for everything else.
type Cache struct {
	resolver TokenResolver
	entries  *expirable.LRU[string, *AuthContext]
}

func NewCache(resolver TokenResolver, size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		resolver: resolver,
		entries:  expirable.NewLRU[string, *AuthContext](size, nil, ttl),
	}
}

// GetOrResolve returns the cached context for the hash, resolving and
// caching on miss.
func (c *Cache) GetOrResolve(ctx context.Context, tokenHash string) (*AuthContext, error) {
	if authCtx, ok := c.entries.Get(tokenHash); ok {
		return authCtx, nil
	}

	authCtx, err := c.resolver.ResolveTokenByHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}

	c.entries.Add(tokenHash, authCtx)
	return authCtx, nil
}

// Invalidate drops the entry for a token hash, used at revocation time.
func (c *Cache) Invalidate(tokenHash string) {
	c.entries.Remove(tokenHash)
}

func (c *Cache) Len() int {
	return c.entries.Len()
}
