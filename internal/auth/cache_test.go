package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	mu       sync.Mutex
	contexts map[string]*AuthContext
	calls    int
}

func (r *fakeResolver) ResolveTokenByHash(ctx context.Context, tokenHash string) (*AuthContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if authCtx, ok := r.contexts[tokenHash]; ok {
		return authCtx, nil
	}
	return nil, ErrInvalidToken
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestCacheResolvesOnceWithinTTL(t *testing.T) {
	hash := HashToken("xproxy_token")
	resolver := &fakeResolver{contexts: map[string]*AuthContext{
		hash: {UserID: uuid.New(), ProjectID: uuid.New()},
	}}
	cache := NewCache(resolver, 10, time.Minute)

	first, err := cache.GetOrResolve(context.Background(), hash)
	require.NoError(t, err)

	second, err := cache.GetOrResolve(context.Background(), hash)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, resolver.callCount())
}

func TestCacheDoesNotCacheErrors(t *testing.T) {
	resolver := &fakeResolver{}
	cache := NewCache(resolver, 10, time.Minute)

	_, err := cache.GetOrResolve(context.Background(), HashToken("unknown"))
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = cache.GetOrResolve(context.Background(), HashToken("unknown"))
	require.ErrorIs(t, err, ErrInvalidToken)

	// Each miss hits the store again; failures are never cached.
	assert.Equal(t, 2, resolver.callCount())
}

func TestCacheInvalidate(t *testing.T) {
	hash := HashToken("xproxy_token")
	resolver := &fakeResolver{contexts: map[string]*AuthContext{
		hash: {UserID: uuid.New()},
	}}
	cache := NewCache(resolver, 10, time.Minute)

	_, err := cache.GetOrResolve(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len())

	cache.Invalidate(hash)
	assert.Equal(t, 0, cache.Len())

	_, err = cache.GetOrResolve(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, 2, resolver.callCount())
}

func TestCacheTTLExpiry(t *testing.T) {
	hash := HashToken("xproxy_token")
	resolver := &fakeResolver{contexts: map[string]*AuthContext{
		hash: {UserID: uuid.New()},
	}}
	cache := NewCache(resolver, 10, 20*time.Millisecond)

	_, err := cache.GetOrResolve(context.Background(), hash)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, _ = cache.GetOrResolve(context.Background(), hash)
		return resolver.callCount() >= 2
	}, 2*time.Second, 10*time.Millisecond)
}
