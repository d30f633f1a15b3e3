package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryTokenStore implements TokenStore using ttlcache.
type MemoryTokenStore struct {
	cache *ttlcache.Cache[string, *VerificationEntry]
	ttl   time.Duration
}

// NewMemoryTokenStore creates an in-memory verification cache. Every entry
// lives at most ttl, regardless of the token's own expiry: the cache must
// not outlive the window in which a revocation becomes visible.
//
//nolint:ireturn
func NewMemoryTokenStore(ttl time.Duration) TokenStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *VerificationEntry](ttl),
		ttlcache.WithDisableTouchOnHit[string, *VerificationEntry](),
	)

	go cache.Start()

	return &MemoryTokenStore{cache: cache, ttl: ttl}
}

// Set implements TokenStore.Set.
func (s *MemoryTokenStore) Set(_ context.Context, rawToken string, entry *VerificationEntry) error {
	entry.CachedAt = time.Now()
	s.cache.Set(HashToken(rawToken), entry, s.ttl)
	return nil
}

// Get implements TokenStore.Get.
func (s *MemoryTokenStore) Get(_ context.Context, rawToken string) (*VerificationEntry, error) {
	item := s.cache.Get(HashToken(rawToken))
	if item == nil {
		return nil, nil
	}
	return item.Value(), nil
}

// Delete removes one token from the cache.
func (s *MemoryTokenStore) Delete(_ context.Context, rawToken string) error {
	s.cache.Delete(HashToken(rawToken))
	return nil
}

// DeleteByJTI removes every entry carrying the given jti.
func (s *MemoryTokenStore) DeleteByJTI(_ context.Context, jti string) error {
	var stale []string
	s.cache.Range(func(item *ttlcache.Item[string, *VerificationEntry]) bool {
		if item.Value().JTI == jti {
			stale = append(stale, item.Key())
		}
		return true
	})
	for _, key := range stale {
		s.cache.Delete(key)
	}
	return nil
}

// Clear removes all entries.
func (s *MemoryTokenStore) Clear(_ context.Context) error {
	s.cache.DeleteAll()
	return nil
}

// Count returns the number of live entries.
func (s *MemoryTokenStore) Count(_ context.Context) int {
	return s.cache.Len()
}

// Close stops the background expiration loop.
func (s *MemoryTokenStore) Close() {
	s.cache.Stop()
}
