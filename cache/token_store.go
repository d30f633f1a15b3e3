// Package cache provides the short-TTL caches the gateway keeps in front of
// its persistent stores: a verification cache for gateway access tokens and
// the refresh coordinator's sliding-window limiter.
package cache

import (
	"context"
	"time"
)

// VerificationEntry is a cached verification result for one gateway access
// token, keyed by the sha256 of the raw token. The entry bounds how long a
// revocation can go unnoticed, so its TTL is deliberately short.
type VerificationEntry struct {
	JTI         string    `redis:"jti"`
	SubjectID   string    `redis:"subjectId"`
	Email       string    `redis:"email"`
	DisplayName string    `redis:"displayName"`
	Label       string    `redis:"label"`
	ExpiresAt   time.Time `redis:"expiresAt"`
	CachedAt    time.Time `redis:"cachedAt"`
}

// TokenStore caches verification results keyed by token hash.
type TokenStore interface {
	// Set caches a verification result under the hash of the raw token.
	Set(ctx context.Context, rawToken string, entry *VerificationEntry) error

	// Get returns the cached entry for a raw token, or nil when absent.
	Get(ctx context.Context, rawToken string) (*VerificationEntry, error)

	// Delete evicts one token, e.g. immediately after its jti is revoked.
	Delete(ctx context.Context, rawToken string) error

	// DeleteByJTI evicts every cached entry carrying the given jti.
	DeleteByJTI(ctx context.Context, jti string) error

	// Clear empties the cache.
	Clear(ctx context.Context) error

	// Count returns the number of live entries.
	Count(ctx context.Context) int
}
