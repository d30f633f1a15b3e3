// Package redis provides a Redis-backed verification cache, for deployments
// where several gateway instances should share revocation visibility.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/helioslabs/mcpgate/cache"
)

// TokenStore implements cache.TokenStore using Redis.
type TokenStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewTokenStore creates a new [TokenStore] instance. All keys are namespaced
// under prefix and expire after ttl.
func NewTokenStore(client *redis.Client, prefix string, ttl time.Duration) *TokenStore {
	return &TokenStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *TokenStore) tokenKey(rawToken string) string {
	return fmt.Sprintf("%s:verify:%s", r.prefix, cache.HashToken(rawToken))
}

func (r *TokenStore) jtiKey(jti string) string {
	return fmt.Sprintf("%s:jti:%s", r.prefix, jti)
}

// Set stores a verification entry and indexes it by jti so revocation can
// evict it before the TTL runs out.
func (r *TokenStore) Set(ctx context.Context, rawToken string, entry *cache.VerificationEntry) error {
	key := r.tokenKey(rawToken)
	fields := map[string]interface{}{
		"jti":          entry.JTI,
		"subject_id":   entry.SubjectID,
		"email":        entry.Email,
		"display_name": entry.DisplayName,
		"label":        entry.Label,
		"expires_at":   entry.ExpiresAt.Unix(),
		"cached_at":    time.Now().Unix(),
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, r.ttl)
	pipe.SAdd(ctx, r.jtiKey(entry.JTI), key)
	pipe.Expire(ctx, r.jtiKey(entry.JTI), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache verification entry: %w", err)
	}
	return nil
}

// Get retrieves a verification entry, or nil when absent.
func (r *TokenStore) Get(ctx context.Context, rawToken string) (*cache.VerificationEntry, error) {
	res, err := r.client.HGetAll(ctx, r.tokenKey(rawToken)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read verification entry: %w", err)
	}
	if len(res) == 0 {
		return nil, nil
	}

	expiresAt, err := strconv.ParseInt(res["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt verification entry: %w", err)
	}
	cachedAt, _ := strconv.ParseInt(res["cached_at"], 10, 64)

	return &cache.VerificationEntry{
		JTI:         res["jti"],
		SubjectID:   res["subject_id"],
		Email:       res["email"],
		DisplayName: res["display_name"],
		Label:       res["label"],
		ExpiresAt:   time.Unix(expiresAt, 0),
		CachedAt:    time.Unix(cachedAt, 0),
	}, nil
}

// Delete evicts one token.
func (r *TokenStore) Delete(ctx context.Context, rawToken string) error {
	return r.client.Del(ctx, r.tokenKey(rawToken)).Err()
}

// DeleteByJTI evicts every cached entry for a revoked jti.
func (r *TokenStore) DeleteByJTI(ctx context.Context, jti string) error {
	keys, err := r.client.SMembers(ctx, r.jtiKey(jti)).Result()
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return err
		}
	}
	return r.client.Del(ctx, r.jtiKey(jti)).Err()
}

// Clear removes all entries under this store's prefix.
func (r *TokenStore) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Count returns the number of cached verification entries.
func (r *TokenStore) Count(ctx context.Context) int {
	var n int
	iter := r.client.Scan(ctx, 0, r.prefix+":verify:*", 0).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n
}
