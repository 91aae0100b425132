package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// PrincipalIndexTTL is the minimum lifetime of a principal's key index.
// The index is refreshed on every Set and outlives the pages it lists.
const PrincipalIndexTTL = 24 * time.Hour

// Manager stores Placemark pages in Redis, scoped per principal.
//
// Besides the pages themselves it keeps one set per principal listing that
// session's keys, so DeletePrincipal can evict a signed-out session's private
// folders without scanning the keyspace.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis: redisClient,
	}
}

// PrincipalIndexKey returns the Redis set listing the cache keys of principal.
func PrincipalIndexKey(principal string) string {
	if principal == "" {
		principal = "anonymous"
	}
	return KeyPrefix + ":principal:" + principal
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist, the entry is expired or it
// belongs to another principal.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	// Get page from Redis
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	// Unmarshal entry, dropping corrupt ones
	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		CacheEvictions.WithLabelValues("corrupt").Inc()
		_ = m.Delete(ctx, key)
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// Never hand a page to another session
	if !entry.OwnedBy(key.Principal) {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	// Check if expired
	if entry.IsExpired() {
		CacheEvictions.WithLabelValues("expired").Inc()
		_ = m.Delete(ctx, key)
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	// Cache hit
	CacheHits.WithLabelValues("redis").Inc()
	return &entry, nil
}

// Set stores a cache entry with TTL based on the entry's Expires field and
// records the key in the principal's index. Expired entries are skipped.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	// Calculate TTL
	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	// Stamp the owner before marshalling
	entry.Principal = key.Principal
	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	indexKey := PrincipalIndexKey(key.Principal)

	// Store page and index atomically
	pipe := m.redis.TxPipeline()
	pipe.Set(ctx, key.String(), data, ttl)
	pipe.SAdd(ctx, indexKey, key.String())
	pipe.Expire(ctx, indexKey, max(ttl, PrincipalIndexTTL))
	if _, err := pipe.Exec(ctx); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	// Update cache size metric
	CacheSize.WithLabelValues("redis").Add(float64(len(data)))

	return nil
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	pipe := m.redis.TxPipeline()
	pipe.Del(ctx, key.String())
	pipe.SRem(ctx, PrincipalIndexKey(key.Principal), key.String())
	if _, err := pipe.Exec(ctx); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// DeletePrincipal evicts every page cached for principal and returns how many
// were still present. The client calls it when the API rejects a token, so a
// signed-out session leaves no private pages behind.
func (m *Manager) DeletePrincipal(ctx context.Context, principal string) (int, error) {
	indexKey := PrincipalIndexKey(principal)

	// Collect the session's keys
	keys, err := m.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return 0, fmt.Errorf("redis smembers: %w", err)
	}

	// Drop pages and index together
	pipe := m.redis.TxPipeline()
	var deleted *redis.IntCmd
	if len(keys) > 0 {
		deleted = pipe.Del(ctx, keys...)
	}
	pipe.Del(ctx, indexKey)
	if _, err := pipe.Exec(ctx); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return 0, fmt.Errorf("redis del principal: %w", err)
	}

	if deleted == nil {
		return 0, nil
	}
	n := int(deleted.Val())
	CacheEvictions.WithLabelValues("signed_out").Add(float64(n))
	return n, nil
}

// UpdateTTL updates the TTL of an existing cache entry.
// Used when a 304 Not Modified response carries a new Expires header.
func (m *Manager) UpdateTTL(ctx context.Context, key CacheKey, newExpires time.Time) error {
	// Get existing entry
	entry, err := m.Get(ctx, key)
	if err != nil {
		return err
	}

	// Re-save with new TTL
	entry.Expires = newExpires
	return m.Set(ctx, key, entry)
}
