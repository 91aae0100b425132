package cache

import (
	"net/http"
	"time"
)

// CacheEntry represents a cached page of a Placemark collection.
type CacheEntry struct {
	// Data is the response body
	Data []byte `json:"data"`

	// ETag for conditional requests (If-None-Match)
	ETag string `json:"etag"`

	// Expires is when the entry is dropped from Redis
	Expires time.Time `json:"expires"`

	// LastModified is taken from the Last-Modified header
	LastModified time.Time `json:"last_modified"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Headers are the response headers
	Headers http.Header `json:"headers"`

	// CachedAt is when we cached this response
	CachedAt time.Time `json:"cached_at"`

	// Principal is the token fingerprint the page was fetched with.
	// Manager.Set fills it from the key.
	Principal string `json:"principal,omitempty"`
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Age returns how long ago the page was stored. Zero when CachedAt is unset.
func (e *CacheEntry) Age() time.Duration {
	if e.CachedAt.IsZero() {
		return 0
	}
	return time.Since(e.CachedAt)
}

// Revalidatable reports whether the entry carries a validator the API can check.
// Entries without one are useless for conditional requests and are not stored.
func (e *CacheEntry) Revalidatable() bool {
	return e.ETag != "" || !e.LastModified.IsZero()
}

// OwnedBy reports whether the page was fetched with principal.
// Anonymous pages only match the anonymous principal.
func (e *CacheEntry) OwnedBy(principal string) bool {
	return e.Principal == principal
}
