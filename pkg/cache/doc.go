// Package cache stores Placemark API responses in Redis so that repeated page
// requests can be revalidated with conditional requests.
//
// A cached page is never served blindly: the client always asks the API with
// If-None-Match (or If-Modified-Since) and only reuses the stored body when the
// API answers 304 Not Modified. This keeps "load more" lists in sync with places
// the user just saved while saving bandwidth on unchanged pages.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Endpoint:    "/places",
//		QueryParams: url.Values{"take": {"10"}, "categoryList": {"cafe", "bar"}},
//		Principal:   cache.Fingerprint(token),
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API
//	}
//
// # Conditional Requests
//
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// # Metrics
//
//   - placemark_cache_hits_total{layer="redis"} - Cache hits
//   - placemark_cache_misses_total - Cache misses
//   - placemark_cache_size_bytes{layer="redis"} - Bytes written to the cache
//   - placemark_304_responses_total - Conditional request successes
//   - placemark_conditional_requests_total - Conditional requests sent
//   - placemark_cache_errors_total{operation} - Cache operation errors
//   - placemark_cache_evictions_total{reason} - Pages evicted (expired, corrupt, signed_out)
//
// Keys are scoped by Principal, a fingerprint of the bearer token, so pages of
// one user's private folders are never revalidated with another user's token.
// Each stored entry also records its principal, and Get treats a mismatch as a
// miss. When the API rejects a token the client evicts that session's pages:
//
//	n, err := manager.DeletePrincipal(ctx, cache.Fingerprint(token))
package cache
