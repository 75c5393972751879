// Package cache provides a Redis-backed cache for user API responses.
//
// Listing responses are keyed by endpoint and the full query string, so every
// filter/page combination the console asks for is cached on its own. Entries
// honour the Expires header of the user API when present and otherwise live
// for DefaultTTL. When the API sends an ETag or Last-Modified header, the
// client revalidates stale entries with conditional requests.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Endpoint: "/api/users",
//		Query:    url.Values{"page": {"1"}, "per_page": {"5"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the user API
//	}
//
// Creating, updating or deleting a user invalidates every cached listing:
//
//	manager.InvalidatePrefix(ctx, cache.Key{Endpoint: "/api/users"}.Prefix())
//
// # Metrics
//
//   - user_api_cache_hits_total
//   - user_api_cache_misses_total
//   - user_api_304_responses_total
//   - user_api_conditional_requests_total
//   - user_api_cache_errors_total{operation}
package cache
