// Package metrics exposes the Prometheus registry used by the console.
// Metrics are defined with promauto in the package that records them
// (client, cache, ratelimit, listing, web); this package serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the HTTP handler for the /metrics endpoint, serving the
// default registry promauto registers into.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// User API client (pkg/client):
//   - user_api_requests_total{endpoint, status} (Counter)
//   - user_api_request_duration_seconds{endpoint} (Histogram)
//   - user_api_errors_total{class} (Counter): network, client, server, malformed
//   - user_api_retries_total{error_class} (Counter)
//   - user_api_retry_backoff_seconds{error_class} (Histogram)
//   - user_api_retry_exhausted_total{error_class} (Counter)
//
// Response cache (pkg/cache):
//   - user_api_cache_hits_total (Counter)
//   - user_api_cache_misses_total (Counter)
//   - user_api_304_responses_total (Counter)
//   - user_api_conditional_requests_total (Counter)
//   - user_api_cache_errors_total{operation} (Counter)
//
// Request gate (pkg/ratelimit):
//   - user_api_gate_requests_in_window (Gauge)
//   - user_api_gate_blocks_total (Counter)
//   - user_api_gate_throttles_total (Counter)
//
// Listing controller (pkg/listing):
//   - listing_refreshes_total{outcome} (Counter): ready, error, stale
//   - listing_refresh_duration_seconds (Histogram)
//
// Web console (internal/web):
//   - console_active_sessions (Gauge)
//   - console_http_requests_total{route, code} (Counter)
//   - console_http_request_duration_seconds{route} (Histogram)
//
// Example Prometheus Queries:
//
//   # Listing failure ratio
//   sum(rate(listing_refreshes_total{outcome="error"}[5m])) /
//   sum(rate(listing_refreshes_total[5m]))
//
//   # Cache hit rate
//   sum(rate(user_api_cache_hits_total[5m])) /
//   (sum(rate(user_api_cache_hits_total[5m])) + sum(rate(user_api_cache_misses_total[5m])))
//
//   # P95 user API latency
//   histogram_quantile(0.95, rate(user_api_request_duration_seconds_bucket[5m]))
