package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts responses served from Redis.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "user_api_cache_hits_total",
		Help: "Total number of user API cache hits",
	})

	// CacheMisses counts lookups that found nothing usable.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "user_api_cache_misses_total",
		Help: "Total number of user API cache misses",
	})

	// NotModifiedResponses counts 304 answers to conditional requests.
	NotModifiedResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "user_api_304_responses_total",
		Help: "Total number of user API 304 Not Modified responses",
	})

	// ConditionalRequestsSent counts requests sent with a validator header.
	ConditionalRequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "user_api_conditional_requests_total",
		Help: "Total number of conditional requests sent to the user API",
	})

	// CacheErrors counts Redis failures by operation.
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "user_api_cache_errors_total",
		Help: "Total number of cache operation errors",
	}, []string{"operation"}) // get, set, delete, invalidate
)
