package listing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// refreshesTotal counts settled refreshes by outcome (ready, error, stale).
	refreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_refreshes_total",
			Help: "Total number of listing refreshes by outcome",
		},
		[]string{"outcome"},
	)

	refreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "listing_refresh_duration_seconds",
			Help:    "Duration of listing refreshes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
