package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level registration, not per-instance: Orchestrator.New can be
// called more than once (tests build several), and promauto panics on a
// duplicate collector registration against the default registry.
var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "promptenhancer",
			Subsystem: "orchestrator",
			Name:      "requests_total",
			Help:      "Total number of enhancement requests by outcome.",
		},
		[]string{"outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "promptenhancer",
			Subsystem: "orchestrator",
			Name:      "request_duration_seconds",
			Help:      "End-to-end enhancement request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "promptenhancer",
			Subsystem: "orchestrator",
			Name:      "cache_hits_total",
			Help:      "Enhancement cache lookups by hit/miss.",
		},
		[]string{"result"},
	)

	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "promptenhancer",
			Subsystem: "orchestrator",
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the rate limiter, by check source.",
		},
		[]string{"source"},
	)

	batchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "promptenhancer",
			Subsystem: "orchestrator",
			Name:      "batch_size",
			Help:      "Number of prompts per enhance_batch call.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)
)

func observeOutcome(outcome string, start time.Time) {
	requestsTotal.WithLabelValues(outcome).Inc()
	requestDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

func observeCacheResult(hit bool) {
	if hit {
		cacheHits.WithLabelValues("hit").Inc()
		return
	}
	cacheHits.WithLabelValues("miss").Inc()
}

func observeRateLimitRejection(source string) {
	rateLimitRejections.WithLabelValues(source).Inc()
}
