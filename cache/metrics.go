package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "rpcrelay"
	metricsSubsystem = "cache"

	// Result labels for metrics
	resultSuccess = "success"
	resultFailure = "failure"
)

var (
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"tier"},
	)

	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "misses_total",
			Help:      "Total number of lookups that missed every tier",
		},
	)

	cacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "writes_total",
			Help:      "Total number of tier writes",
		},
		[]string{"tier", "result"},
	)

	cacheSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "skipped_total",
			Help:      "Total number of responses not cached",
		},
		[]string{"reason"},
	)

	lastIrreversibleBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "last_irreversible_block",
			Help:      "Last irreversible block number observed by the cache group",
		},
	)
)
