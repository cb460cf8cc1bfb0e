package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "rpcrelay"
	metricsSubsystem = "proxy"
)

var (
	coalescedCalls = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "coalesced_calls_total",
			Help:      "Total number of calls answered by another in-flight upstream call",
		},
	)

	upstreamFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "upstream_failures_total",
			Help:      "Total number of upstream calls that failed after every attempt",
		},
		[]string{"url"},
	)
)
