package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "rpcrelay"
	metricsSubsystem = "upstream"
)

var (
	circuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "circuit_state",
			Help:      "Breaker state per upstream (0 closed, 1 open, 2 half-open)",
		},
		[]string{"upstream"},
	)

	circuitOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "circuit_opened_total",
			Help:      "Total number of times a circuit breaker opened",
		},
		[]string{"upstream"},
	)

	bulkheadRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "bulkhead_rejected_total",
			Help:      "Total number of upstream calls rejected for lack of a slot",
		},
		[]string{"upstream"},
	)

	upstreamRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "retries_total",
			Help:      "Total number of upstream call retries",
		},
		[]string{"upstream"},
	)
)
