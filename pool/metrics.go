package pool

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "rpcrelay"
	metricsSubsystem = "pool"
)

var (
	connectionsDialed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "dials_total",
			Help:      "Total number of backend dials",
		},
		[]string{"url", "result"},
	)

	connectionsTerminated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "terminations_total",
			Help:      "Total number of force-closed connections",
		},
		[]string{"url"},
	)

	acquireDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "acquire_duration_seconds",
			Help:      "Time spent acquiring a connection, dial and wait included",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"url"},
	)
)

func observeAcquire(url string, start time.Time) {
	acquireDuration.WithLabelValues(url).Observe(time.Since(start).Seconds())
}
