package events

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	enqueueTotal  *prometheus.CounterVec
	dispatchTotal *prometheus.CounterVec
	deadTotal     *prometheus.CounterVec

	dispatchLatency *prometheus.HistogramVec

	statusDepth *prometheus.GaugeVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		enqueueTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "events",
			Name:      "enqueue_total",
			Help:      "Total number of durable events enqueued.",
		}, []string{"name"}),
		dispatchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "events",
			Name:      "dispatch_total",
			Help:      "Total number of sweep dispatch attempts.",
		}, []string{"name", "result"}),
		deadTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "events",
			Name:      "dead_total",
			Help:      "Total number of events that failed with no retry budget left.",
		}, []string{"name"}),
		dispatchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "events",
			Name:      "dispatch_latency_seconds",
			Help:      "Latency distribution for sweep dispatch.",
			Buckets: []float64{
				0.001, 0.002, 0.005,
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5, 10,
			},
		}, []string{"name", "result"}),
		statusDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "events",
			Name:      "status_depth",
			Help:      "Current number of event records per status.",
		}, []string{"status"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
