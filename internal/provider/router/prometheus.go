package router

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// promRegisterer is the subset of prometheus.Registerer the router needs.
type promRegisterer interface {
	MustRegister(...prometheus.Collector)
}

// promMetrics exports router activity to Prometheus.
type promMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	failovers *prometheus.CounterVec
}

func newPromMetrics(reg promRegisterer) *promMetrics {
	m := &promMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sable",
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Completion requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sable",
			Subsystem: "provider",
			Name:      "request_seconds",
			Help:      "Completion request latency by provider.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"provider"}),
		failovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sable",
			Subsystem: "provider",
			Name:      "failovers_total",
			Help:      "Failover attempts by failed and fallback provider.",
		}, []string{"from", "to"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.latency, m.failovers)
	}
	return m
}

func (m *promMetrics) observe(name string, success bool, elapsed time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.requests.WithLabelValues(name, outcome).Inc()
	m.latency.WithLabelValues(name).Observe(elapsed.Seconds())
}
