// Package metrics holds the prometheus collectors of the prediction service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts predictions and cache lookups per task.
type Metrics struct {
	Predictions *prometheus.CounterVec
	Errors      *prometheus.CounterVec
	Latency     *prometheus.HistogramVec
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marabou",
			Name:      "predictions_total",
			Help:      "Texts predicted, by task.",
		}, []string{"task"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marabou",
			Name:      "prediction_errors_total",
			Help:      "Failed prediction requests, by task.",
		}, []string{"task"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marabou",
			Name:      "prediction_duration_seconds",
			Help:      "Time spent predicting one request, by task.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marabou",
			Name:      "cache_hits_total",
			Help:      "Prediction cache hits, by task.",
		}, []string{"task"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marabou",
			Name:      "cache_misses_total",
			Help:      "Prediction cache misses, by task.",
		}, []string{"task"}),
	}
	if reg != nil {
		reg.MustRegister(m.Predictions, m.Errors, m.Latency, m.CacheHits, m.CacheMisses)
	}
	return m
}

// Observe records one request of n texts for task that started at start.
func (m *Metrics) Observe(task string, n int, start time.Time, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Errors.WithLabelValues(task).Inc()
		return
	}
	m.Predictions.WithLabelValues(task).Add(float64(n))
	m.Latency.WithLabelValues(task).Observe(time.Since(start).Seconds())
}

// Cache records a cache lookup for task.
func (m *Metrics) Cache(task string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.WithLabelValues(task).Inc()
	} else {
		m.CacheMisses.WithLabelValues(task).Inc()
	}
}
