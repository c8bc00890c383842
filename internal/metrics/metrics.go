// Package metrics exposes Prometheus instrumentation for the
// validation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all validator collectors.
type Metrics struct {
	ValidationsTotal  *prometheus.CounterVec
	ValidationSeconds prometheus.Histogram
	ComponentFailures *prometheus.CounterVec
	HistorySize       prometheus.Gauge
	QualityScore      prometheus.Histogram
}

// New creates and registers the validator collectors on the given
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ValidationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "validator",
			Name:      "validations_total",
			Help:      "Completed validation runs by final status.",
		}, []string{"status"}),
		ValidationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "validator",
			Name:      "validation_duration_seconds",
			Help:      "Wall-clock duration of validation runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		ComponentFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "validator",
			Name:      "component_failures_total",
			Help:      "Failed validation components by component name.",
		}, []string{"component"}),
		HistorySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "validator",
			Name:      "history_size",
			Help:      "Validation records currently retained in history.",
		}),
		QualityScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "validator",
			Name:      "quality_score",
			Help:      "Distribution of aggregate quality scores.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
	}

	reg.MustRegister(
		m.ValidationsTotal,
		m.ValidationSeconds,
		m.ComponentFailures,
		m.HistorySize,
		m.QualityScore,
	)

	return m
}
