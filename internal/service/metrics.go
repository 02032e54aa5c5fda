package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the run collectors and the registry they are exposed from.
type Metrics struct {
	registry *prometheus.Registry

	submitted *prometheus.CounterVec
	completed *prometheus.CounterVec
	fallbacks prometheus.Counter
	duration  prometheus.Histogram
}

// NewMetrics registers the collectors on reg, or on a fresh registry when
// reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: reg,
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panelsim_runs_submitted_total",
			Help: "Runs accepted for execution.",
		}, []string{"research_type"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panelsim_runs_completed_total",
			Help: "Runs that reached a terminal status.",
		}, []string{"status"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "panelsim_response_fallback_total",
			Help: "Model replies replaced by synthesized records.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "panelsim_run_duration_seconds",
			Help:    "Time from start to terminal status.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
	}
	reg.MustRegister(m.submitted, m.completed, m.fallbacks, m.duration)
	return m
}

// Registry returns the registry to serve.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
