// Package metrics holds the Prometheus collectors for page analysis runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "docproof"

// Page outcomes.
const (
	StatusAnalyzed = "analyzed"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

// Metrics groups the run collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	PagesTotal         *prometheus.CounterVec
	FindingsTotal      *prometheus.CounterVec
	CheckerDuration    *prometheus.HistogramVec
	CheckerErrorsTotal *prometheus.CounterVec
	RunsTotal          *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_total",
				Help:      "Pages processed, by outcome",
			},
			[]string{"status"},
		),
		FindingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "findings_total",
				Help:      "Findings reported, by checker method",
			},
			[]string{"method"},
		),
		CheckerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "checker_duration_seconds",
				Help:      "Checker call duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"method"},
		),
		CheckerErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checker_errors_total",
				Help:      "Failed checker calls, by method",
			},
			[]string{"method"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Analysis runs, by result",
			},
			[]string{"result"}, // "ok" / "interrupted" / "error"
		),
	}
	if reg != nil {
		reg.MustRegister(m.PagesTotal, m.FindingsTotal, m.CheckerDuration, m.CheckerErrorsTotal, m.RunsTotal)
	}
	return m
}

func (m *Metrics) Page(status string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) Findings(method string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.FindingsTotal.WithLabelValues(method).Add(float64(n))
}

// CheckerCall records one checker invocation.
func (m *Metrics) CheckerCall(method string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.CheckerDuration.WithLabelValues(method).Observe(d.Seconds())
	if err != nil {
		m.CheckerErrorsTotal.WithLabelValues(method).Inc()
	}
}

func (m *Metrics) Run(result string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(result).Inc()
}
