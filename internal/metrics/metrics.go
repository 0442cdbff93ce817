// Package metrics exposes Prometheus instrumentation for analysis runs and
// the HTTP API.
package metrics

import (
	"time"

	"gobiodiv/domain/stats"
	apperrors "gobiodiv/internal/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gobiodiv"

// RunMetrics holds the counters and histograms for analysis runs.
// It satisfies analysis.Observer.
type RunMetrics struct {
	// RunsTotal counts runs by status (success, invalid_input, error)
	RunsTotal *prometheus.CounterVec

	// RunDurationSeconds measures engine wall time
	RunDurationSeconds prometheus.Histogram

	// PermutationsTotal counts permutation draws performed
	PermutationsTotal prometheus.Counter

	// DiagnosticsTotal counts advisories by category and scale
	DiagnosticsTotal *prometheus.CounterVec

	// CacheLookupsTotal counts result cache lookups by outcome (hit, miss)
	CacheLookupsTotal *prometheus.CounterVec
}

// NewRunMetrics registers the run metrics with reg
func NewRunMetrics(reg prometheus.Registerer) *RunMetrics {
	factory := promauto.With(reg)
	return &RunMetrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Analysis runs by status",
		}, []string{"status"}),
		RunDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "run_duration_seconds",
			Help:      "Wall time of analysis runs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PermutationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "permutations_total",
			Help:      "Permutation draws performed",
		}),
		DiagnosticsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "diagnostics_total",
			Help:      "Advisory diagnostics raised by category and scale",
		}, []string{"category", "scale"}),
		CacheLookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveRun records one finished run
func (m *RunMetrics) ObserveRun(bundle *stats.ResultBundle, elapsed time.Duration, err error) {
	m.RunDurationSeconds.Observe(elapsed.Seconds())
	switch {
	case err == nil:
		m.RunsTotal.WithLabelValues("success").Inc()
	case apperrors.Is(err, apperrors.CodeInvalidInput):
		m.RunsTotal.WithLabelValues("invalid_input").Inc()
	default:
		m.RunsTotal.WithLabelValues("error").Inc()
	}
	if bundle == nil {
		return
	}
	m.PermutationsTotal.Add(float64(bundle.Params().NPerm))
	for _, d := range bundle.Diagnostics() {
		m.DiagnosticsTotal.WithLabelValues(string(d.Category), string(d.Scale)).Inc()
	}
}

// CacheLookup records a result cache hit or miss
func (m *RunMetrics) CacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(outcome).Inc()
}
