// Package metrics exports discovery run results as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
)

// Ensure RunMetrics implements the interface.
var _ driven.RunObserver = (*RunMetrics)(nil)

const namespace = "mosaic"

// RunMetrics records finished runs.
type RunMetrics struct {
	gatherer prometheus.Gatherer

	runs           *prometheus.CounterVec
	duration       prometheus.Histogram
	items          *prometheus.CounterVec
	candidates     prometheus.Counter
	providerErrors *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	storeErrors    prometheus.Counter
	lastRun        prometheus.Gauge
}

// NewRunMetrics registers the run metrics on a fresh registry, together
// with the Go and process collectors.
func NewRunMetrics() *RunMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return newRunMetrics(reg, reg)
}

func newRunMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) *RunMetrics {
	f := promauto.With(reg)
	return &RunMetrics{
		gatherer: gatherer,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Discovery runs by final status.",
		}, []string{"status"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a discovery run.",
			Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		items: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Candidates persisted by outcome.",
		}, []string{"outcome"}),
		candidates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Hits returned by providers.",
		}),
		providerErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider failures by provider id.",
		}, []string{"provider"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_total",
			Help:      "Hits dropped or degraded by stage.",
		}, []string{"stage"}),
		storeErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Items that failed to persist.",
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Finish time of the most recent run.",
		}),
	}
}

// ObserveRun records one finished run.
func (m *RunMetrics) ObserveRun(r *domain.RunResult) {
	if r == nil {
		return
	}
	m.runs.WithLabelValues(string(r.Status)).Inc()
	if d := r.Duration(); d > 0 {
		m.duration.Observe(d.Seconds())
	}
	m.items.WithLabelValues(string(domain.OutcomeNew)).Add(float64(r.ItemsNew))
	m.items.WithLabelValues(string(domain.OutcomeMerged)).Add(float64(r.ItemsMerged))
	m.candidates.Add(float64(r.TotalCandidates))
	for id := range r.ProviderErrors {
		m.providerErrors.WithLabelValues(id).Inc()
	}
	m.dropped.WithLabelValues("normalize").Add(float64(r.ValidationErrors))
	m.dropped.WithLabelValues("extract").Add(float64(r.ExtractionErrors))
	m.dropped.WithLabelValues("tag").Add(float64(r.TaggingErrors))
	m.storeErrors.Add(float64(len(r.StoreErrors)))
	if !r.FinishedAt.IsZero() {
		m.lastRun.Set(float64(r.FinishedAt.Unix()))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *RunMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
