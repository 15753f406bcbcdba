package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// fetch pipeline.
type Metrics struct {
	APIRequests    *prometheus.CounterVec // labels: endpoint={stations,data}, outcome={success,transient,error,empty}
	APIRetries     prometheus.Counter
	PagesFetched   prometheus.Counter
	RecordsFetched prometheus.Counter

	StatesCompleted prometheus.Counter
	StatesSkipped   prometheus.Counter
	StateDuration   prometheus.Histogram
	PipelineRunning prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ghcnd",
			Name:      "api_requests_total",
			Help:      "CDO API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		APIRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ghcnd",
			Name:      "api_retries_total",
			Help:      "Retries after rate-limit or transient upstream failures.",
		}),
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ghcnd",
			Name:      "pages_fetched_total",
			Help:      "Result pages consumed across all paginated requests.",
		}),
		RecordsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ghcnd",
			Name:      "records_fetched_total",
			Help:      "Daily observation records fetched from the API.",
		}),
		StatesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ghcnd",
			Name:      "states_completed_total",
			Help:      "States whose period summary was written.",
		}),
		StatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ghcnd",
			Name:      "states_skipped_total",
			Help:      "States skipped due to errors or missing data.",
		}),
		StateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ghcnd",
			Name:      "state_duration_seconds",
			Help:      "Duration of a complete per-state catalog-fetch-aggregate cycle.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ghcnd",
			Name:      "pipeline_running",
			Help:      "1 while the fetch run is active, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.APIRequests,
		m.APIRetries,
		m.PagesFetched,
		m.RecordsFetched,
		m.StatesCompleted,
		m.StatesSkipped,
		m.StateDuration,
		m.PipelineRunning,
	)

	return m
}

// NewMetricsForTesting creates Metrics with no registration to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		APIRequests:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "ghcnd", Name: "api_requests_total"}, []string{"endpoint", "outcome"}),
		APIRetries:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "ghcnd", Name: "api_retries_total"}),
		PagesFetched:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "ghcnd", Name: "pages_fetched_total"}),
		RecordsFetched:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "ghcnd", Name: "records_fetched_total"}),
		StatesCompleted: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "ghcnd", Name: "states_completed_total"}),
		StatesSkipped:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "ghcnd", Name: "states_skipped_total"}),
		StateDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "ghcnd", Name: "state_duration_seconds"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "ghcnd", Name: "pipeline_running"}),
	}
}
