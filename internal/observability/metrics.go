package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "municipal_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL jobs and the data API.
type Metrics struct {
	// Statistics API metrics.
	APIRequests *prometheus.CounterVec   // labels: band, outcome={success,error}
	APIDuration *prometheus.HistogramVec // labels: band

	// Population pipeline metrics.
	PopulationRowsLoaded prometheus.Counter
	BandsSkipped         prometheus.Counter
	RunDuration          *prometheus.HistogramVec // labels: job={population,contracts}
	LastSuccess          *prometheus.GaugeVec     // labels: job
	PipelineRunning      prometheus.Gauge

	// Contract cleanup metrics.
	ContractsParsed     prometheus.Counter
	ContractsSkipped    prometheus.Counter
	ContractsPublished  prometheus.Counter
	UnmatchedMunicipios prometheus.Counter

	// Data API metrics.
	HTTPRequests *prometheus.CounterVec // labels: route, code
}

func newMetrics() *Metrics {
	return &Metrics{
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sidra_requests_total",
			Help:      "Statistics API requests by age band and outcome.",
		}, []string{"band", "outcome"}),
		APIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sidra_request_duration_seconds",
			Help:      "Statistics API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"band"}),
		PopulationRowsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "population_rows_loaded_total",
			Help:      "Population rows written to the database.",
		}),
		BandsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "population_bands_skipped_total",
			Help:      "Age bands skipped after exhausting retries.",
		}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete pipeline run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"job"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful pipeline run.",
		}, []string{"job"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress.",
		}),
		ContractsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contracts_parsed_total",
			Help:      "Contract rows kept by the export parser.",
		}),
		ContractsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contracts_skipped_total",
			Help:      "Malformed contract rows dropped by the export parser.",
		}),
		ContractsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contracts_published_total",
			Help:      "Cleaned contracts written to the contracts topic.",
		}),
		UnmatchedMunicipios: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unmatched_municipalities_total",
			Help:      "Normalized municipality names with no gazetteer entry.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Data API requests by route and status code.",
		}, []string{"route", "code"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.APIRequests,
		m.APIDuration,
		m.PopulationRowsLoaded,
		m.BandsSkipped,
		m.RunDuration,
		m.LastSuccess,
		m.PipelineRunning,
		m.ContractsParsed,
		m.ContractsSkipped,
		m.ContractsPublished,
		m.UnmatchedMunicipios,
		m.HTTPRequests,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
