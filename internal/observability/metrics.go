package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hurdat_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for a run.
type Metrics struct {
	LinesRead       prometheus.Counter
	MalformedLines  prometheus.Counter
	StormsAssembled prometheus.Counter
	EmptyStorms     prometheus.Counter
	PipelineRunning prometheus.Gauge

	ObservationsLoaded prometheus.Counter

	// Per-profile metrics.
	StormsFiltered  *prometheus.CounterVec // labels: profile
	SummariesLoaded *prometheus.CounterVec // labels: profile
	MaxScale        *prometheus.GaugeVec   // labels: profile

	// Load metrics.
	LoadErrors   prometheus.Counter
	BatchSize    prometheus.Histogram
	LoadDuration prometheus.Histogram

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss,shared_hit,shared_miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as many
// as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withBuckets bool) *Metrics {
	batchBuckets := []float64{1, 5, 10, 20, 30, 40, 50, 75, 100}
	loadBuckets := []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10}
	apiBuckets := []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	if !withBuckets {
		batchBuckets, loadBuckets, apiBuckets = nil, nil, nil
	}

	return &Metrics{
		LinesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_read_total",
			Help:      "Total dataset lines read.",
		}),
		MalformedLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_lines_total",
			Help:      "Lines rejected as malformed records.",
		}),
		StormsAssembled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storms_assembled_total",
			Help:      "Storm records closed by the assembler.",
		}),
		EmptyStorms: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_storms_total",
			Help:      "Storm records with no observations.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		ObservationsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_loaded_total",
			Help:      "Observation records written to every sink that takes them.",
		}),
		StormsFiltered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storms_filtered_total",
			Help:      "Storms with no observation matching a profile.",
		}, []string{"profile"}),
		SummariesLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_loaded_total",
			Help:      "Storm summaries written to every sink.",
		}, []string{"profile"}),
		MaxScale: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "max_scale",
			Help:      "Largest track scale seen for a profile in the last run.",
		}, []string{"profile"}),
		LoadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_errors_total",
			Help:      "Failed batch loads, including retried ones.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of summaries per loaded batch.",
			Buckets:   batchBuckets,
		}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Duration of a batch load across all sinks.",
			Buckets:   loadBuckets,
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   apiBuckets,
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.LinesRead,
		m.MalformedLines,
		m.StormsAssembled,
		m.EmptyStorms,
		m.PipelineRunning,
		m.ObservationsLoaded,
		m.StormsFiltered,
		m.SummariesLoaded,
		m.MaxScale,
		m.LoadErrors,
		m.BatchSize,
		m.LoadDuration,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}
