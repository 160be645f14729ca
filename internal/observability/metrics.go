package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// analytics service.
type Metrics struct {
	// Load metrics.
	RowsLoaded      *prometheus.CounterVec // labels: dataset={social,env}
	RowsQuarantined *prometheus.CounterVec // labels: dataset={social,env}

	// Normalization metrics.
	RegionAmbiguities prometheus.Counter
	RegionsUnknown    prometheus.Counter

	// Snapshot build metrics.
	SnapshotBuilds        *prometheus.CounterVec // labels: outcome={success,error}
	SnapshotBuildDuration prometheus.Histogram
	SnapshotJoinedMetrics prometheus.Gauge
	SnapshotCoverageGaps  prometheus.Gauge
	SnapshotRecords       *prometheus.GaugeVec // labels: dataset={social,env}

	// Query metrics.
	Queries                  *prometheus.CounterVec   // labels: op
	QueryDuration            *prometheus.HistogramVec // labels: op
	QueryCache               *prometheus.CounterVec   // labels: result={hit,miss}
	CorrelationsInsufficient prometheus.Counter

	// Streaming metrics.
	PostsConsumed    prometheus.Counter
	MetricsPublished prometheus.Counter
	RefresherRunning prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate_trends",
			Name:      "rows_loaded_total",
			Help:      "Rows surviving validation, by dataset.",
		}, []string{"dataset"}),
		RowsQuarantined: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate_trends",
			Name:      "rows_quarantined_total",
			Help:      "Rows rejected during validation, by dataset.",
		}, []string{"dataset"}),
		RegionAmbiguities: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "climate_trends",
			Name:      "region_ambiguities_total",
			Help:      "Raw regions matching more than one canonical candidate.",
		}),
		RegionsUnknown: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "climate_trends",
			Name:      "regions_unknown_total",
			Help:      "Raw regions that resolved to the unknown sentinel.",
		}),
		SnapshotBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate_trends",
			Name:      "snapshot_builds_total",
			Help:      "Snapshot build attempts by outcome.",
		}, []string{"outcome"}),
		SnapshotBuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "climate_trends",
			Name:      "snapshot_build_duration_seconds",
			Help:      "Duration of a complete load-normalize-join pass.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SnapshotJoinedMetrics: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "climate_trends",
			Name:      "snapshot_joined_metrics",
			Help:      "Joined metric rows in the current snapshot.",
		}),
		SnapshotCoverageGaps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "climate_trends",
			Name:      "snapshot_coverage_gaps",
			Help:      "Coverage gaps in the current snapshot.",
		}),
		SnapshotRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "climate_trends",
			Name:      "snapshot_records",
			Help:      "Normalized records in the current snapshot, by dataset.",
		}, []string{"dataset"}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate_trends",
			Name:      "queries_total",
			Help:      "Query operations served, by operation.",
		}, []string{"op"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "climate_trends",
			Name:      "query_duration_seconds",
			Help:      "Query evaluation duration by operation.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"op"}),
		QueryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate_trends",
			Name:      "query_cache_total",
			Help:      "Query result cache lookups by result.",
		}, []string{"result"}),
		CorrelationsInsufficient: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "climate_trends",
			Name:      "correlations_insufficient_total",
			Help:      "Correlation requests answered with insufficient data.",
		}),
		PostsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "climate_trends",
			Name:      "posts_consumed_total",
			Help:      "Social posts read from the ingest topic.",
		}),
		MetricsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "climate_trends",
			Name:      "metrics_published_total",
			Help:      "Joined metrics written to the publish topic.",
		}),
		RefresherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "climate_trends",
			Name:      "refresher_running",
			Help:      "1 when the refresh loop is active, 0 when shut down.",
		}),
	}

	prometheus.MustRegister(
		m.RowsLoaded,
		m.RowsQuarantined,
		m.RegionAmbiguities,
		m.RegionsUnknown,
		m.SnapshotBuilds,
		m.SnapshotBuildDuration,
		m.SnapshotJoinedMetrics,
		m.SnapshotCoverageGaps,
		m.SnapshotRecords,
		m.Queries,
		m.QueryDuration,
		m.QueryCache,
		m.CorrelationsInsufficient,
		m.PostsConsumed,
		m.MetricsPublished,
		m.RefresherRunning,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RowsLoaded:               prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "climate_trends", Name: "rows_loaded_total"}, []string{"dataset"}),
		RowsQuarantined:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "climate_trends", Name: "rows_quarantined_total"}, []string{"dataset"}),
		RegionAmbiguities:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "climate_trends", Name: "region_ambiguities_total"}),
		RegionsUnknown:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: "climate_trends", Name: "regions_unknown_total"}),
		SnapshotBuilds:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "climate_trends", Name: "snapshot_builds_total"}, []string{"outcome"}),
		SnapshotBuildDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "climate_trends", Name: "snapshot_build_duration_seconds"}),
		SnapshotJoinedMetrics:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "climate_trends", Name: "snapshot_joined_metrics"}),
		SnapshotCoverageGaps:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "climate_trends", Name: "snapshot_coverage_gaps"}),
		SnapshotRecords:          prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "climate_trends", Name: "snapshot_records"}, []string{"dataset"}),
		Queries:                  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "climate_trends", Name: "queries_total"}, []string{"op"}),
		QueryDuration:            prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "climate_trends", Name: "query_duration_seconds"}, []string{"op"}),
		QueryCache:               prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "climate_trends", Name: "query_cache_total"}, []string{"result"}),
		CorrelationsInsufficient: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "climate_trends", Name: "correlations_insufficient_total"}),
		PostsConsumed:            prometheus.NewCounter(prometheus.CounterOpts{Namespace: "climate_trends", Name: "posts_consumed_total"}),
		MetricsPublished:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "climate_trends", Name: "metrics_published_total"}),
		RefresherRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "climate_trends", Name: "refresher_running"}),
	}
}
