package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// early-warning pipeline.
type Metrics struct {
	// RegionsProcessed counts per-region outcomes; labels: stage={risk,alert,forecast}, outcome={ok,skipped}.
	RegionsProcessed *prometheus.CounterVec

	// DocumentsWritten counts upserts; labels: collection={risk_scores,alerts,forecasts}.
	DocumentsWritten *prometheus.CounterVec

	// StageDuration observes wall time per stage; labels: stage.
	StageDuration *prometheus.HistogramVec

	// ForecastFallbacks counts regions where the statistical fit fell back
	// to the naive strategy.
	ForecastFallbacks prometheus.Counter

	// DispatchFailures counts alert batches the notification dispatcher
	// rejected. Dispatch failures never fail the pipeline.
	DispatchFailures prometheus.Counter

	// PipelineRunning is 1 while a pipeline invocation is in flight.
	PipelineRunning prometheus.Gauge

	// PipelineRuns counts completed invocations; labels: outcome={ok,error}.
	PipelineRuns *prometheus.CounterVec
}

func newMetrics() *Metrics {
	return &Metrics{
		RegionsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epi_engine",
			Name:      "regions_processed_total",
			Help:      "Per-region outcomes by pipeline stage.",
		}, []string{"stage", "outcome"}),
		DocumentsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epi_engine",
			Name:      "documents_written_total",
			Help:      "Documents upserted by collection.",
		}, []string{"collection"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "epi_engine",
			Name:      "stage_duration_seconds",
			Help:      "Duration of one pipeline stage across all regions.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		ForecastFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "epi_engine",
			Name:      "forecast_fallbacks_total",
			Help:      "Regions where the statistical fit fell back to the naive strategy.",
		}),
		DispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "epi_engine",
			Name:      "alert_dispatch_failures_total",
			Help:      "Alert batches the notification dispatcher failed to deliver.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "epi_engine",
			Name:      "pipeline_running",
			Help:      "1 while a pipeline invocation is in flight.",
		}),
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epi_engine",
			Name:      "pipeline_runs_total",
			Help:      "Completed pipeline invocations by outcome.",
		}, []string{"outcome"}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RegionsProcessed,
		m.DocumentsWritten,
		m.StageDuration,
		m.ForecastFallbacks,
		m.DispatchFailures,
		m.PipelineRunning,
		m.PipelineRuns,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
