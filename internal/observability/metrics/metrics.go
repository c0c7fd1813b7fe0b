package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "natal_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	chartComputeTotal   *prometheus.CounterVec
	chartComputeLatency *prometheus.HistogramVec

	ephemerisFallbackTotal *prometheus.CounterVec

	validationFindingsTotal *prometheus.CounterVec

	chartCacheRequests *prometheus.CounterVec

	transitSamplesTotal *prometheus.CounterVec
	solarReturnResidual prometheus.Histogram

	chartExportTotal   *prometheus.CounterVec
	chartExportLatency *prometheus.HistogramVec
)

// Init registers engine metrics and, when db is set, DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		chartComputeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "chart_compute_total",
				Help: "Total natal chart computations by result",
			},
			[]string{"result"},
		)
		chartComputeLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "chart_compute_latency_seconds",
				Help:    "Natal chart computation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		ephemerisFallbackTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ephemeris_fallback_total",
				Help: "Position lookups served by the lower-precision provider",
			},
			[]string{"body"},
		)

		validationFindingsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "validation_findings_total",
				Help: "Validator findings by severity and code",
			},
			[]string{"severity", "code"},
		)

		chartCacheRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "chart_cache_requests_total",
				Help: "Chart cache lookups by outcome",
			},
			[]string{"outcome"},
		)

		transitSamplesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transit_samples_total",
				Help: "Ephemeris samples evaluated by event searches",
			},
			[]string{"search", "result"},
		)
		solarReturnResidual = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "solar_return_residual_degrees",
				Help:    "Residual Sun distance at the located solar return instant",
				Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.5, 1},
			},
		)

		chartExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "chart_export_total",
				Help: "Total chart export operations by format and result",
			},
			[]string{"format", "result"},
		)
		chartExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "chart_export_latency_seconds",
				Help:    "Chart export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			chartComputeTotal,
			chartComputeLatency,
			ephemerisFallbackTotal,
			validationFindingsTotal,
			chartCacheRequests,
			transitSamplesTotal,
			solarReturnResidual,
			chartExportTotal,
			chartExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveChartCompute records chart computation duration and result.
func ObserveChartCompute(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if chartComputeTotal != nil {
		chartComputeTotal.WithLabelValues(result).Inc()
	}
	if chartComputeLatency != nil {
		chartComputeLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncEphemerisFallback counts a lookup answered by the fallback provider.
func IncEphemerisFallback(body string) {
	if body == "" {
		body = "unknown"
	}
	if ephemerisFallbackTotal != nil {
		ephemerisFallbackTotal.WithLabelValues(body).Inc()
	}
}

// AddValidationFindings adds count findings of one severity and code.
func AddValidationFindings(severity, code string, count int) {
	if count <= 0 {
		return
	}
	if code == "" {
		code = "unknown"
	}
	if validationFindingsTotal != nil {
		validationFindingsTotal.WithLabelValues(severity, code).Add(float64(count))
	}
}

// IncChartCache counts a cache lookup outcome (hit, miss, shared).
func IncChartCache(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if chartCacheRequests != nil {
		chartCacheRequests.WithLabelValues(outcome).Inc()
	}
}

// AddTransitSamples counts ephemeris samples used by a search.
func AddTransitSamples(search, result string, count int) {
	if count <= 0 {
		return
	}
	if result == "" {
		result = resultSuccess
	}
	if transitSamplesTotal != nil {
		transitSamplesTotal.WithLabelValues(search, result).Add(float64(count))
	}
}

// ObserveSolarReturnResidual records the precision of a solar return search.
func ObserveSolarReturnResidual(degrees float64) {
	if solarReturnResidual != nil {
		solarReturnResidual.Observe(degrees)
	}
}

// ObserveChartExport records export latency and result.
func ObserveChartExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if chartExportTotal != nil {
		chartExportTotal.WithLabelValues(format, result).Inc()
	}
	if chartExportLatency != nil {
		chartExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheShared = "shared"
)
