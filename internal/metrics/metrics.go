package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the KPI dashboard service.
type Metrics struct {
	// Report metrics
	ReportRequests *prometheus.CounterVec
	ReportDuration *prometheus.HistogramVec

	// Source adapter metrics
	SourceQueryDuration *prometheus.HistogramVec
	SourceFailures      *prometheus.CounterVec

	// CostDegradations counts reports served with default costs
	// because the cost source was unreachable. Operator-visible
	// signal for the degraded mode.
	CostDegradations prometheus.Counter

	// Cache metrics
	CacheLookups *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ReportRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_requests_total",
				Help:      "Total number of report requests served",
			},
			[]string{"endpoint", "status"},
		),
		ReportDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "report_duration_seconds",
				Help:      "End-to-end report computation latency",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		SourceQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "source_query_duration_seconds",
				Help:      "Per-source query latency",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"source", "query"},
		),
		SourceFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_failures_total",
				Help:      "Total number of failed source fetches",
			},
			[]string{"source"},
		),
		CostDegradations: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cost_degradations_total",
				Help:      "Reports served with default costs because the cost source failed",
			},
		),
		CacheLookups: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_cache_lookups_total",
				Help:      "Report cache lookups by outcome",
			},
			[]string{"endpoint", "outcome"},
		),
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordReport records one served report request.
func (m *Metrics) RecordReport(endpoint, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ReportRequests.WithLabelValues(endpoint, status).Inc()
	m.ReportDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObserveSourceQuery records one source fetch.
func (m *Metrics) ObserveSourceQuery(source, query string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SourceQueryDuration.WithLabelValues(source, query).Observe(duration.Seconds())
}

// RecordSourceFailure records a failed source fetch.
func (m *Metrics) RecordSourceFailure(source string) {
	if m == nil {
		return
	}
	m.SourceFailures.WithLabelValues(source).Inc()
}

// RecordCostDegradation records a report served with default costs.
func (m *Metrics) RecordCostDegradation() {
	if m == nil {
		return
	}
	m.CostDegradations.Inc()
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(endpoint, outcome).Inc()
}
