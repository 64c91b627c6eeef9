// Package metrics provides Prometheus metrics for EGRUL registry calls, extraction
// polling and the record cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all EGRUL metrics.
type Metrics struct {
	// Upstream call metrics
	UpstreamCallsTotal     *prometheus.CounterVec   // Registry calls by endpoint and outcome
	UpstreamCallDuration   *prometheus.HistogramVec // Registry call latency by endpoint
	FailuresTotal          *prometheus.CounterVec   // Service-level failures by operation and kind
	RequestsTotal          *prometheus.CounterVec   // Service-level requests by operation and identifier kind
	ExtractionPollsTotal   *prometheus.CounterVec   // Status checks by observed status
	ExtractionTokenRotated prometheus.Counter       // Times the registry reissued an extraction token

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec // Cache hits by backend
	CacheMissesTotal *prometheus.CounterVec // Cache misses by backend
}

// New creates a new Metrics instance registered with the default registry.
// Call it once per process.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics with reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UpstreamCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "egrul_upstream_calls_total",
			Help: "Total number of EGRUL registry calls by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),

		UpstreamCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "egrul_upstream_call_duration_seconds",
			Help:    "Duration of EGRUL registry calls by endpoint",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),

		FailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "egrul_failures_total",
			Help: "Total number of failed lookups and extractions by operation, kind and category",
		}, []string{"operation", "kind", "category"}),

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "egrul_requests_total",
			Help: "Total number of lookups and extractions by operation and identifier kind",
		}, []string{"operation", "identifier_kind"}),

		ExtractionPollsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "egrul_extraction_polls_total",
			Help: "Total number of extraction status checks by observed status",
		}, []string{"status"}),

		ExtractionTokenRotated: factory.NewCounter(prometheus.CounterOpts{
			Name: "egrul_extraction_token_rotations_total",
			Help: "Total number of extraction tokens reissued by the registry mid-handshake",
		}),

		CacheHitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "egrul_cache_hits_total",
			Help: "Total number of record cache hits by backend",
		}, []string{"backend"}),

		CacheMissesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "egrul_cache_misses_total",
			Help: "Total number of record cache misses by backend",
		}, []string{"backend"}),
	}
}

// ObserveCall records one registry call. Safe on a nil receiver.
func (m *Metrics) ObserveCall(endpoint, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.UpstreamCallsTotal.WithLabelValues(endpoint, outcome).Inc()
	m.UpstreamCallDuration.WithLabelValues(endpoint).Observe(durationSeconds)
}

// RecordRequest counts a service-level request.
func (m *Metrics) RecordRequest(operation, identifierKind string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation, identifierKind).Inc()
}

// RecordFailure counts a failed service-level request.
func (m *Metrics) RecordFailure(operation, kind, category string) {
	if m == nil {
		return
	}
	m.FailuresTotal.WithLabelValues(operation, kind, category).Inc()
}

// RecordPoll counts one extraction status check.
func (m *Metrics) RecordPoll(status string) {
	if m == nil {
		return
	}
	m.ExtractionPollsTotal.WithLabelValues(status).Inc()
}

// RecordTokenRotation counts a reissued extraction token.
func (m *Metrics) RecordTokenRotation() {
	if m == nil {
		return
	}
	m.ExtractionTokenRotated.Inc()
}

// RecordCacheHit records a cache hit for the given backend.
func (m *Metrics) RecordCacheHit(backend string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(backend).Inc()
}

// RecordCacheMiss records a cache miss for the given backend.
func (m *Metrics) RecordCacheMiss(backend string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(backend).Inc()
}
