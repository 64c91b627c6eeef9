package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecording(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.ObserveCall("search", "ok", 0.12)
	m.ObserveCall("search", "ok", 0.08)
	m.ObserveCall("vyp-status", "rejected", 0.3)
	m.RecordPoll("pending")
	m.RecordPoll("pending")
	m.RecordPoll("ready")
	m.RecordTokenRotation()
	m.RecordCacheHit("memory")
	m.RecordCacheMiss("redis")
	m.RecordRequest("lookup", "inn")
	m.RecordFailure("extraction", "user", "extraction_not_ready")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UpstreamCallsTotal.WithLabelValues("search", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamCallsTotal.WithLabelValues("vyp-status", "rejected")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExtractionPollsTotal.WithLabelValues("pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionPollsTotal.WithLabelValues("ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionTokenRotated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("memory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("redis")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("lookup", "inn")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FailuresTotal.WithLabelValues("extraction", "user", "extraction_not_ready")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveCall("search", "ok", 0.1)
		m.RecordPoll("ready")
		m.RecordTokenRotation()
		m.RecordCacheHit("memory")
		m.RecordCacheMiss("memory")
		m.RecordRequest("lookup", "inn")
		m.RecordFailure("lookup", "internal", "malformed_response")
	})
}
