package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRemote("status", "ok", 120*time.Millisecond)
	m.CacheHit("overview:system")
	m.CacheHit("overview:system")
	m.CacheMiss("target")
	m.CacheEvicted(3)
	m.ObservePass("system", time.Second, 2)
	m.ScriptRun("cleanup", false)
	m.SuggestRequest("ok")
	m.HTTPRequest("/api/host", "200")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues("overview:system", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues("target", "miss")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.cacheEvictions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.aggregateWarns.WithLabelValues("system")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scriptRuns.WithLabelValues("cleanup", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.suggestRequests.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/host", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.remoteExec))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRemote("status", "ok", time.Second)
		m.CacheHit("x")
		m.CacheMiss("x")
		m.CacheEvicted(1)
		m.ObservePass("system", time.Second, 1)
		m.ScriptRun("x", true)
		m.SuggestRequest("ok")
		m.HTTPRequest("/", "200")
	})
}
