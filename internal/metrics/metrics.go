// Package metrics holds the Prometheus collectors pxd records into.
// All methods are safe on a nil *Metrics, so components can run without one.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pxd"

// Metrics groups every collector. Build it once with New and hand it to the
// components that record into it.
type Metrics struct {
	remoteExec      *prometheus.HistogramVec
	cacheRequests   *prometheus.CounterVec
	cacheEvictions  prometheus.Counter
	aggregatePass   *prometheus.HistogramVec
	aggregateWarns  *prometheus.CounterVec
	scriptRuns      *prometheus.CounterVec
	suggestRequests *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		remoteExec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_exec_seconds",
			Help:      "Duration of remote command executions.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		}, []string{"op", "outcome"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Cache lookups by query class and result.",
		}, []string{"class", "result"}),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries removed by sweeps or the capacity bound.",
		}),
		aggregatePass: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregate_pass_seconds",
			Help:      "Duration of uncached aggregate passes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"aggregate"}),
		aggregateWarns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregate_warnings_total",
			Help:      "Targets or checks dropped from an aggregate.",
		}, []string{"aggregate"}),
		scriptRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "script_runs_total",
			Help:      "Local maintenance script runs by outcome.",
		}, []string{"script", "outcome"}),
		suggestRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggest_requests_total",
			Help:      "Calls to the suggestion endpoint by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"route", "code"}),
	}

	reg.MustRegister(
		m.remoteExec,
		m.cacheRequests,
		m.cacheEvictions,
		m.aggregatePass,
		m.aggregateWarns,
		m.scriptRuns,
		m.suggestRequests,
		m.httpRequests,
	)
	return m
}

// ObserveRemote records one remote call. outcome is ok, failed, timeout or launch_error.
func (m *Metrics) ObserveRemote(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.remoteExec.WithLabelValues(op, outcome).Observe(d.Seconds())
}

// CacheHit counts a fresh lookup for class.
func (m *Metrics) CacheHit(class string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(class, "hit").Inc()
}

// CacheMiss counts an absent or stale lookup for class.
func (m *Metrics) CacheMiss(class string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(class, "miss").Inc()
}

// CacheEvicted counts n removed entries.
func (m *Metrics) CacheEvicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cacheEvictions.Add(float64(n))
}

// ObservePass records an aggregate pass and the warnings it produced.
func (m *Metrics) ObservePass(aggregate string, d time.Duration, warnings int) {
	if m == nil {
		return
	}
	m.aggregatePass.WithLabelValues(aggregate).Observe(d.Seconds())
	if warnings > 0 {
		m.aggregateWarns.WithLabelValues(aggregate).Add(float64(warnings))
	}
}

// ScriptRun counts a script run.
func (m *Metrics) ScriptRun(script string, success bool) {
	if m == nil {
		return
	}
	m.scriptRuns.WithLabelValues(script, outcome(success)).Inc()
}

// SuggestRequest counts a suggestion call. outcome is ok, error or open (breaker).
func (m *Metrics) SuggestRequest(result string) {
	if m == nil {
		return
	}
	m.suggestRequests.WithLabelValues(result).Inc()
}

// HTTPRequest counts an API request.
func (m *Metrics) HTTPRequest(route, code string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, code).Inc()
}

func outcome(success bool) string {
	if success {
		return "ok"
	}
	return "failed"
}
