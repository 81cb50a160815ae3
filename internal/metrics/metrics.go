// Package metrics exposes crawlforge's Prometheus counters and histograms:
// crawl outcomes, dispatcher routing decisions, job retention, and toolbag
// usage. Callers register once via NewRegistry and hand the *Metrics value
// to each subsystem that records against it.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups every counter/histogram crawlforge records. Subsystems
// record through the Record* methods below; the fields are exported so the
// collectors can also be read directly, as the tests do.
type Metrics struct {
	CrawlsTotal      *prometheus.CounterVec
	CrawlDuration    *prometheus.HistogramVec
	DispatchDecision *prometheus.CounterVec
	JobsRetained     *prometheus.CounterVec
	ToolbagCalls     *prometheus.CounterVec
	SessionPoolSize  prometheus.Gauge
}

// NewRegistry builds a fresh *Metrics and registers it on reg.
func NewRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CrawlsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawlforge_crawls_total",
			Help: "Total crawls by outcome (success/failure) and error kind.",
		}, []string{"outcome", "error_kind"}),

		CrawlDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawlforge_crawl_duration_seconds",
			Help:    "Crawl wall-clock duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"javascript", "screenshot"}),

		DispatchDecision: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawlforge_dispatch_decisions_total",
			Help: "Dispatcher routing decisions (sync vs async) by reason.",
		}, []string{"mode", "reason"}),

		JobsRetained: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawlforge_jobs_deleted_total",
			Help: "Jobs removed by retention cleanup by job type.",
		}, []string{"job_type"}),

		ToolbagCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawlforge_toolbag_calls_total",
			Help: "Tool invocations through the toolbag by tool name and outcome.",
		}, []string{"tool", "outcome"}),

		SessionPoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawlforge_session_pool_size",
			Help: "Current number of live browser sessions in the pool.",
		}),
	}

	reg.MustRegister(m.CrawlsTotal, m.CrawlDuration, m.DispatchDecision, m.JobsRetained, m.ToolbagCalls, m.SessionPoolSize)
	return m
}

// RecordCrawl increments CrawlsTotal and observes CrawlDuration for one
// finished crawl.
func (m *Metrics) RecordCrawl(success bool, errorKind string, javascript, screenshot bool, durationSeconds float64) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.CrawlsTotal.WithLabelValues(outcome, errorKind).Inc()
	m.CrawlDuration.WithLabelValues(boolLabel(javascript), boolLabel(screenshot)).Observe(durationSeconds)
}

// RecordDispatch increments DispatchDecision for one routing decision.
func (m *Metrics) RecordDispatch(async bool, reason string) {
	if m == nil {
		return
	}
	mode := "sync"
	if async {
		mode = "async"
	}
	m.DispatchDecision.WithLabelValues(mode, reason).Inc()
}

// RecordRetention increments JobsRetained for n jobs deleted of jobType.
func (m *Metrics) RecordRetention(jobType string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.JobsRetained.WithLabelValues(jobType).Add(float64(n))
}

// RecordToolCall increments ToolbagCalls for one tool invocation.
func (m *Metrics) RecordToolCall(tool string, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.ToolbagCalls.WithLabelValues(tool, outcome).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
