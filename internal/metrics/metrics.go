// Package metrics provides Prometheus metrics for the invoker worker.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	instance *Metrics
)

// Metrics holds all Prometheus collectors exported by a running worker.
type Metrics struct {
	SubmissionsTotal    *prometheus.CounterVec
	SubmissionDuration  prometheus.Histogram
	SubmissionsBusy     prometheus.Counter

	TestsTotal   *prometheus.CounterVec
	TestDuration prometheus.Histogram

	CompileTotal *prometheus.CounterVec

	SandboxPoolSize  prometheus.Gauge
	SandboxPoolFree  prometheus.Gauge
	SandboxInitFails prometheus.Counter

	TransportReconnects prometheus.Counter
}

// Get returns the singleton Metrics instance, registering collectors on first use.
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	m := &Metrics{}

	m.SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoker",
			Subsystem: "judge",
			Name:      "submissions_total",
			Help:      "Total submissions judged, labeled by final verdict name",
		},
		[]string{"verdict"},
	)

	m.SubmissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "invoker",
			Subsystem: "judge",
			Name:      "submission_duration_seconds",
			Help:      "Wall-clock time to fully judge one submission",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	m.SubmissionsBusy = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "invoker",
			Subsystem: "judge",
			Name:      "submissions_rejected_busy_total",
			Help:      "Submissions rejected because a judge was already running",
		},
	)

	m.TestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoker",
			Subsystem: "test",
			Name:      "tests_total",
			Help:      "Total tests executed, labeled by verdict",
		},
		[]string{"verdict"},
	)

	m.TestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "invoker",
			Subsystem: "test",
			Name:      "test_duration_seconds",
			Help:      "Sandbox-reported run time per test",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	m.CompileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoker",
			Subsystem: "compile",
			Name:      "attempts_total",
			Help:      "Compile attempts, labeled by outcome (ok, ce, te)",
		},
		[]string{"outcome"},
	)

	m.SandboxPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "invoker",
			Subsystem: "sandbox",
			Name:      "pool_size",
			Help:      "Configured number of sandbox slots",
		},
	)

	m.SandboxPoolFree = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "invoker",
			Subsystem: "sandbox",
			Name:      "pool_free",
			Help:      "Sandbox slots currently available for lease",
		},
	)

	m.SandboxInitFails = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "invoker",
			Subsystem: "sandbox",
			Name:      "init_failures_total",
			Help:      "Sandbox slot initialization failures",
		},
	)

	m.TransportReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "invoker",
			Subsystem: "transport",
			Name:      "reconnects_total",
			Help:      "Failed websocket dial attempts to the manager",
		},
	)

	return m
}
