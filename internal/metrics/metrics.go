// Package metrics registers the engine's Prometheus collectors. Collectors
// live on the default registry; the serve command exposes them via promhttp
// when the metrics listener is enabled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Queue gauges/counters, updated on every state transition.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ganaudit",
		Subsystem: "queue",
		Name:      "pending_jobs",
		Help:      "Jobs waiting for a worker slot.",
	})
	QueueRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ganaudit",
		Subsystem: "queue",
		Name:      "running_jobs",
		Help:      "Jobs currently executing.",
	})
	JobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ganaudit",
		Subsystem: "queue",
		Name:      "jobs_completed_total",
		Help:      "Jobs that resolved successfully.",
	})
	JobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ganaudit",
		Subsystem: "queue",
		Name:      "jobs_failed_total",
		Help:      "Jobs that resolved with a terminal error.",
	})
	JobsRetried = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ganaudit",
		Subsystem: "queue",
		Name:      "jobs_retried_total",
		Help:      "Retry re-insertions after job failure.",
	})
	JobWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ganaudit",
		Subsystem: "queue",
		Name:      "job_wait_seconds",
		Help:      "Time jobs spend waiting for a worker.",
		Buckets:   prometheus.DefBuckets,
	})
	JobExecSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ganaudit",
		Subsystem: "queue",
		Name:      "job_exec_seconds",
		Help:      "Time jobs spend executing.",
		Buckets:   prometheus.DefBuckets,
	})

	// Orchestrator counters.
	AuditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ganaudit",
		Subsystem: "orchestrator",
		Name:      "audits_total",
		Help:      "Completed audits by verdict.",
	}, []string{"verdict"})
	FallbackReviews = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ganaudit",
		Subsystem: "orchestrator",
		Name:      "fallback_reviews_total",
		Help:      "Audits that degraded to the fallback review.",
	})

	// Cache counters.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ganaudit",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Result cache hits.",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ganaudit",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Result cache misses.",
	})
)
