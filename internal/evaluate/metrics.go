package evaluate

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	scoringCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "risk_alerts",
		Subsystem: "evaluate",
		Name:      "scoring_calls_total",
		Help:      "Total scoring service calls by outcome.",
	}, []string{"outcome"}) // "ok", "api_error", "malformed", "timeout", "transport", "breaker_open", "canceled"

	scoringLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "risk_alerts",
		Subsystem: "evaluate",
		Name:      "scoring_latency_seconds",
		Help:      "Scoring call latency in seconds, including retries.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	fallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "risk_alerts",
		Subsystem: "evaluate",
		Name:      "fallbacks_total",
		Help:      "Evaluations presented from the local tier by cause.",
	}, []string{"cause"}) // "normalize", "scoring"

	staleDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "risk_alerts",
		Subsystem: "evaluate",
		Name:      "stale_results_dropped_total",
		Help:      "Completions discarded because a newer evaluation superseded them.",
	})

	auditFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "risk_alerts",
		Subsystem: "evaluate",
		Name:      "audit_failures_total",
		Help:      "Evaluations that could not be written to the audit store.",
	})

	activeViews = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "risk_alerts",
		Subsystem: "evaluate",
		Name:      "active_views",
		Help:      "Number of views held by the registry.",
	})
)

func init() {
	prometheus.MustRegister(
		scoringCalls,
		scoringLatency,
		fallbacks,
		staleDrops,
		auditFailures,
		activeViews,
	)
}
