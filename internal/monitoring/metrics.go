package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	windowFallbackRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "risk_alerts",
		Subsystem: "monitoring",
		Name:      "fallback_rate",
		Help:      "Share of evaluations in the lookback window presented from the local tier.",
	})
	scoringUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "risk_alerts",
		Subsystem: "monitoring",
		Name:      "scoring_up",
		Help:      "1 when the last scoring health probe succeeded.",
	})
	alertsRaised = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "risk_alerts",
		Subsystem: "monitoring",
		Name:      "alerts_total",
		Help:      "Alerts raised by type.",
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(windowFallbackRate, scoringUp, alertsRaised)
}
