// Package monitoring watches recorded evaluations and the scoring service and
// raises webhook alerts when the alert surface degrades.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/risk-alerts/internal/interpret"
	"github.com/sells-group/risk-alerts/internal/store"
)

// maxWindowEvaluations caps how many audit rows a single collection reads.
const maxWindowEvaluations = 10000

// MetricsSnapshot holds a point-in-time view of evaluation health.
type MetricsSnapshot struct {
	// Evaluations recorded within the lookback window.
	Total        int     `json:"total"`
	Service      int     `json:"service"`
	Fallback     int     `json:"fallback"`
	Failed       int     `json:"failed"`
	HighAlerts   int     `json:"high_alerts"`
	FallbackRate float64 `json:"fallback_rate"`

	// Scoring service reachability at collection time.
	ScoringHealthy bool   `json:"scoring_healthy"`
	ScoringError   string `json:"scoring_error,omitempty"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// EvaluationLister abstracts the store method the collector reads from.
type EvaluationLister interface {
	ListEvaluations(ctx context.Context, filter store.ListFilter) ([]store.Evaluation, error)
}

// HealthProber reports whether the scoring service is reachable.
type HealthProber interface {
	Health(ctx context.Context) error
}

// Collector gathers evaluation metrics from the audit store.
type Collector struct {
	store  EvaluationLister
	health HealthProber
}

// NewCollector creates a new metrics collector. health may be nil.
func NewCollector(st EvaluationLister, health HealthProber) *Collector {
	return &Collector{store: st, health: health}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := time.Now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours:  lookbackHours,
		CollectedAt:    now,
		ScoringHealthy: true,
	}

	evals, err := c.store.ListEvaluations(ctx, store.ListFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        maxWindowEvaluations,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list evaluations")
	}

	snap.Total = len(evals)
	for _, e := range evals {
		switch interpret.Source(e.TierSource) {
		case interpret.SourceService:
			snap.Service++
		case interpret.SourceLocal:
			snap.Fallback++
		}
		if e.Error != "" {
			snap.Failed++
		}
		if interpret.Level(e.Level) == interpret.LevelHigh {
			snap.HighAlerts++
		}
	}
	if snap.Total > 0 {
		snap.FallbackRate = float64(snap.Fallback) / float64(snap.Total)
	}

	if c.health != nil {
		if err := c.health.Health(ctx); err != nil {
			snap.ScoringHealthy = false
			snap.ScoringError = err.Error()
		}
	}
	return snap, nil
}
