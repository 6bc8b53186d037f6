package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/risk-alerts/internal/config"
	"github.com/sells-group/risk-alerts/internal/store"
)

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{CheckIntervalSecs: 1, LookbackWindowHours: 24}
	checker := NewChecker(NewCollector(&mockLister{}, nil), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	checker := NewChecker(NewCollector(&mockLister{}, nil), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
}

func TestChecker_Check(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = ts.URL
	cfg.LookbackWindowHours = 24

	evals := make([]store.Evaluation, 0, 6)
	for i := 0; i < 6; i++ {
		evals = append(evals, store.Evaluation{TierSource: "local", Level: "low", Error: "scoring: HTTP 503"})
	}
	checker := NewChecker(
		NewCollector(&mockLister{evals: evals}, mockProber{err: errors.New("HTTP 503")}),
		NewAlerter(cfg), cfg,
	)

	before := testutil.ToFloat64(alertsRaised.WithLabelValues(string(AlertFallbackRate)))
	alerts := checker.check(context.Background(), zap.NewNop())
	require.Len(t, alerts, 2)
	assert.Equal(t, int32(2), received.Load())
	assert.InDelta(t, 1.0, testutil.ToFloat64(windowFallbackRate), 1e-9)
	assert.Zero(t, testutil.ToFloat64(scoringUp))
	assert.InDelta(t, before+1, testutil.ToFloat64(alertsRaised.WithLabelValues(string(AlertFallbackRate))), 1e-9)
}

func TestChecker_Check_Quiet(t *testing.T) {
	cfg := testMonitoringConfig()
	checker := NewChecker(
		NewCollector(&mockLister{evals: []store.Evaluation{{TierSource: "service", Level: "low"}}}, mockProber{}),
		NewAlerter(cfg), cfg,
	)
	assert.Empty(t, checker.check(context.Background(), zap.NewNop()))
	assert.InDelta(t, 1.0, testutil.ToFloat64(scoringUp), 1e-9)
}

func TestChecker_Check_CollectError(t *testing.T) {
	cfg := testMonitoringConfig()
	checker := NewChecker(NewCollector(&mockLister{err: errors.New("db gone")}, nil), NewAlerter(cfg), cfg)
	assert.Nil(t, checker.check(context.Background(), zap.NewNop()))
}
