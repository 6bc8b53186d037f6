package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/risk-alerts/internal/config"
)

func testMonitoringConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		FallbackRateThreshold: 0.25,
		MinEvaluations:        5,
	}
}

func TestAlerter_Evaluate(t *testing.T) {
	tests := []struct {
		name  string
		snap  MetricsSnapshot
		types []AlertType
	}{
		{
			name: "healthy",
			snap: MetricsSnapshot{Total: 100, Service: 95, Fallback: 5, FallbackRate: 0.05, ScoringHealthy: true},
		},
		{
			name:  "fallback rate breached",
			snap:  MetricsSnapshot{Total: 20, Service: 12, Fallback: 8, FallbackRate: 0.4, ScoringHealthy: true},
			types: []AlertType{AlertFallbackRate},
		},
		{
			name: "below minimum evaluations",
			snap: MetricsSnapshot{Total: 3, Fallback: 3, FallbackRate: 1, ScoringHealthy: true},
		},
		{
			name:  "scoring unavailable",
			snap:  MetricsSnapshot{ScoringHealthy: false, ScoringError: "connection refused"},
			types: []AlertType{AlertScoringUnavailable},
		},
		{
			name:  "both",
			snap:  MetricsSnapshot{Total: 10, Fallback: 10, FallbackRate: 1, ScoringError: "HTTP 503"},
			types: []AlertType{AlertFallbackRate, AlertScoringUnavailable},
		},
	}

	a := NewAlerter(testMonitoringConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := tt.snap
			snap.LookbackHours = 24
			alerts := a.Evaluate(&snap)
			require.Len(t, alerts, len(tt.types))
			for i, want := range tt.types {
				assert.Equal(t, want, alerts[i].Type)
				assert.False(t, alerts[i].Timestamp.IsZero())
			}
		})
	}
}

func TestAlerter_Evaluate_FallbackMessage(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	alerts := a.Evaluate(&MetricsSnapshot{Total: 20, Fallback: 8, FallbackRate: 0.4, ScoringHealthy: true, LookbackHours: 24})
	require.Len(t, alerts, 1)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
	assert.Contains(t, alerts[0].Message, "25.0%")
	assert.Contains(t, alerts[0].Message, "8 local / 20 evaluations in last 24h")
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})
	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertFallbackRate, Severity: "high", Message: "fallback"},
		{Type: AlertScoringUnavailable, Severity: "critical", Message: "down"},
	})
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_Skipped(t *testing.T) {
	noURL := NewAlerter(config.MonitoringConfig{})
	assert.Equal(t, 0, noURL.SendAlerts(context.Background(), []Alert{{Type: AlertFallbackRate}}))

	noAlerts := NewAlerter(config.MonitoringConfig{WebhookURL: "http://example.com"})
	assert.Equal(t, 0, noAlerts.SendAlerts(context.Background(), nil))
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertFallbackRate, Message: "test"}})
	assert.Equal(t, 0, sent)
}
