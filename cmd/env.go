package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/risk-alerts/internal/config"
	"github.com/sells-group/risk-alerts/internal/evaluate"
	"github.com/sells-group/risk-alerts/internal/interpret"
	"github.com/sells-group/risk-alerts/internal/normalize"
	"github.com/sells-group/risk-alerts/internal/resilience"
	"github.com/sells-group/risk-alerts/internal/store"
	"github.com/sells-group/risk-alerts/pkg/scoring"
)

// appEnv holds the clients and services shared by the commands.
type appEnv struct {
	Normalizer  *normalize.Normalizer
	Client      scoring.Client
	Interpreter *interpret.Interpreter
	Evaluator   *evaluate.Evaluator
	Store       store.Store // nil when store.driver is "none"
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv builds the environment from c. Callers should defer env.Close().
func initEnv(ctx context.Context, c *config.Config) (*appEnv, error) {
	in, err := interpret.New(c.Thresholds)
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx, c.Store)
	if err != nil {
		return nil, err
	}

	// config.Load always resolves defaults.lat/lon, so the point is used as given.
	n := normalize.New(c.Defaults, normalize.WithReferencePoint(c.Defaults.Lat, c.Defaults.Lon))
	client := newScoringClient(c.Scoring)

	opts := []evaluate.Option{
		evaluate.WithTimeout(c.Scoring.Timeout()),
		evaluate.WithRetry(retryPolicy(c.Scoring.Retries)),
	}
	if c.Scoring.Breaker.Enabled {
		opts = append(opts, evaluate.WithBreaker(newBreaker(c.Scoring.Breaker)))
	}
	if st != nil {
		opts = append(opts, evaluate.WithRecorder(st))
	}

	return &appEnv{
		Normalizer:  n,
		Client:      client,
		Interpreter: in,
		Evaluator:   evaluate.New(n, client, in, opts...),
		Store:       st,
	}, nil
}

// initStore opens and migrates the configured store. It returns nil when
// auditing is disabled.
func initStore(ctx context.Context, sc store.Config) (store.Store, error) {
	st, err := store.Open(ctx, sc)
	if err != nil {
		return nil, err
	}
	if st == nil {
		zap.L().Debug("store driver is none, evaluations will not be recorded")
		return nil, nil
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// requireStore is initStore for commands that cannot run without one.
func requireStore(ctx context.Context, sc store.Config) (store.Store, error) {
	st, err := initStore(ctx, sc)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("no store configured (set RISKALERT_STORE_DRIVER to sqlite or postgres)")
	}
	return st, nil
}

func newScoringClient(sc config.ScoringConfig) scoring.Client {
	opts := []scoring.Option{
		scoring.WithBaseURL(sc.BaseURL),
		scoring.WithTimeout(sc.Timeout()),
	}
	if sc.RatePerSec > 0 {
		opts = append(opts, scoring.WithRateLimit(sc.RatePerSec, sc.RateBurst))
	}
	return scoring.NewClient(opts...)
}

// retryPolicy maps the configured retry count to a policy. Zero retries is
// a single attempt.
func retryPolicy(retries int) resilience.RetryConfig {
	if retries <= 0 {
		return resilience.NoRetry()
	}
	rc := resilience.BackoffRetry(retries + 1)
	rc.OnRetry = resilience.RetryLogger("score")
	return rc
}

func newBreaker(bc config.BreakerConfig) *resilience.Breaker {
	return resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: bc.FailureThreshold,
		ResetTimeout:     time.Duration(bc.ResetTimeoutSecs) * time.Second,
		OnStateChange: func(from, to resilience.BreakerState) {
			zap.L().Warn("scoring breaker state changed",
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
}
