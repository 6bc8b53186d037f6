package evaluate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/risk-alerts/internal/interpret"
	"github.com/sells-group/risk-alerts/internal/model"
	"github.com/sells-group/risk-alerts/internal/normalize"
	"github.com/sells-group/risk-alerts/internal/resilience"
	"github.com/sells-group/risk-alerts/internal/store"
	"github.com/sells-group/risk-alerts/pkg/scoring"
)

const auditTimeout = 5 * time.Second

// Evaluator normalizes a transaction, scores it, and applies the
// interpreted outcome to a View.
type Evaluator struct {
	normalizer *normalize.Normalizer
	client     scoring.Client

	mu          sync.RWMutex
	interpreter *interpret.Interpreter

	breaker  *resilience.Breaker
	retry    resilience.RetryConfig
	recorder store.Store
	timeout  time.Duration
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithBreaker skips scoring calls while b is open.
func WithBreaker(b *resilience.Breaker) Option {
	return func(e *Evaluator) { e.breaker = b }
}

// WithRetry retries transient scoring failures. The default is NoRetry.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(e *Evaluator) { e.retry = cfg }
}

// WithRecorder writes every applied evaluation to st.
func WithRecorder(st store.Store) Option {
	return func(e *Evaluator) { e.recorder = st }
}

// WithTimeout bounds each evaluation's scoring call.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) { e.timeout = d }
}

// New creates an Evaluator.
func New(n *normalize.Normalizer, c scoring.Client, in *interpret.Interpreter, opts ...Option) *Evaluator {
	e := &Evaluator{
		normalizer:  n,
		client:      c,
		interpreter: in,
		retry:       resilience.NoRetry(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Interpreter returns the interpreter currently in use.
func (e *Evaluator) Interpreter() *interpret.Interpreter {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.interpreter
}

// SetThresholds swaps in a new interpreter. Invalid thresholds are rejected
// and the current interpreter is kept.
func (e *Evaluator) SetThresholds(th interpret.Thresholds) error {
	in, err := interpret.New(th)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.interpreter = in
	e.mu.Unlock()
	zap.L().Info("evaluate: thresholds updated",
		zap.Float64("red", th.Red),
		zap.Float64("yellow_min", th.YellowMin),
	)
	return nil
}

// Evaluate runs one evaluation of raw on v and returns what v should show.
// Normalization and scoring failures fall back to the transaction's local
// tier and are never returned. When a newer evaluation has superseded this
// one, the view's current presentation is returned instead.
func (e *Evaluator) Evaluate(ctx context.Context, v *View, raw model.RawTransaction) interpret.Presentation {
	in := e.Interpreter()
	local := interpret.FallbackFor(raw)
	ticket := v.Begin(raw.ID, in.Interpret(nil, local))

	log := zap.L().With(
		zap.String("view", v.ID()),
		zap.String("transaction", raw.ID),
		zap.Uint64("seq", ticket.Seq()),
	)

	var res *scoring.Result
	req, err := e.normalizer.Normalize(raw)
	if err != nil {
		log.Warn("evaluate: normalization failed, using local tier", zap.Error(err))
		fallbacks.WithLabelValues("normalize").Inc()
	} else {
		res, err = e.score(ctx, req)
		if err != nil {
			log.Warn("evaluate: scoring failed, using local tier", zap.Error(err))
			fallbacks.WithLabelValues("scoring").Inc()
		}
	}

	p := in.Interpret(res, local)
	if cerr := v.Complete(ticket, Outcome{Result: res, Err: err, Presentation: p}); cerr != nil {
		log.Debug("evaluate: dropping superseded result")
		staleDrops.Inc()
		if snap := v.Snapshot(); snap.Presentation != nil {
			return *snap.Presentation
		}
		return p
	}

	e.record(ctx, v.ID(), raw.ID, req, res, p, err)
	return p
}

func (e *Evaluator) score(ctx context.Context, req scoring.Request) (*scoring.Result, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	once := func(ctx context.Context) (*scoring.Result, error) {
		results, err := e.client.Score(ctx, []scoring.Request{req})
		if err != nil {
			return nil, err
		}
		if len(results) == 0 || results[0] == nil {
			return nil, eris.Wrap(scoring.ErrMalformedResponse, "no result for transaction 0")
		}
		return results[0], nil
	}
	withRetry := func(ctx context.Context) (*scoring.Result, error) {
		return resilience.DoVal(ctx, e.retry, once)
	}

	start := time.Now()
	var res *scoring.Result
	var err error
	if e.breaker != nil {
		res, err = resilience.Call(ctx, e.breaker, withRetry)
	} else {
		res, err = withRetry(ctx)
	}
	if !errors.Is(err, resilience.ErrBreakerOpen) {
		scoringLatency.Observe(time.Since(start).Seconds())
	}
	scoringCalls.WithLabelValues(outcomeLabel(err)).Inc()
	return res, err
}

func (e *Evaluator) record(ctx context.Context, viewID, txID string, req scoring.Request, res *scoring.Result, p interpret.Presentation, evalErr error) {
	if e.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	ev := &store.Evaluation{
		ViewID:        viewID,
		TransactionID: txID,
		Request:       req,
		Result:        res,
		Level:         string(p.Level),
		Label:         p.Label,
		TierSource:    string(p.TierSource),
	}
	if evalErr != nil {
		ev.Error = evalErr.Error()
	}
	if err := e.recorder.RecordEvaluation(ctx, ev); err != nil {
		auditFailures.Inc()
		zap.L().Error("evaluate: record evaluation failed",
			zap.String("view", viewID),
			zap.String("transaction", txID),
			zap.Error(err),
		)
	}
}

func outcomeLabel(err error) string {
	var apiErr *scoring.APIError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, resilience.ErrBreakerOpen):
		return "breaker_open"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, scoring.ErrMalformedResponse):
		return "malformed"
	case errors.As(err, &apiErr):
		return "api_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport"
	}
}
