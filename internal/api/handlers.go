package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/risk-alerts/internal/interpret"
	"github.com/sells-group/risk-alerts/internal/model"
	"github.com/sells-group/risk-alerts/internal/normalize"
	"github.com/sells-group/risk-alerts/internal/store"
	"github.com/sells-group/risk-alerts/pkg/scoring"
)

const (
	maxBodyBytes = 1 << 20

	// evaluateTimeout caps an evaluation detached from its request.
	evaluateTimeout = 30 * time.Second
)

type errorResponse struct {
	Error string `json:"error"`
	Index *int   `json:"index,omitempty"`
	Field string `json:"field,omitempty"`
	Input string `json:"input,omitempty"`
}

type normalizeResponse struct {
	Requests []scoring.Request `json:"requests"`
}

// handleNormalize accepts one raw transaction or a list of them.
func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if !decodeBody(w, r, &body) {
		return
	}

	var txs []model.RawTransaction
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &txs); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	} else {
		var tx model.RawTransaction
		if err := json.Unmarshal(trimmed, &tx); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		txs = []model.RawTransaction{tx}
	}

	out := make([]scoring.Request, 0, len(txs))
	for i, tx := range txs {
		req, err := s.normalizer.Normalize(tx)
		if err != nil {
			writeNormalizationError(w, i, err)
			return
		}
		out = append(out, req)
	}
	writeJSON(w, http.StatusOK, normalizeResponse{Requests: out})
}

// handleGauge maps a scoring result to a gauge reading. A null body reads as
// "no result yet".
func (s *Server) handleGauge(w http.ResponseWriter, r *http.Request) {
	var res *scoring.Result
	if !decodeBody(w, r, &res) {
		return
	}
	writeJSON(w, http.StatusOK, s.evaluator.Interpreter().Gauge(res))
}

func (s *Server) handleGetThresholds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.evaluator.Interpreter().Thresholds())
}

// handlePutThresholds clamps the submitted thresholds into a valid ordering
// before applying them, so the response always reflects what is in effect.
func (s *Server) handlePutThresholds(w http.ResponseWriter, r *http.Request) {
	var th interpret.Thresholds
	if !decodeBody(w, r, &th) {
		return
	}
	th = th.Clamp()
	if err := s.evaluator.SetThresholds(th); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, th)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var tx model.RawTransaction
	if !decodeBody(w, r, &tx) {
		return
	}

	// A client that disconnects must not turn the scoring call into a
	// recorded local fallback.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), evaluateTimeout)
	defer cancel()

	v := s.views.Open(chi.URLParam(r, "id"))
	s.evaluator.Evaluate(ctx, v, tx)
	writeJSON(w, http.StatusOK, v.Snapshot())
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	v, ok := s.views.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "view not found")
		return
	}
	writeJSON(w, http.StatusOK, v.Snapshot())
}

func (s *Server) handleCloseView(w http.ResponseWriter, r *http.Request) {
	if !s.views.Close(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "view not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListEvaluations(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "evaluation history is not configured")
		return
	}

	q := r.URL.Query()
	f := store.ListFilter{
		ViewID:        q.Get("view_id"),
		TransactionID: q.Get("transaction_id"),
	}
	var err error
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	evals, err := s.history.ListEvaluations(r.Context(), f)
	if err != nil {
		zap.L().Error("list evaluations failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list evaluations failed")
		return
	}
	if evals == nil {
		evals = []store.Evaluation{}
	}
	writeJSON(w, http.StatusOK, evals)
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeNormalizationError(w http.ResponseWriter, idx int, err error) {
	resp := errorResponse{Error: err.Error(), Index: &idx}
	var nerr *normalize.NormalizationError
	if errors.As(err, &nerr) {
		resp.Field = nerr.Field
		resp.Input = nerr.Input
	}
	writeJSON(w, http.StatusUnprocessableEntity, resp)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}
