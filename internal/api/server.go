// Package api exposes normalization, gauge and view evaluation over HTTP for
// the presentation layer.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/risk-alerts/internal/evaluate"
	"github.com/sells-group/risk-alerts/internal/normalize"
	"github.com/sells-group/risk-alerts/internal/store"
	"github.com/sells-group/risk-alerts/pkg/scoring"
)

const healthTimeout = 2 * time.Second

// Server holds the handlers' dependencies.
type Server struct {
	normalizer  *normalize.Normalizer
	client      scoring.Client
	evaluator   *evaluate.Evaluator
	views       *evaluate.Registry
	history     store.Store
	corsOrigins []string
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables GET /v1/evaluations backed by st.
func WithHistory(st store.Store) Option {
	return func(s *Server) { s.history = st }
}

// WithCORSOrigins sets the allowed CORS origins. Defaults to "*".
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// NewServer creates a Server.
func NewServer(n *normalize.Normalizer, c scoring.Client, e *evaluate.Evaluator, views *evaluate.Registry, opts ...Option) *Server {
	s := &Server{
		normalizer:  n,
		client:      c,
		evaluator:   e,
		views:       views,
		corsOrigins: []string{"*"},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/normalize", s.handleNormalize)
		r.Post("/gauge", s.handleGauge)
		r.Get("/thresholds", s.handleGetThresholds)
		r.Put("/thresholds", s.handlePutThresholds)
		r.Get("/evaluations", s.handleListEvaluations)

		r.Route("/views/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetView)
			r.Delete("/", s.handleCloseView)
			r.Post("/evaluate", s.handleEvaluate)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok", "scoring": "ok"}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := s.client.Health(ctx); err != nil {
		// The dashboard still works on local tiers, so the server stays healthy.
		body["scoring"] = "unavailable"
		zap.L().Debug("scoring health check failed", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, body)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
