// Package server exposes the HTTP surface: /chat, /detect-property,
// /properties and /turn, plus health and metrics endpoints.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"property-concierge/internal/common/config"
	apperrors "property-concierge/internal/common/errors"
	"property-concierge/internal/common/logger"
	"property-concierge/internal/common/metrics"
	"property-concierge/internal/common/observability"
	"property-concierge/internal/intent"
	"property-concierge/internal/llm"
	"property-concierge/internal/responder"
	"property-concierge/internal/session"
	"property-concierge/internal/store"
)

type Server struct {
	config    *config.Config
	router    *intent.Router
	responder *responder.Responder
	sessions  *session.Manager
	cache     *store.PropertyCache
	llmClient *llm.Client
	obs       *observability.Observability
	logger    logger.Logger
	mux       *http.ServeMux
}

func New(
	cfg *config.Config,
	router *intent.Router,
	resp *responder.Responder,
	sessions *session.Manager,
	cache *store.PropertyCache,
	llmClient *llm.Client,
	obs *observability.Observability,
	log logger.Logger,
) *Server {
	s := &Server{
		config:    cfg,
		router:    router,
		responder: resp,
		sessions:  sessions,
		cache:     cache,
		llmClient: llmClient,
		obs:       obs,
		logger:    log.With(map[string]interface{}{"component": "server"}),
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/chat", s.instrument("/chat", s.handleChat))
	s.mux.HandleFunc("/detect-property", s.instrument("/detect-property", s.handleDetectProperty))
	s.mux.HandleFunc("/properties", s.instrument("/properties", s.handleProperties))
	s.mux.HandleFunc("/turn", s.instrument("/turn", s.handleTurn))
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns the root handler for the HTTP server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r)

		status := strconv.Itoa(rec.status)
		elapsed := time.Since(start)
		metrics.RequestsTotal.WithLabelValues(endpoint, status).Inc()
		metrics.RequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
		s.obs.RecordRequest(r.Context(), endpoint, status)
		s.obs.RecordRequestDuration(r.Context(), elapsed, endpoint)
	}
}

// writeCORS sets the permissive CORS headers every endpoint carries.
func writeCORS(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// enforceMethod handles preflight and method checks. It reports whether the
// caller should continue with the real work.
func (s *Server) enforceMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	writeCORS(w, method+",OPTIONS")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return false
	}
	if r.Method != method {
		s.respondJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return false
	}
	return true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// respondError maps an error to its HTTP status. Validation messages pass
// through verbatim; everything else gets a generic message so internals
// never leak.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, publicMessage string) {
	status := apperrors.HTTPStatus(err)

	message := publicMessage
	var stdErr *apperrors.StandardError
	if apperrors.IsValidation(err) && errors.As(err, &stdErr) {
		message = stdErr.Message
	}
	if message == "" {
		message = "Internal server error"
	}

	s.logger.Error("request failed", map[string]interface{}{
		"path":   r.URL.Path,
		"status": status,
		"error":  err.Error(),
	})
	s.respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
