// Package api exposes the read-only query surface over HTTP.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"dex-price-engine/internal/observability"
	"dex-price-engine/internal/storage"
)

// Server serves pair and token data collected by the ingestion loop.
// All endpoints are read-only; writes happen only through ingestion.
type Server struct {
	tokens       storage.TokenStore
	pairs        storage.PairStore
	pairHistory  storage.PairHistoryStore
	tokenHistory storage.TokenHistoryStore

	metrics  *observability.Metrics
	logger   *log.Logger
	router   *mux.Router
	now      func() time.Time
	lastTick func() time.Time
}

// ServerOptions contains configuration for creating a Server.
type ServerOptions struct {
	TokenStore   storage.TokenStore
	PairStore    storage.PairStore
	PairHistory  storage.PairHistoryStore
	TokenHistory storage.TokenHistoryStore

	Metrics *observability.Metrics
	Logger  *log.Logger
	Now     func() time.Time // injectable clock for tests

	// LastTick reports when ingestion last completed a tick; optional.
	LastTick func() time.Time
}

// NewServer creates a Server and registers its routes.
func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		tokens:       opts.TokenStore,
		pairs:        opts.PairStore,
		pairHistory:  opts.PairHistory,
		tokenHistory: opts.TokenHistory,
		metrics:      opts.Metrics,
		logger:       logger,
		router:       mux.NewRouter(),
		now:          now,
		lastTick:     opts.LastTick,
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/pairs", s.instrument("/pairs", s.handleListPairs)).Methods(http.MethodGet)
	s.router.HandleFunc("/pairs/{address}", s.instrument("/pairs/{address}", s.handleGetPair)).Methods(http.MethodGet)
	s.router.HandleFunc("/pairs/{address}/{days}", s.instrument("/pairs/{address}/{days}", s.handlePairHistory)).Methods(http.MethodGet)
	s.router.HandleFunc("/tokens", s.instrument("/tokens", s.handleListTokens)).Methods(http.MethodGet)
	s.router.HandleFunc("/tokens/{address}", s.instrument("/tokens/{address}", s.handleGetToken)).Methods(http.MethodGet)
	s.router.HandleFunc("/tokens/{address}/{days}", s.instrument("/tokens/{address}/{days}", s.handleTokenHistory)).Methods(http.MethodGet)

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument wraps a handler with per-route request counting and
// latency observation. A nil metrics sink disables both.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	if s.metrics == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r)
		s.metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	}
}

type healthView struct {
	Status   string     `json:"status"`
	Tokens   int        `json:"tokens"`
	Pairs    int        `json:"pairs"`
	LastTick *time.Time `json:"lastTick,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.tokens.List(r.Context())
	if err != nil {
		s.logger.Printf("Error listing tokens for health: %v", err)
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	pairs, err := s.pairs.List(r.Context())
	if err != nil {
		s.logger.Printf("Error listing pairs for health: %v", err)
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	view := healthView{Status: "ok", Tokens: len(tokens), Pairs: len(pairs)}
	if s.lastTick != nil {
		if t := s.lastTick(); !t.IsZero() {
			view.LastTick = &t
		}
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Printf("Error writing response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
