// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package api exposes the mitigation engine over HTTP.
package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"grimm.is/wlanguard/internal/actionlog"
	"grimm.is/wlanguard/internal/errors"
	"grimm.is/wlanguard/internal/logging"
	"grimm.is/wlanguard/internal/metrics"
	"grimm.is/wlanguard/internal/mitigation"
)

// ServerConfig holds HTTP server limits.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration // Slowloris prevention
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64
}

// DefaultServerConfig returns the default limits.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// A reset runs every teardown step serially, each bounded by the
		// command timeout.
		WriteTimeout:   2 * time.Minute,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
		MaxBodyBytes:   1 << 20,
	}
}

// Options holds the server's collaborators. Mitigator is required.
type Options struct {
	Mitigator *mitigation.Mitigator
	// Store backs /api/actions/history. Optional.
	Store actionlog.Store
	// Counters backs /api/counters. Optional.
	Counters metrics.CounterSource
	Metrics  *metrics.Registry
	Logger   *logging.Logger
	Config   *ServerConfig
}

// Server handles API requests.
type Server struct {
	mitigator *mitigation.Mitigator
	store     actionlog.Store
	counters  metrics.CounterSource
	metrics   *metrics.Registry
	logger    *logging.Logger
	cfg       *ServerConfig
	startTime time.Time

	streamInterval time.Duration

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates a server from opts.
func NewServer(opts Options) (*Server, error) {
	if opts.Mitigator == nil {
		return nil, errors.New(errors.KindValidation, "api: mitigator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.WithComponent("api")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	return &Server{
		mitigator: opts.Mitigator,
		store:     opts.Store,
		counters:  opts.Counters,
		metrics:   opts.Metrics,
		logger:    logger,
		cfg:       cfg,
		startTime: time.Now(),
	}, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	router.HandleFunc("/api/threats", s.handleThreat).Methods("POST")
	router.HandleFunc("/api/reset", s.handleReset).Methods("POST")
	router.HandleFunc("/api/actions", s.handleActions).Methods("GET")
	router.HandleFunc("/api/actions/history", s.handleHistory).Methods("GET")
	router.HandleFunc("/api/actions/stream", s.handleStream).Methods("GET")
	router.HandleFunc("/api/capabilities", s.handleCapabilities).Methods("GET")
	router.HandleFunc("/api/counters", s.handleCounters).Methods("GET")

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return s.logRequests(router)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		MaxHeaderBytes:    s.cfg.MaxHeaderBytes,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.Info("API listening", "addr", l.Addr().String())
	if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, errors.KindExecution, "api server")
	}
	return nil
}

// ListenAndServe listens on addr and serves until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindUnavailable, "api listen"), "addr", addr)
	}
	return s.Serve(l)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
