package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof" // Import for side effects (registers pprof handlers)
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/facelens/internal/config"
	"github.com/zsiec/facelens/internal/detection"
	"github.com/zsiec/facelens/internal/errors"
	"github.com/zsiec/facelens/internal/health"
	"github.com/zsiec/facelens/internal/logger"
	"github.com/zsiec/facelens/internal/overlay"
)

// Pipeline is the read side of the detection orchestrator.
type Pipeline interface {
	Latest() *detection.DetectionSet
	Stats() detection.Stats
}

// Server serves the facelens HTTP API over HTTP/1.1 and, when enabled,
// HTTP/3.
type Server struct {
	config       *config.ServerConfig
	router       *mux.Router
	http3Server  *http3.Server
	httpServer   *http.Server
	logger       *logrus.Logger
	healthMgr    *health.Manager
	errorHandler *errors.ErrorHandler

	pipeline Pipeline
	renderer *overlay.Renderer
	surface  *overlay.HeadlessSurface

	statsMu sync.RWMutex
	stats   map[string]func() interface{}

	routesOnce sync.Once

	// Additional handlers can be registered
	additionalRoutes []func(*mux.Router)
}

// New creates a new server instance. renderer and surface may be nil, in
// which case the overlay endpoints report 503.
func New(cfg *config.ServerConfig, log *logrus.Logger, pipeline Pipeline, renderer *overlay.Renderer, surface *overlay.HeadlessSurface) *Server {
	return &Server{
		config:           cfg,
		router:           mux.NewRouter(),
		logger:           log,
		healthMgr:        health.NewManager(log),
		errorHandler:     errors.NewErrorHandler(log),
		pipeline:         pipeline,
		renderer:         renderer,
		surface:          surface,
		stats:            make(map[string]func() interface{}),
		additionalRoutes: make([]func(*mux.Router), 0),
	}
}

// Health returns the manager so callers can register checkers.
func (s *Server) Health() *health.Manager {
	return s.healthMgr
}

// AddStats includes fn's result under name in /api/v1/stats.
func (s *Server) AddStats(name string, fn func() interface{}) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats[name] = fn
}

// Handler returns the fully configured router. Routes registered after the
// first call are ignored.
func (s *Server) Handler() http.Handler {
	s.routesOnce.Do(s.setupRoutes)
	return s.router
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	handler := s.Handler()

	if s.config.HTTP3Enabled {
		if err := s.configureHTTP3(handler); err != nil {
			return err
		}
	}

	interval := s.config.HealthInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go s.healthMgr.StartPeriodicChecks(ctx, interval)

	errCh := make(chan error, 2)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	go func() {
		s.logger.WithField("port", s.config.HTTPPort).Info("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if s.http3Server != nil {
		go func() {
			s.logger.WithField("port", s.config.HTTP3Port).Info("Starting HTTP/3 server")
			if err := s.http3Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("http3 server: %w", err)
			}
		}()
	}

	select {
	case err := <-errCh:
		_ = s.Shutdown()
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

func (s *Server) configureHTTP3(handler http.Handler) error {
	cert, err := tls.LoadX509KeyPair(s.config.TLSCertFile, s.config.TLSKeyFile)
	if err != nil {
		return fmt.Errorf("failed to load TLS certificates: %w", err)
	}

	s.http3Server = &http3.Server{
		Addr:       fmt.Sprintf(":%d", s.config.HTTP3Port),
		Handler:    handler,
		QUICConfig: &quic.Config{
			MaxIncomingStreams: s.config.MaxIncomingStreams,
			MaxIdleTimeout:     s.config.MaxIdleTimeout,
		},
		TLSConfig: &tls.Config{
			MinVersion:   tls.VersionTLS13,
			NextProtos:   []string{"h3"},
			Certificates: []tls.Certificate{cert},
		},
	}
	return nil
}

// Shutdown stops both listeners, waiting up to the configured shutdown
// timeout for in-flight HTTP/1.1 requests.
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var firstErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			firstErr = fmt.Errorf("failed to shutdown http server: %w", err)
		}
	}
	// http3.Server.Close doesn't support context-based shutdown
	if s.http3Server != nil {
		if err := s.http3Server.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to shutdown http3 server: %w", err)
		}
	}

	s.logger.Info("HTTP server shutdown complete")
	return firstErr
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Apply global middleware
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(logger.RequestLoggerMiddleware(s.logger))
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.errorHandler.Middleware)
	s.router.Use(s.metricsMiddleware)
	s.router.Use(s.corsMiddleware)

	// Health endpoints
	healthHandler := health.NewHandler(s.healthMgr)
	s.router.HandleFunc("/health", healthHandler.HandleHealth).Methods("GET")
	s.router.HandleFunc("/ready", healthHandler.HandleReady).Methods("GET")
	s.router.HandleFunc("/live", healthHandler.HandleLive).Methods("GET")

	s.router.HandleFunc("/version", s.handleVersion).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/detections", s.handleDetections).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/transform", s.handleTransform).Methods("GET")
	api.HandleFunc("/overlay.png", s.handleOverlay).Methods("GET")

	if s.config.DebugEndpoints {
		s.setupDebugEndpoints()
	}

	for _, registerFunc := range s.additionalRoutes {
		registerFunc(s.router)
	}

	s.router.NotFoundHandler = http.HandlerFunc(s.errorHandler.HandleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.errorHandler.HandleMethodNotAllowed)
}

// setupDebugEndpoints exposes pprof and a protocol summary.
func (s *Server) setupDebugEndpoints() {
	s.logger.Info("Enabling debug endpoints")

	// net/http/pprof registers on the default mux
	s.router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	s.router.HandleFunc("/debug/info", func(w http.ResponseWriter, r *http.Request) {
		info := map[string]interface{}{
			"protocols": map[string]bool{
				"http11": true,
				"http3":  s.config.HTTP3Enabled,
			},
			"ports": map[string]int{
				"http":  s.config.HTTPPort,
				"http3": s.config.HTTP3Port,
			},
			"debug_enabled": true,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(info)
	}).Methods("GET")
}

// RegisterRoutes adds additional route handlers to the server
func (s *Server) RegisterRoutes(registerFunc func(*mux.Router)) {
	s.additionalRoutes = append(s.additionalRoutes, registerFunc)
}

// GetRouter returns the router for testing.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}
