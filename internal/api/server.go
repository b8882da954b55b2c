// Package api provides the HTTP REST API of netsweep. It exposes segment
// management, sweeps, detail probes and job status under /api/v1, plus
// Prometheus metrics and the Swagger UI.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/anstrom/netsweep/docs/swagger" // registers the generated swagger spec
	apihandlers "github.com/anstrom/netsweep/internal/api/handlers"
	"github.com/anstrom/netsweep/internal/api/middleware"
	"github.com/anstrom/netsweep/internal/auth"
	"github.com/anstrom/netsweep/internal/config"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/metrics"
)

// Server timeout constants.
const (
	defaultShutdownTimeout = 30 * time.Second
	readHeaderTimeout      = 10 * time.Second
	idleTimeout            = 60 * time.Second
	maxHeaderBytes         = 1 << 20
)

// Dependencies are the services the API serves.
type Dependencies struct {
	Segments    apihandlers.SegmentManager
	Scans       apihandlers.ScanStarter
	Jobs        apihandlers.JobSource
	Storage     apihandlers.StoragePinger
	Detail      apihandlers.DetailChecker
	NmapVersion func(ctx context.Context) string
	Metrics     *metrics.PrometheusMetrics
}

// Server represents the API server.
type Server struct {
	httpServer      *http.Server
	router          *mux.Router
	config          *config.Config
	deps            Dependencies
	keys            *auth.KeyRing
	logger          *logging.Logger
	shutdownTimeout time.Duration
	startTime       time.Time
}

// New creates a new API server instance.
func New(cfg *config.Config, deps Dependencies) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Segments == nil || deps.Scans == nil || deps.Jobs == nil {
		return nil, fmt.Errorf("segments, scans and jobs are required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.GetGlobalMetrics()
	}

	shutdownTimeout := cfg.API.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		router:          mux.NewRouter(),
		config:          cfg,
		deps:            deps,
		keys:            auth.NewKeyRing(cfg.API.APIKeys),
		logger:          logging.Default().WithComponent("api"),
		shutdownTimeout: shutdownTimeout,
		startTime:       time.Now(),
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              cfg.GetAPIAddress(),
		Handler:           s.wrapCORS(s.router),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	return s, nil
}

// setupRoutes configures all API routes and their middleware.
func (s *Server) setupRoutes() {
	s.router.Use(
		middleware.Recovery(s.logger),
		middleware.RequestID(),
		middleware.Logging(s.logger),
		middleware.Metrics(s.deps.Metrics),
	)
	s.router.NotFoundHandler = http.HandlerFunc(s.notFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowed)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(
		middleware.APIKeyAuth(s.keys, s.logger),
		middleware.ContentType(),
		middleware.RequestTimeout(s.config.API.RequestTimeout),
	)

	defaultPorts := s.config.DefaultPortRange()
	maxBody := s.config.API.MaxRequestSize
	apihandlers.SetDefaultPorts(defaultPorts.String())

	health := apihandlers.NewHealthHandler(s.deps.Storage, s.deps.Detail, s.deps.NmapVersion, s.logger).
		WithProcessMetrics(s.deps.Metrics)
	segments := apihandlers.NewSegmentHandler(s.deps.Segments, s.deps.Scans, defaultPorts, s.logger, maxBody)
	scans := apihandlers.NewScanHandler(s.deps.Scans, defaultPorts, s.logger, maxBody)
	jobs := apihandlers.NewJobHandler(s.deps.Jobs, s.logger, s.checkOrigin)

	api.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	api.HandleFunc("/version", health.Version).Methods(http.MethodGet)
	api.HandleFunc("/capabilities", health.Capabilities).Methods(http.MethodGet)

	api.HandleFunc("/segments", segments.ListSegments).Methods(http.MethodGet)
	api.HandleFunc("/segments", segments.CreateSegment).Methods(http.MethodPost)
	api.HandleFunc("/segments/{id}", segments.GetSegment).Methods(http.MethodGet)
	api.HandleFunc("/segments/{id}", segments.DeleteSegment).Methods(http.MethodDelete)
	api.HandleFunc("/segments/{id}/sweep", segments.SweepSegment).Methods(http.MethodPost)
	api.HandleFunc("/segments/{id}/hosts/{ip}/probe", segments.ProbeSegmentHost).Methods(http.MethodPost)
	api.HandleFunc("/stats", segments.Stats).Methods(http.MethodGet)

	api.HandleFunc("/probe", scans.Probe).Methods(http.MethodPost)
	api.HandleFunc("/quick-check", scans.QuickCheck).Methods(http.MethodPost)

	api.HandleFunc("/jobs", jobs.ListJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{key}", jobs.GetJob).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{key}/ws", jobs.StreamJob).Methods(http.MethodGet)

	s.router.Handle("/metrics", s.deps.Metrics.Handler()).Methods(http.MethodGet)

	s.router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
	))
	s.router.HandleFunc("/docs", s.redirectToSwagger).Methods(http.MethodGet)

	s.router.HandleFunc("/", s.index).Methods(http.MethodGet)
}

// wrapCORS adds CORS handling in front of the router so preflight requests
// are answered before route matching.
func (s *Server) wrapCORS(next http.Handler) http.Handler {
	cors := s.config.API.CORS
	if !cors.Enabled {
		return next
	}
	return handlers.CORS(
		handlers.AllowedOrigins(cors.AllowedOrigins),
		handlers.AllowedMethods(cors.AllowedMethods),
		handlers.AllowedHeaders(cors.AllowedHeaders),
		handlers.ExposedHeaders([]string{middleware.RequestIDHeader, "Location"}),
		handlers.MaxAge(3600),
	)(next)
}

// checkOrigin accepts WebSocket handshakes from the same host or, when CORS
// is enabled, from a configured origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	if !s.config.API.CORS.Enabled {
		return false
	}
	for _, allowed := range s.config.API.CORS.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.logger.Info("Starting API server",
		"address", listener.Addr().String(),
		"auth_enabled", s.keys.Enabled(),
		"cors_enabled", s.config.API.CORS.Enabled)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped successfully")
	return nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// GetRouter returns the configured router.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// GetAddress returns the server address.
func (s *Server) GetAddress() string {
	return s.httpServer.Addr
}

// index describes the API for requests to the root path.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"service": "netsweep",
		"version": "v1",
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		"endpoints": map[string]string{
			"health":   "/api/v1/health",
			"segments": "/api/v1/segments",
			"jobs":     "/api/v1/jobs",
			"metrics":  "/metrics",
			"docs":     "/swagger/index.html",
		},
	})
}

func (s *Server) redirectToSwagger(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusNotFound, apihandlers.ErrorResponse{
		Error:     http.StatusText(http.StatusNotFound),
		Message:   "no route for " + r.URL.Path,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusMethodNotAllowed, apihandlers.ErrorResponse{
		Error:     http.StatusText(http.StatusMethodNotAllowed),
		Message:   r.Method + " is not allowed on " + r.URL.Path,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response",
			"error", err,
			"path", r.URL.Path,
			"method", r.Method)
	}
}
