// Package server provides the HTTP server implementation for the cluster API.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/config"
	apierrors "github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/errors"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/handler"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/health"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/metrics"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/middleware"
)

// Prefixes under which every route is served. Both families behave identically.
var Prefixes = []string{"", "/api"}

// Route is one entry of the route table.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Server represents the HTTP server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	handlers     *handler.Handlers
	healthCheck  *health.HealthCheck
	errorHandler *apierrors.Handler
	metrics      *metrics.Metrics
	logger       *zap.Logger
	cfg          *config.Config
}

// NewServer creates a new HTTP server.
func NewServer(cfg *config.Config, handlers *handler.Handlers, healthCheck *health.HealthCheck, errorHandler *apierrors.Handler, m *metrics.Metrics, logger *zap.Logger) *Server {
	// Object keys may contain "//" and dot segments, which path cleaning
	// would answer with a redirect.
	router := mux.NewRouter().SkipClean(true)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		router:       router,
		httpServer:   httpServer,
		handlers:     handlers,
		healthCheck:  healthCheck,
		errorHandler: errorHandler,
		metrics:      m,
		logger:       logger,
		cfg:          cfg,
	}
}

// Routes returns the route table. Paths are relative to each prefix.
func (s *Server) Routes() []Route {
	h := s.handlers
	return []Route{
		{http.MethodGet, "/health", s.healthCheck.LivenessHandler},
		{http.MethodGet, "/ready", s.healthCheck.ReadinessHandler},

		{http.MethodGet, "/containers", h.ListContainers},
		// An empty name is a validation error rather than an unknown route.
		{http.MethodGet, "/containers/", h.GetContainerStatus},
		{http.MethodPost, "/containers/", h.StartContainer},
		{http.MethodDelete, "/containers/", h.StopContainer},
		{http.MethodGet, "/containers/{name}", h.GetContainerStatus},
		{http.MethodPost, "/containers/{name}", h.StartContainer},
		{http.MethodDelete, "/containers/{name}", h.StopContainer},
		{http.MethodGet, "/containers/{name}/health", h.GetContainerHealth},
		{http.MethodGet, "/cluster/health", h.GetClusterHealth},

		{http.MethodGet, "/s3-operations", h.ListOperations},
		{http.MethodGet, "/s3/buckets", h.ListBuckets},
		{http.MethodGet, "/s3/buckets/{bucket}", h.ListObjects},
		{http.MethodPut, "/s3/buckets/{bucket}", h.CreateBucket},
		{http.MethodDelete, "/s3/buckets/{bucket}", h.DeleteBucket},
		{http.MethodGet, "/s3/buckets/{bucket}/objects", h.ListObjects},
		{http.MethodPost, "/s3/buckets/{bucket}/objects/{key:.+}", h.PutObject},
		{http.MethodGet, "/s3/buckets/{bucket}/objects/{key:.+}", h.GetObject},
		{http.MethodDelete, "/s3/buckets/{bucket}/objects/{key:.+}", h.DeleteObject},
	}
}

// SetupRoutes configures all HTTP routes.
func (s *Server) SetupRoutes() {
	middlewareChain := []func(http.Handler) http.Handler{
		middleware.Recovery(s.errorHandler, s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
	}
	if s.metrics != nil {
		middlewareChain = append(middlewareChain, metrics.MetricsMiddleware(s.metrics))
	}

	if s.cfg.RateLimiter.Enabled {
		rateLimiter := middleware.NewRateLimiter(
			s.cfg.RateLimiter.RequestsPerSecond,
			s.cfg.RateLimiter.BurstSize,
			s.errorHandler,
			s.logger,
		)
		middlewareChain = append(middlewareChain, rateLimiter.Limit)
	}

	if s.cfg.Server.RequestTimeout > 0 {
		middlewareChain = append(middlewareChain, middleware.Timeout(s.cfg.Server.RequestTimeout))
	}

	chain := middleware.Chain(middlewareChain...)
	s.router.Use(func(next http.Handler) http.Handler {
		return chain(next)
	})

	for _, prefix := range Prefixes {
		for _, route := range s.Routes() {
			s.router.HandleFunc(prefix+route.Path, route.Handler).Methods(route.Method)
		}
	}

	// mux skips router middleware for unmatched requests, so these get the
	// outer handlers explicitly.
	outer := middleware.Chain(middleware.Recovery(s.errorHandler, s.logger), middleware.RequestID, middleware.Logging(s.logger))

	s.router.NotFoundHandler = outer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(middleware.RequestIDHeader)
		s.errorHandler.WriteNotFound(w, "endpoint not found", requestID)
	}))

	s.router.MethodNotAllowedHandler = outer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(middleware.RequestIDHeader)
		s.errorHandler.WriteErrorResponse(w, http.StatusMethodNotAllowed, apierrors.ErrorCodeMethodNotAllowed, "method not allowed", requestID)
	}))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.Int("port", s.cfg.Server.Port),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the http.Handler for the server.
func (s *Server) GetHandler() http.Handler {
	return s.router
}
