// Package server provides the HTTP server for the JSON API
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/infrastructure/config"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/http/handlers"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/monitoring"
	"github.com/alchemorsel/recipe-studio/pkg/healthcheck"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// APIPrefix is the base path of every versioned endpoint.
const APIPrefix = "/api/v1"

// Server represents the HTTP server
type Server struct {
	config   *config.Config
	logger   *zap.Logger
	router   *chi.Mux
	server   *http.Server
	handlers *handlers.Handlers
	auth     middleware.Authenticator
	limiter  *middleware.RateLimiter
	health   *healthcheck.HealthCheck
	metrics  *monitoring.Metrics
	gatherer prometheus.Gatherer
}

// NewServer creates a new HTTP server instance
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	h *handlers.Handlers,
	auth middleware.Authenticator,
	health *healthcheck.HealthCheck,
	metrics *monitoring.Metrics,
	gatherer prometheus.Gatherer,
) *Server {
	s := &Server{
		config:   cfg,
		logger:   logger.Named("http-server"),
		handlers: h,
		auth:     auth,
		health:   health,
		metrics:  metrics,
		gatherer: gatherer,
	}
	if cfg.RateLimit.Enabled {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, s.logger)
	}

	s.router = s.setupRouter()

	var handler http.Handler = s.router
	if cfg.Monitoring.TracingEnabled {
		handler = otelhttp.NewHandler(handler, cfg.Monitoring.ServiceName)
	}

	s.server = &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s
}

// Handler returns the root handler. Tests serve it with httptest.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// setupRouter configures the HTTP router with middleware and routes
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics(s.metrics))
	r.Use(middleware.Security())
	r.Use(middleware.CORS(s.config.Server.AllowedOrigins))
	r.Use(middleware.Compress(middleware.DefaultCompressionConfig(), s.logger))

	r.Get("/health", s.health.Handler())
	r.Get("/live", s.health.LivenessHandler())
	r.Get("/ready", s.health.ReadinessHandler())
	if s.config.Monitoring.MetricsEnabled && s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route(APIPrefix, func(r chi.Router) {
		r.Use(middleware.JSONOnly(s.logger))
		r.Use(middleware.Authenticate(s.auth, s.logger))
		s.handlers.Routes(r, s.generateLimit)
	})

	return r
}

// generateLimit rate limits the endpoints that call the model provider.
func (s *Server) generateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return s.limiter.Middleware(next)
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server",
		zap.String("address", s.server.Addr),
		zap.String("environment", s.config.App.Environment),
	)

	if err := http2.ConfigureServer(s.server, nil); err != nil {
		s.logger.Error("Failed to configure HTTP/2", zap.Error(err))
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Listen binds the configured address so that startup fails fast when the
// port is taken. Serve the returned listener with Serve.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	return ln, nil
}

// Serve serves requests on ln until Shutdown is called
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Starting HTTP server",
		zap.String("address", ln.Addr().String()),
		zap.String("environment", s.config.App.Environment),
	)

	if err := http2.ConfigureServer(s.server, nil); err != nil {
		s.logger.Error("Failed to configure HTTP/2", zap.Error(err))
	}

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// RunLimiterCleanup forgets idle rate limit buckets until ctx is done
func (s *Server) RunLimiterCleanup(ctx context.Context, interval time.Duration) {
	if s.limiter == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.limiter.Cleanup(10 * time.Minute); removed > 0 {
				s.logger.Debug("Removed idle rate limit buckets", zap.Int("removed", removed))
			}
		}
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
