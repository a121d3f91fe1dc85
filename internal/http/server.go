// Package http serves the maker API: margin and cost calculators, offline
// benchmark runs and live run events.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/maker/internal/events"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultHeartbeat = 30 * time.Second

// Server provides HTTP endpoints for maker.
type Server struct {
	echo    *echo.Echo
	logger  *zap.Logger
	config  *Config
	metrics *HTTPMetrics

	nc        *nats.Conn
	prefix    string
	publisher events.Publisher
	heartbeat time.Duration
	version   string
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Option configures a Server.
type Option func(*Server)

// WithEvents streams run events from nc under prefix and publishes
// simulation progress there.
func WithEvents(nc *nats.Conn, prefix string) Option {
	return func(s *Server) {
		s.nc = nc
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithPublisher overrides the publisher used for simulation runs.
func WithPublisher(p events.Publisher) Option {
	return func(s *Server) { s.publisher = p }
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithMetrics installs OTEL request metrics.
func WithMetrics(m *HTTPMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHeartbeat sets the SSE keep-alive interval.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// NewServer creates a new HTTP server.
func NewServer(logger *zap.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 9190,
		}
	}

	s := &Server{
		logger:    logger,
		config:    cfg,
		prefix:    "maker.runs",
		heartbeat: defaultHeartbeat,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.publisher == nil {
		if s.nc != nil {
			s.publisher = events.NewNATSPublisher(s.nc, s.prefix, logger)
		} else {
			s.publisher = events.NopPublisher{}
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if s.metrics != nil {
		e.Use(s.metrics.MetricsMiddleware())
	}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s.echo = e
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/kmin", s.handleKMin)
	v1.POST("/cost", s.handleCost)
	v1.GET("/models", s.handleModels)
	v1.POST("/simulations/hanoi", s.handleHanoiSimulation)
	v1.GET("/runs/:run_id/events", s.handleRunEvents)
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Version: s.version, Events: "disabled"}
	if s.nc != nil {
		resp.Events = "connected"
		if !s.nc.IsConnected() {
			resp.Status = "degraded"
			resp.Events = s.nc.Status().String()
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
