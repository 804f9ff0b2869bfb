// Package httpapi provides the opt-in localhost observability server:
// health, Prometheus metrics, and aggregate source statistics. The MCP
// transport stays on stdio; nothing here is required for tool calls.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gandalf-mcp/gandalf/internal/aggregator"
	"github.com/gandalf-mcp/gandalf/internal/conversations"
	"github.com/gandalf-mcp/gandalf/internal/sources"
)

// statsTimeout bounds one stats collection; listing workspaces opens
// every detected store.
const statsTimeout = 10 * time.Second

// Config holds HTTP server configuration.
type Config struct {
	// Addr is the listen address. The caller decides whether to start
	// the server at all; an empty addr here falls back to the default.
	Addr string

	// Version reported by /health.
	Version string
}

// Server exposes the observability endpoints.
type Server struct {
	echo     *echo.Echo
	registry *sources.Registry
	agg      *aggregator.Aggregator
	logger   *zap.Logger
	config   *Config
	metrics  *HTTPMetrics
	started  time.Time
}

// NewServer creates the observability server.
func NewServer(registry *sources.Registry, agg *aggregator.Aggregator, logger *zap.Logger, cfg *Config) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("source registry is required")
	}
	if agg == nil {
		return nil, fmt.Errorf("aggregator is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:9595"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	m := NewHTTPMetrics(logger)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(m.Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:     e,
		registry: registry,
		agg:      agg,
		logger:   logger,
		config:   cfg,
		metrics:  m,
		started:  time.Now(),
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/stats", s.handleStats)
}

// Echo exposes the underlying router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       s.config.Version,
		UptimeSeconds: time.Since(s.started).Seconds(),
	})
}

// StatsTotals sums workspace totals across every detected source.
type StatsTotals struct {
	Workspaces    int `json:"workspaces"`
	Conversations int `json:"conversations"`
	Prompts       int `json:"prompts"`
	Generations   int `json:"generations"`
}

// StatsResponse is the response body for GET /api/v1/stats.
type StatsResponse struct {
	Sources    []string                  `json:"sources"`
	Workspaces []conversations.Workspace `json:"workspaces"`
	Totals     StatsTotals               `json:"totals"`
}

func (s *Server) handleStats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), statsTimeout)
	defer cancel()

	detected := s.registry.Detect(ctx)
	names := make([]string, 0, len(detected))
	for _, src := range detected {
		names = append(names, string(src.Name()))
	}

	workspaces, err := s.agg.ListWorkspaces(ctx)
	if err != nil {
		s.logger.Warn("listing workspaces failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "workspace listing failed")
	}

	resp := StatsResponse{
		Sources:    names,
		Workspaces: workspaces,
	}
	for _, ws := range workspaces {
		resp.Totals.Workspaces++
		resp.Totals.Conversations += ws.Totals.Conversations
		resp.Totals.Prompts += ws.Totals.Prompts
		resp.Totals.Generations += ws.Totals.Generations
	}

	DetectedSources.Set(float64(len(names)))
	WorkspacesTotal.Set(float64(resp.Totals.Workspaces))
	ConversationsTotal.Set(float64(resp.Totals.Conversations))

	return c.JSON(http.StatusOK, resp)
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.config.Addr))
	return s.echo.Start(s.config.Addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
