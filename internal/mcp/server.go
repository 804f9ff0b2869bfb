// Package mcp exposes the gandalf tool surface over the Model Context
// Protocol. The server translates tool calls into aggregator, project,
// and exporter operations and shapes results back into the MCP content
// envelope.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/gandalf-mcp/gandalf/internal/aggregator"
	"github.com/gandalf-mcp/gandalf/internal/cache"
	"github.com/gandalf-mcp/gandalf/internal/config"
	"github.com/gandalf-mcp/gandalf/internal/exporter"
	"github.com/gandalf-mcp/gandalf/internal/sources"
)

// ProtocolVersion is the MCP revision this server speaks.
const ProtocolVersion = "2025-06-18"

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "gandalf").
	Name string

	// Version is the server version (default: "dev").
	Version string

	// ProjectRoot is the resolved project directory tool calls operate on.
	ProjectRoot string

	// ExportsDir is the default output directory for exports.
	ExportsDir string

	// MaxFiles caps file listings when the caller does not override it.
	MaxFiles int

	// GitTimeout bounds git metadata collection per request.
	GitTimeout time.Duration

	// MCPDebug forwards debug-level log notifications to the client.
	MCPDebug bool

	// Weights returns the current scoring weights snapshot. The watcher
	// swaps snapshots behind this function; nil selects the defaults.
	Weights func() *config.Weights

	// Notifier bridges log entries to the client. Callers that tee the
	// session logger into the bridge build it first and pass it here;
	// nil creates a fresh one.
	Notifier *Notifier

	// Logger for structured logging.
	Logger *zap.Logger
}

// Server holds the tool surface and its collaborators.
type Server struct {
	mcp        *mcp.Server
	cfg        Config
	registry   *sources.Registry
	aggregator *aggregator.Aggregator
	cache      *cache.Cache
	exporter   *exporter.Exporter
	metrics    *Metrics
	notifier   *Notifier
	logger     *zap.Logger
}

// NewServer creates the MCP server and registers every tool.
func NewServer(cfg *Config, registry *sources.Registry, agg *aggregator.Aggregator, store *cache.Cache, exp *exporter.Exporter) (*Server, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Name == "" {
		cfg.Name = "gandalf"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 1000
	}
	if cfg.Weights == nil {
		defaults := config.DefaultWeights()
		cfg.Weights = func() *config.Weights { return defaults }
	}
	if cfg.ProjectRoot == "" {
		return nil, fmt.Errorf("project root is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("source registry is required")
	}
	if agg == nil {
		return nil, fmt.Errorf("aggregator is required")
	}
	if store == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if exp == nil {
		return nil, fmt.Errorf("exporter is required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NewNotifier(cfg.MCPDebug)
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:        mcpServer,
		cfg:        *cfg,
		registry:   registry,
		aggregator: agg,
		cache:      store,
		exporter:   exp,
		metrics:    NewMetrics(cfg.Logger),
		notifier:   cfg.Notifier,
		logger:     cfg.Logger,
	}
	s.registerTools()
	return s, nil
}

// Notifier exposes the log-notification bridge so the session logger
// can tee into it.
func (s *Server) Notifier() *Notifier {
	return s.notifier
}

// Run serves the stdio transport until ctx is done or the client
// disconnects. Stdout belongs to the JSON-RPC framing; all human
// output goes to the session log.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport",
		zap.String("name", s.cfg.Name),
		zap.String("version", s.cfg.Version),
		zap.String("project_root", s.cfg.ProjectRoot))
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
