package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gandalf-mcp/gandalf/internal/aggregator"
	"github.com/gandalf-mcp/gandalf/internal/cache"
	"github.com/gandalf-mcp/gandalf/internal/config"
	"github.com/gandalf-mcp/gandalf/internal/conversations"
	"github.com/gandalf-mcp/gandalf/internal/exporter"
	"github.com/gandalf-mcp/gandalf/internal/home"
	"github.com/gandalf-mcp/gandalf/internal/httpapi"
	"github.com/gandalf-mcp/gandalf/internal/logging"
	"github.com/gandalf-mcp/gandalf/internal/mcp"
	"github.com/gandalf-mcp/gandalf/internal/project"
	"github.com/gandalf-mcp/gandalf/internal/redact"
	"github.com/gandalf-mcp/gandalf/internal/sources"
	"github.com/gandalf-mcp/gandalf/internal/sources/claudecode"
	"github.com/gandalf-mcp/gandalf/internal/sources/cursor"
	"github.com/gandalf-mcp/gandalf/internal/sources/windsurf"
	"github.com/gandalf-mcp/gandalf/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

var (
	flagProjectRoot string
	flagDebug       bool
	flagHTTPAddr    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Serve MCP tools over stdio",
	Long: `Run the MCP server on the stdio transport until the client
disconnects or the process is interrupted. Stdout carries the JSON-RPC
framing; logs go to the session file under the gandalf home.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	runCmd.Flags().StringVar(&flagProjectRoot, "project-root", "", "project directory tool calls operate on (default: auto-detected)")
	runCmd.Flags().BoolVar(&flagDebug, "debug", false, "debug logging and debug-level MCP notifications")
	runCmd.Flags().StringVar(&flagHTTPAddr, "http-addr", "", "enable the localhost observability server on this address")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if flagDebug {
		cfg.MCPDebug = true
		cfg.LogLevel = "debug"
	}
	if flagHTTPAddr != "" {
		cfg.HTTPAddr = flagHTTPAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	layout := home.New(cfg.Home)
	if err := layout.Ensure(); err != nil {
		return fmt.Errorf("preparing home directory: %w", err)
	}

	level, lerr := logging.LevelFromString(cfg.LogLevel)
	logCfg := logging.NewDefaultConfig()
	logCfg.Dir = layout.LogsDir()
	logCfg.Level = level
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Close()
	if lerr != nil {
		logger.Underlying().Warn("unknown log level, using info",
			zap.String("level", cfg.LogLevel))
	}

	// SIGINT maps to exit code 130; SIGTERM shuts down with code 0.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var interrupted atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		if sig == syscall.SIGINT {
			interrupted.Store(true)
		}
		logger.Underlying().Info("shutting down on signal", zap.Stringer("signal", sig))
		cancel()
	}()

	tel, err := telemetry.New(&telemetry.Config{
		Enabled:        true,
		ServiceName:    "gandalf",
		ServiceVersion: version,
	}, logger.Underlying())
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		if err := tel.Shutdown(sctx); err != nil {
			logger.Underlying().Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	root, err := project.Resolve(flagProjectRoot, cfg.WorkspacePaths)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}

	weights := loadWeights(ctx, root, logger.Underlying())

	zl := logger.Underlying()
	registry := sources.NewRegistry([]sources.Source{
		cursor.New(nil, zl),
		claudecode.New("", zl),
		windsurf.New(nil, zl),
	}, conversations.Source(cfg.FallbackTool), zl)

	agg := aggregator.New(registry, zl)
	store := cache.New(layout.CacheDir(), cfg.CacheTTL, zl)
	exp := exporter.New(buildRedactor(root, zl), zl)

	notifier := mcp.NewNotifier(cfg.MCPDebug)
	sessionLogger := logger.Tee(notifier.Core())

	srv, err := mcp.NewServer(&mcp.Config{
		Name:        "gandalf",
		Version:     version,
		ProjectRoot: root,
		ExportsDir:  layout.ExportsDir(),
		MaxFiles:    cfg.MaxFiles,
		GitTimeout:  cfg.GitTimeout,
		MCPDebug:    cfg.MCPDebug,
		Weights:     weights,
		Notifier:    notifier,
		Logger:      sessionLogger.Underlying(),
	}, registry, agg, store, exp)
	if err != nil {
		return fmt.Errorf("initializing MCP server: %w", err)
	}

	if cfg.HTTPAddr != "" {
		hsrv, err := httpapi.NewServer(registry, agg, zl, &httpapi.Config{
			Addr:    cfg.HTTPAddr,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("initializing http server: %w", err)
		}
		go func() {
			if err := hsrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zl.Warn("http server stopped", zap.Error(err))
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			_ = hsrv.Shutdown(sctx)
		}()
	}

	err = srv.Run(ctx)
	if interrupted.Load() {
		return errInterrupted
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// loadWeights builds the scoring weights snapshot function. When a
// weights file exists its directory is watched and new valid snapshots
// swap in without a restart.
func loadWeights(ctx context.Context, projectRoot string, logger *zap.Logger) func() *config.Weights {
	path := config.DiscoverWeightsFile(projectRoot)
	w, err := config.LoadWeights(path)
	if err != nil {
		logger.Warn("weights load degraded, continuing on remaining layers",
			zap.String("path", path), zap.Error(err))
	}

	var snapshot atomic.Pointer[config.Weights]
	snapshot.Store(w)

	if path != "" {
		watcher, werr := config.NewWeightsWatcher(path, logger)
		if werr != nil {
			logger.Warn("weights watcher unavailable", zap.Error(werr))
		} else if serr := watcher.Start(ctx); serr != nil {
			logger.Warn("weights watcher failed to start", zap.Error(serr))
			watcher.Stop()
		} else {
			go func() {
				defer watcher.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case next, ok := <-watcher.Updates():
						if !ok {
							return
						}
						snapshot.Store(next)
					}
				}
			}()
		}
	}

	return snapshot.Load
}

// buildRedactor loads the allowlists and compiles the secret detector.
// Redaction problems degrade to pass-through with a warning; a broken
// allowlist must not take the export path down.
func buildRedactor(projectRoot string, logger *zap.Logger) *redact.Redactor {
	userPath := ""
	if dir, err := os.UserConfigDir(); err == nil {
		userPath = filepath.Join(dir, "gandalf", "allowlist.toml")
	}
	allow, err := redact.LoadAllowlists(projectRoot, userPath)
	if err != nil {
		logger.Warn("allowlist load failed, redacting without allowlist", zap.Error(err))
		allow = nil
	}
	redactor, err := redact.New(allow)
	if err != nil {
		logger.Warn("secret detector unavailable, exports are unredacted", zap.Error(err))
		return redact.NewDisabled()
	}
	return redactor
}
