// Package config provides configuration loading for gandalf.
//
// Core settings come from environment variables with built-in defaults.
// Scoring weights layer built-in defaults, an optional gandalf-weights.yaml
// file, and WEIGHT_* environment overrides (see loader.go).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Default values for core settings.
const (
	DefaultCacheTTL = 3600 * time.Second
	DefaultMaxFiles = 1000

	// DefaultGitTimeout bounds git metadata collection per request.
	DefaultGitTimeout = 5 * time.Second
)

// Config holds the core gandalf configuration.
type Config struct {
	// Home is the gandalf state directory (cache/, logs/, exports/ ...).
	Home string

	// CacheTTL is the lifetime of aggregation cache entries.
	CacheTTL time.Duration

	// MaxFiles caps file listings when the caller does not override it.
	MaxFiles int

	// MCPDebug enables debug-level MCP log notifications.
	MCPDebug bool

	// FallbackTool names the source used when detection is ambiguous.
	// Normalized to the canonical source spelling (underscores).
	FallbackTool string

	// WorkspacePaths holds the entries of WORKSPACE_FOLDER_PATHS in order.
	WorkspacePaths []string

	// GitTimeout bounds git metadata collection.
	GitTimeout time.Duration

	// HTTPAddr, when non-empty, enables the localhost observability
	// server on that address. Empty means no listener at all.
	HTTPAddr string

	// LogLevel is the minimum session log level (zap names).
	LogLevel string
}

// Load reads the core configuration from the environment.
//
// Environment variables:
//   - GANDALF_HOME: state directory (default: ~/.gandalf)
//   - GANDALF_CACHE_TTL: cache TTL in seconds (default: 3600)
//   - GANDALF_MAX_FILES: default file listing cap (default: 1000)
//   - MCP_DEBUG: truthy enables debug log notifications
//   - GANDALF_FALLBACK_TOOL: source name used when detection is ambiguous
//   - WORKSPACE_FOLDER_PATHS: colon-separated workspace candidates
//   - GANDALF_LOG_LEVEL: session log level (default: info)
func Load() *Config {
	return &Config{
		Home:           getEnvPath("GANDALF_HOME", defaultHome()),
		CacheTTL:       time.Duration(getEnvInt("GANDALF_CACHE_TTL", int(DefaultCacheTTL/time.Second))) * time.Second,
		MaxFiles:       getEnvInt("GANDALF_MAX_FILES", DefaultMaxFiles),
		MCPDebug:       getEnvTruthy("MCP_DEBUG"),
		FallbackTool:   NormalizeSourceName(os.Getenv("GANDALF_FALLBACK_TOOL")),
		WorkspacePaths: splitPathList(os.Getenv("WORKSPACE_FOLDER_PATHS")),
		GitTimeout:     DefaultGitTimeout,
		LogLevel:       getEnvString("GANDALF_LOG_LEVEL", "info"),
	}
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.Home == "" {
		return fmt.Errorf("home directory cannot be empty")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %s", c.CacheTTL)
	}
	if c.MaxFiles < 0 {
		return fmt.Errorf("max files cannot be negative, got %d", c.MaxFiles)
	}
	if c.GitTimeout <= 0 {
		return fmt.Errorf("git timeout must be positive, got %s", c.GitTimeout)
	}
	switch c.FallbackTool {
	case "", "cursor", "claude_code", "windsurf":
	default:
		return fmt.Errorf("unknown fallback tool %q", c.FallbackTool)
	}
	return nil
}

// NormalizeSourceName maps user spellings of a source name to the
// canonical form ("claude-code" and "claude_code" both normalize).
// Unknown names pass through lowercased so validation can report them.
func NormalizeSourceName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, "-", "_")
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Last resort keeps the process functional in odd environments.
		return filepath.Join(os.TempDir(), ".gandalf")
	}
	return filepath.Join(home, ".gandalf")
}

// splitPathList splits a colon-separated path list, dropping empties.
func splitPathList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ":")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvPath(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if strings.HasPrefix(value, "~"+string(os.PathSeparator)) || value == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(value, "~"))
		}
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvTruthy reports whether the variable holds a truthy value.
// Accepted: 1, true, yes, on (case-insensitive).
func getEnvTruthy(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
