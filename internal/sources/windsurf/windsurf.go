// Package windsurf reports Windsurf workspace metadata. The editor's
// conversation payloads live server-side, so this adapter produces
// workspace entries and store paths for fingerprinting but emits no
// conversations at all. It still registers with the aggregator so
// detection and workspace listings cover all three editors.
package windsurf

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"go.uber.org/zap"

	"github.com/gandalf-mcp/gandalf/internal/conversations"
	"github.com/gandalf-mcp/gandalf/internal/sources"
)

// Adapter enumerates Windsurf workspace storage.
type Adapter struct {
	roots  []string
	logger *zap.Logger
}

var _ sources.Source = (*Adapter)(nil)

// New builds an adapter over the given user-data roots. Empty roots
// select the per-OS defaults.
func New(roots []string, logger *zap.Logger) *Adapter {
	if len(roots) == 0 {
		roots = defaultRoots()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{roots: roots, logger: logger.Named("windsurf")}
}

// Name implements sources.Source.
func (a *Adapter) Name() conversations.Source {
	return conversations.SourceWindsurf
}

// Detect reports whether any workspace storage directory exists.
func (a *Adapter) Detect(ctx context.Context) bool {
	return len(a.workspaceDirs()) > 0
}

// Stores returns the workspace storage directories for cache
// fingerprinting.
func (a *Adapter) Stores(ctx context.Context) []string {
	return a.workspaceDirs()
}

// ListWorkspaces enumerates workspace storage directories. Totals stay
// zero: conversation payloads are not locally readable.
func (a *Adapter) ListWorkspaces(ctx context.Context) ([]conversations.Workspace, error) {
	var workspaces []conversations.Workspace
	for _, dir := range a.workspaceDirs() {
		if err := ctx.Err(); err != nil {
			return workspaces, err
		}
		workspaces = append(workspaces, conversations.Workspace{
			Source:      conversations.SourceWindsurf,
			WorkspaceID: filepath.Base(dir),
			Path:        dir,
		})
	}
	return workspaces, nil
}

// Extract emits nothing: without locally readable payloads an empty
// conversation shell would only dilute recall results. Workspace
// presence is still visible through ListWorkspaces.
func (a *Adapter) Extract(ctx context.Context, f conversations.Filter, emit func(conversations.Conversation) error) error {
	return ctx.Err()
}

// workspaceDirs lists per-workspace storage directories under the
// configured roots, sorted for deterministic order.
func (a *Adapter) workspaceDirs() []string {
	var dirs []string
	for _, root := range a.roots {
		pattern := filepath.Join(root, "User", "workspaceStorage", "*")
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && info.IsDir() {
				dirs = append(dirs, m)
			}
		}
	}
	sort.Strings(dirs)
	return dirs
}

// defaultRoots returns the per-OS Windsurf user-data directories.
func defaultRoots() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	switch runtime.GOOS {
	case "darwin":
		return []string{filepath.Join(home, "Library", "Application Support", "Windsurf")}
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return []string{filepath.Join(appData, "Windsurf")}
		}
		return []string{filepath.Join(home, "AppData", "Roaming", "Windsurf")}
	default:
		return []string{filepath.Join(home, ".config", "Windsurf")}
	}
}
