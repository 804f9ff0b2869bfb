// Package claudecode extracts conversations from Claude Code's on-disk
// session store: a tree of per-session JSONL files under
// ~/.claude/projects/<dashed-project-path>/. Each file is one
// conversation; each line is one message object.
package claudecode

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/gandalf-mcp/gandalf/internal/conversations"
	"github.com/gandalf-mcp/gandalf/internal/sources"
)

// maxTitleLen caps synthesized conversation titles.
const maxTitleLen = 80

// Adapter reads the Claude Code session tree. All file handles are
// read-only; the store belongs to Claude Code, not to gandalf.
type Adapter struct {
	root   string
	logger *zap.Logger
}

var _ sources.Source = (*Adapter)(nil)

// New builds an adapter over the given projects root. An empty root
// selects the default ~/.claude/projects.
func New(root string, logger *zap.Logger) *Adapter {
	if root == "" {
		if home, err := os.UserHomeDir(); err == nil {
			root = filepath.Join(home, ".claude", "projects")
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{root: root, logger: logger.Named("claude_code")}
}

// Name implements sources.Source.
func (a *Adapter) Name() conversations.Source {
	return conversations.SourceClaudeCode
}

// Detect reports whether any session file exists under the root.
func (a *Adapter) Detect(ctx context.Context) bool {
	dirs, err := a.projectDirs()
	if err != nil {
		return false
	}
	for _, dir := range dirs {
		if ctx.Err() != nil {
			return false
		}
		if files, err := sessionFiles(dir); err == nil && len(files) > 0 {
			return true
		}
	}
	return false
}

// Stores returns the per-project session directories for cache
// fingerprinting.
func (a *Adapter) Stores(ctx context.Context) []string {
	dirs, err := a.projectDirs()
	if err != nil {
		return nil
	}
	return dirs
}

// ListWorkspaces enumerates project directories with session totals.
// Totals come from a header-only scan of each file.
func (a *Adapter) ListWorkspaces(ctx context.Context) ([]conversations.Workspace, error) {
	dirs, err := a.projectDirs()
	if err != nil {
		return nil, err
	}

	var workspaces []conversations.Workspace
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return workspaces, err
		}
		files, err := sessionFiles(dir)
		if err != nil || len(files) == 0 {
			continue
		}
		ws := conversations.Workspace{
			Source:      conversations.SourceClaudeCode,
			WorkspaceID: filepath.Base(dir),
			Path:        dir,
		}
		for _, file := range files {
			counts, err := scanCounts(file)
			if err != nil {
				a.logger.Warn("skipping unreadable session file",
					zap.String("file", file), zap.Error(err))
				continue
			}
			ws.Totals.Conversations++
			ws.Totals.Prompts += counts.prompts
			ws.Totals.Generations += counts.generations
		}
		workspaces = append(workspaces, ws)
	}
	return workspaces, nil
}

// Extract streams one conversation per session file. Files whose mtime
// predates the lookback cutoff are skipped without parsing.
func (a *Adapter) Extract(ctx context.Context, f conversations.Filter, emit func(conversations.Conversation) error) error {
	dirs, err := a.projectDirs()
	if err != nil {
		// An absent store contributes zero conversations and no error.
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	cutoff := f.Cutoff()
	for _, dir := range dirs {
		files, err := sessionFiles(dir)
		if err != nil {
			continue
		}
		workspaceID := filepath.Base(dir)
		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			if cutoff > 0 {
				if info, err := os.Stat(file); err == nil && info.ModTime().UnixMilli() < cutoff {
					continue
				}
			}

			conv, err := a.parseSession(file, workspaceID, f)
			if err != nil {
				a.logger.Warn("skipping corrupt session file",
					zap.String("file", file), zap.Error(err))
				continue
			}
			if conv == nil {
				continue
			}
			if cutoff > 0 && conv.UpdatedAt < cutoff {
				continue
			}
			if err := emit(*conv); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseSession builds one normalized conversation from a JSONL file.
// Returns nil for files holding no user or assistant messages.
func (a *Adapter) parseSession(path, workspaceID string, f conversations.Filter) (*conversations.Conversation, error) {
	parsed, err := parseFile(path, f.FastMode)
	if err != nil {
		return nil, err
	}
	if parsed.prompts == 0 && parsed.generations == 0 {
		return nil, nil
	}
	if parsed.errorCount > 0 {
		a.logger.Debug("session file had malformed lines",
			zap.String("file", path), zap.Int("errors", parsed.errorCount))
	}

	id := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	conv := &conversations.Conversation{
		ID:              id,
		Source:          conversations.SourceClaudeCode,
		WorkspaceID:     workspaceID,
		Title:           parsed.title,
		CreatedAt:       parsed.firstTimestamp,
		UpdatedAt:       parsed.lastTimestamp,
		PromptCount:     parsed.prompts,
		GenerationCount: parsed.generations,
		TotalExchanges:  parsed.prompts + parsed.generations,
		Messages:        parsed.messages,
	}
	if conv.Title == "" {
		conv.Title = "Untitled session " + shortID(id)
	}
	if conv.UpdatedAt == 0 {
		if info, err := os.Stat(path); err == nil {
			conv.UpdatedAt = info.ModTime().UnixMilli()
		}
	}
	if conv.CreatedAt == 0 {
		conv.CreatedAt = conv.UpdatedAt
	}
	conv.SortMessages()
	return conv, nil
}

// projectDirs lists the per-project directories under the root, sorted
// for deterministic extraction order.
func (a *Adapter) projectDirs() ([]string, error) {
	if a.root == "" {
		return nil, os.ErrNotExist
	}
	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(a.root, e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// sessionFiles lists the JSONL files of one project directory, sorted.
func sessionFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
