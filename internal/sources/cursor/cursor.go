// Package cursor extracts conversations from Cursor's workspace
// storage: per-workspace SQLite databases named state.vscdb under the
// editor's user-data directory. Databases are opened read-only; a
// corrupt database is skipped with a warning, never written to.
package cursor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"go.uber.org/zap"

	"github.com/gandalf-mcp/gandalf/internal/conversations"
	"github.com/gandalf-mcp/gandalf/internal/sources"
)

// Adapter reads Cursor workspace databases.
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
	return &Adapter{roots: roots, logger: logger.Named("cursor")}
}

// Name implements sources.Source.
func (a *Adapter) Name() conversations.Source {
	return conversations.SourceCursor
}

// Detect reports whether any workspace database exists.
func (a *Adapter) Detect(ctx context.Context) bool {
	return len(a.databases()) > 0
}

// Stores returns the workspace database paths for cache fingerprinting.
func (a *Adapter) Stores(ctx context.Context) []string {
	return a.databases()
}

// ListWorkspaces enumerates workspace databases with totals.
func (a *Adapter) ListWorkspaces(ctx context.Context) ([]conversations.Workspace, error) {
	var workspaces []conversations.Workspace
	for _, dbPath := range a.databases() {
		if err := ctx.Err(); err != nil {
			return workspaces, err
		}
		data, err := readStore(ctx, dbPath)
		if err != nil {
			a.logger.Warn("skipping unreadable workspace database",
				zap.String("path", dbPath), zap.Error(err))
			continue
		}
		ws := conversations.Workspace{
			Source:      conversations.SourceCursor,
			WorkspaceID: workspaceHash(dbPath),
			Path:        dbPath,
			Totals: conversations.WorkspaceTotals{
				Conversations: len(data.composers),
				Prompts:       len(data.prompts),
				Generations:   len(data.generations),
			},
		}
		// Prompt-only stores still represent one synthesized
		// conversation.
		if ws.Totals.Conversations == 0 && (ws.Totals.Prompts > 0 || ws.Totals.Generations > 0) {
			ws.Totals.Conversations = 1
		}
		workspaces = append(workspaces, ws)
	}
	return workspaces, nil
}

// Extract streams normalized conversations from every workspace
// database. A database that fails to open or read is skipped; the
// remaining workspaces still extract.
func (a *Adapter) Extract(ctx context.Context, f conversations.Filter, emit func(conversations.Conversation) error) error {
	cutoff := f.Cutoff()
	for _, dbPath := range a.databases() {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := readStore(ctx, dbPath)
		if err != nil {
			a.logger.Warn("skipping corrupt workspace database",
				zap.String("path", dbPath), zap.Error(err))
			continue
		}
		for _, conv := range a.normalize(dbPath, data, f) {
			if cutoff > 0 && conv.UpdatedAt < cutoff {
				continue
			}
			if err := emit(conv); err != nil {
				return err
			}
		}
	}
	return nil
}

// normalize turns one workspace's raw streams into conversations.
//
// Composer records become conversations directly. The prompt and
// generation streams are joined into messages and attached to the most
// recently updated composer; when no composer record exists they are
// carried by a synthesized conversation whose id derives from the
// workspace hash plus a stable ordinal.
func (a *Adapter) normalize(dbPath string, data *storeData, f conversations.Filter) []conversations.Conversation {
	hash := workspaceHash(dbPath)
	messages, firstTS, lastTS := joinMessages(data)

	var convs []conversations.Conversation
	for _, c := range data.composers {
		conv := conversations.Conversation{
			ID:          c.ComposerID,
			Source:      conversations.SourceCursor,
			WorkspaceID: hash,
			Title:       c.Name,
			CreatedAt:   c.CreatedAt,
			UpdatedAt:   c.LastUpdatedAt,
		}
		if conv.Title == "" {
			conv.Title = "Cursor session " + shortID(conv.ID)
		}
		if conv.UpdatedAt == 0 {
			conv.UpdatedAt = storeMtime(dbPath)
		}
		convs = append(convs, conv)
	}

	if len(convs) > 0 {
		// The newest composer is the active session; the workspace's
		// prompt and generation history belongs to it.
		newest := 0
		for i := range convs {
			if convs[i].UpdatedAt > convs[newest].UpdatedAt {
				newest = i
			}
		}
		attachStreams(&convs[newest], data, messages, f.FastMode)
	} else if len(data.prompts) > 0 || len(data.generations) > 0 {
		conv := conversations.Conversation{
			ID:          fmt.Sprintf("%s-0", hash),
			Source:      conversations.SourceCursor,
			WorkspaceID: hash,
			CreatedAt:   firstTS,
			UpdatedAt:   lastTS,
		}
		if len(data.prompts) > 0 {
			conv.Title = synthesizeTitle(data.prompts[0].Text)
		}
		if conv.Title == "" {
			conv.Title = "Cursor session " + shortID(hash)
		}
		if conv.UpdatedAt == 0 {
			conv.UpdatedAt = storeMtime(dbPath)
		}
		if conv.CreatedAt == 0 {
			conv.CreatedAt = conv.UpdatedAt
		}
		attachStreams(&conv, data, messages, f.FastMode)
		convs = append(convs, conv)
	}

	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].UpdatedAt > convs[j].UpdatedAt
	})
	return convs
}

// attachStreams fills counts and, outside fast mode, messages.
func attachStreams(conv *conversations.Conversation, data *storeData, messages []conversations.Message, fastMode bool) {
	conv.PromptCount = len(data.prompts)
	conv.GenerationCount = len(data.generations)
	conv.TotalExchanges = conv.PromptCount + conv.GenerationCount
	if !fastMode {
		conv.Messages = messages
		conv.SortMessages()
	}
}

// joinMessages merges the prompt and generation streams into one
// message sequence and reports the observed timestamp bounds.
func joinMessages(data *storeData) ([]conversations.Message, int64, int64) {
	var msgs []conversations.Message
	var first, last int64

	for _, p := range data.prompts {
		if p.Text == "" {
			continue
		}
		msgs = append(msgs, conversations.Message{
			Role:    conversations.RoleUser,
			Content: p.Text,
		})
	}
	for _, g := range data.generations {
		if g.TextDescription == "" && g.Type == "" {
			continue
		}
		msg := conversations.Message{
			Role:      conversations.RoleAssistant,
			Content:   g.TextDescription,
			Timestamp: g.UnixMs,
		}
		if g.Type != "" {
			msg.Metadata = map[string]any{"generation_type": g.Type}
		}
		msgs = append(msgs, msg)

		if g.UnixMs > 0 {
			if first == 0 || g.UnixMs < first {
				first = g.UnixMs
			}
			if g.UnixMs > last {
				last = g.UnixMs
			}
		}
	}
	return msgs, first, last
}

// databases lists every state.vscdb under the configured roots, sorted
// for deterministic extraction order.
func (a *Adapter) databases() []string {
	var dbs []string
	for _, root := range a.roots {
		pattern := filepath.Join(root, "User", "workspaceStorage", "*", "state.vscdb")
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		dbs = append(dbs, matches...)
	}
	sort.Strings(dbs)
	return dbs
}

// defaultRoots returns the per-OS Cursor user-data directories.
func defaultRoots() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	switch runtime.GOOS {
	case "darwin":
		return []string{filepath.Join(home, "Library", "Application Support", "Cursor")}
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return []string{filepath.Join(appData, "Cursor")}
		}
		return []string{filepath.Join(home, "AppData", "Roaming", "Cursor")}
	default:
		return []string{filepath.Join(home, ".config", "Cursor")}
	}
}

// workspaceHash is the storage directory name holding the database.
func workspaceHash(dbPath string) string {
	return filepath.Base(filepath.Dir(dbPath))
}

func storeMtime(dbPath string) int64 {
	if info, err := os.Stat(dbPath); err == nil {
		return info.ModTime().UnixMilli()
	}
	return 0
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// synthesizeTitle derives a title from the first prompt text.
func synthesizeTitle(text string) string {
	const maxTitleLen = 80
	for i, r := range text {
		if r == '\n' {
			text = text[:i]
			break
		}
	}
	if len(text) > maxTitleLen {
		cut := maxTitleLen
		for cut > 0 && text[cut-1] >= 0x80 {
			cut--
		}
		text = text[:cut] + "..."
	}
	return text
}
