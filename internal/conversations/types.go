package conversations

import (
	"math"
	"sort"
	"time"
)

// Source identifies the tool a conversation was extracted from.
type Source string

const (
	SourceCursor     Source = "cursor"
	SourceClaudeCode Source = "claude_code"
	SourceWindsurf   Source = "windsurf"
)

// SourceOrder is the fixed precedence used for deterministic tie-breaks,
// for example when the same logical conversation appears in two sources
// with equal message counts.
var SourceOrder = []Source{SourceCursor, SourceClaudeCode, SourceWindsurf}

// Valid reports whether s names a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceCursor, SourceClaudeCode, SourceWindsurf:
		return true
	}
	return false
}

// orderIndex returns the position of s in SourceOrder, or len(SourceOrder)
// for unknown sources so they sort last.
func (s Source) orderIndex() int {
	for i, v := range SourceOrder {
		if v == s {
			return i
		}
	}
	return len(SourceOrder)
}

// Less orders sources by the fixed precedence.
func (s Source) Less(other Source) bool {
	return s.orderIndex() < other.orderIndex()
}

// Role is the speaker of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// Message is one exchange inside a conversation. Timestamps are epoch
// milliseconds; zero means the source reported none.
type Message struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp int64          `json:"timestamp,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Conversation is the normalized record every adapter produces.
// In fast mode Messages is empty while the counts remain populated.
type Conversation struct {
	ID              string    `json:"id"`
	Source          Source    `json:"source"`
	WorkspaceID     string    `json:"workspace_id"`
	Title           string    `json:"title"`
	CreatedAt       int64     `json:"created_at"`
	UpdatedAt       int64     `json:"updated_at"`
	PromptCount     int       `json:"prompt_count"`
	GenerationCount int       `json:"generation_count"`
	TotalExchanges  int       `json:"total_exchanges"`
	Messages        []Message `json:"messages"`
	ActivityScore   float64   `json:"activity_score"`
	RelevanceScore  float64   `json:"relevance_score,omitempty"`
	Snippet         string    `json:"snippet,omitempty"`
}

// Key identifies a conversation for deduplication.
type Key struct {
	Source Source
	ID     string
}

// Key returns the deduplication key.
func (c *Conversation) Key() Key {
	return Key{Source: c.Source, ID: c.ID}
}

// SortMessages orders messages by timestamp where timestamps exist.
// Messages without timestamps, and ties, keep their source-native order.
func (c *Conversation) SortMessages() {
	sort.SliceStable(c.Messages, func(i, j int) bool {
		a, b := c.Messages[i].Timestamp, c.Messages[j].Timestamp
		if a == 0 || b == 0 {
			return false
		}
		return a < b
	})
}

// WorkspaceTotals summarize a workspace without loading conversations.
type WorkspaceTotals struct {
	Conversations int `json:"conversations"`
	Prompts       int `json:"prompts"`
	Generations   int `json:"generations"`
}

// Workspace is a source-side container grouping conversations, for
// example one Cursor window's project.
type Workspace struct {
	Source      Source          `json:"source"`
	WorkspaceID string          `json:"workspace_id"`
	Path        string          `json:"path"`
	Totals      WorkspaceTotals `json:"totals"`
}

// Filter is the shared predicate passed to every adapter's Extract.
type Filter struct {
	// FastMode skips message payloads; headers and counts only.
	FastMode bool

	// DaysLookback drops conversations whose UpdatedAt is older than
	// Now minus this many days.
	DaysLookback int

	// Limit caps the aggregated result after ranking.
	Limit int

	// Query enables keyword relevance scoring when non-empty.
	Query string

	// IncludeContent loads matched message context for snippets.
	IncludeContent bool

	// Types restricts results to classifier labels (comprehensive only).
	Types []string

	// Now is the reference instant in epoch milliseconds. Zero means
	// the aggregator stamps it at call time.
	Now int64
}

// Cutoff returns the epoch-millisecond threshold below which a
// conversation's UpdatedAt excludes it, or 0 when no lookback applies.
func (f Filter) Cutoff() int64 {
	if f.DaysLookback <= 0 || f.Now == 0 {
		return 0
	}
	return f.Now - int64(f.DaysLookback)*24*int64(time.Hour/time.Millisecond)
}

// ActivityScore is the recency-and-volume composite used to rank recall
// results. Pure function of its inputs: a decaying recency component
// plus a log-scaled exchange volume component.
func ActivityScore(updatedAt, now int64, exchanges int) float64 {
	if updatedAt <= 0 || now <= 0 {
		return 0
	}
	ageDays := float64(now-updatedAt) / float64(24*time.Hour/time.Millisecond)
	if ageDays < 0 {
		ageDays = 0
	}
	// Half-life of roughly a week keeps last-session work on top.
	recency := math.Exp(-ageDays / 7.0)
	volume := math.Log1p(float64(exchanges)) / 10.0
	return recency*2.0 + volume
}

// EpochMillis converts an instant to epoch milliseconds.
func EpochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
