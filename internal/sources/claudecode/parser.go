package claudecode

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gandalf-mcp/gandalf/internal/conversations"
)

// Scanner buffer sizing: sessions can carry multi-megabyte tool output
// on a single line.
const (
	initialScanBuffer = 1 << 20  // 1 MiB
	maxScanBuffer     = 10 << 20 // 10 MiB
)

// jsonlLine is the raw shape of one Claude Code session line.
type jsonlLine struct {
	UUID      string          `json:"uuid"`
	Type      string          `json:"type"`
	Message   json.RawMessage `json:"message,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// nestedMessage is the message envelope inside a line.
type nestedMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// contentBlock is one element of a structured content array.
type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// parseResult carries everything parseFile learns about one session.
type parseResult struct {
	title          string
	firstTimestamp int64
	lastTimestamp  int64
	prompts        int
	generations    int
	messages       []conversations.Message
	errorCount     int
}

// parseFile scans a session file once. In fast mode only headers and
// counts are collected; messages stay empty. Malformed lines are
// counted and skipped rather than failing the file.
func parseFile(path string, fastMode bool) (*parseResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening session file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, initialScanBuffer), maxScanBuffer)

	result := &parseResult{}
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var jl jsonlLine
		if err := json.Unmarshal(line, &jl); err != nil {
			result.errorCount++
			continue
		}
		if jl.Type != "user" && jl.Type != "assistant" {
			continue
		}

		ts := parseTimestamp(jl.Timestamp)
		if ts > 0 {
			if result.firstTimestamp == 0 || ts < result.firstTimestamp {
				result.firstTimestamp = ts
			}
			if ts > result.lastTimestamp {
				result.lastTimestamp = ts
			}
		}

		content, toolNames := extractContent(jl.Message)
		if content == "" && len(toolNames) == 0 {
			continue
		}

		role := conversations.RoleUser
		if jl.Type == "assistant" {
			role = conversations.RoleAssistant
			result.generations++
		} else {
			result.prompts++
		}

		if role == conversations.RoleUser && result.title == "" && content != "" {
			result.title = synthesizeTitle(content)
		}

		if fastMode {
			continue
		}
		msg := conversations.Message{
			Role:      role,
			Content:   content,
			Timestamp: ts,
		}
		if len(toolNames) > 0 {
			msg.Metadata = map[string]any{"tools": toolNames}
		}
		result.messages = append(result.messages, msg)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning session file: %w", err)
	}
	return result, nil
}

// extractContent flattens a message envelope into text plus the names
// of any tools invoked. Content may be a plain string or an array of
// typed blocks.
func extractContent(raw json.RawMessage) (string, []string) {
	if len(raw) == 0 {
		return "", nil
	}

	var nested nestedMessage
	if err := json.Unmarshal(raw, &nested); err != nil {
		// Some lines carry the content directly, without the envelope.
		var direct string
		if err := json.Unmarshal(raw, &direct); err == nil {
			return direct, nil
		}
		return "", nil
	}

	var direct string
	if err := json.Unmarshal(nested.Content, &direct); err == nil {
		return direct, nil
	}

	var blocks []contentBlock
	if err := json.Unmarshal(nested.Content, &blocks); err != nil {
		return "", nil
	}

	var parts []string
	var toolNames []string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		case "tool_use":
			if b.Name != "" {
				toolNames = append(toolNames, b.Name)
			}
		}
	}
	return strings.Join(parts, "\n"), toolNames
}

// synthesizeTitle derives a title from the first user message: first
// line only, truncated without splitting a rune.
func synthesizeTitle(content string) string {
	line := content
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if len(line) <= maxTitleLen {
		return line
	}
	cut := maxTitleLen
	for cut > 0 && line[cut-1] >= 0x80 {
		cut--
	}
	return strings.TrimSpace(line[:cut]) + "..."
}

// parseTimestamp accepts RFC3339 with or without sub-second precision.
// Unparseable timestamps yield zero rather than a guess.
func parseTimestamp(raw string) int64 {
	if raw == "" {
		return 0
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

// lineCounts is the header-only scan result for workspace totals.
type lineCounts struct {
	prompts     int
	generations int
}

// scanCounts counts user and assistant lines without extracting
// content.
func scanCounts(path string) (*lineCounts, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, initialScanBuffer), maxScanBuffer)

	counts := &lineCounts{}
	for scanner.Scan() {
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &probe); err != nil {
			continue
		}
		switch probe.Type {
		case "user":
			counts.prompts++
		case "assistant":
			counts.generations++
		}
	}
	return counts, scanner.Err()
}
