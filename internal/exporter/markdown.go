package exporter

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/gandalf-mcp/gandalf/internal/conversations"
)

// renderMarkdown builds the md rendering: front matter, then one block
// per message.
func renderMarkdown(conv *conversations.Conversation) []byte {
	var b bytes.Buffer

	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: %s\n", conv.Title)
	fmt.Fprintf(&b, "source: %s\n", conv.Source)
	fmt.Fprintf(&b, "workspace_id: %s\n", conv.WorkspaceID)
	fmt.Fprintf(&b, "created_at: %s\n", formatInstant(conv.CreatedAt))
	fmt.Fprintf(&b, "updated_at: %s\n", formatInstant(conv.UpdatedAt))
	fmt.Fprintf(&b, "prompt_count: %d\n", conv.PromptCount)
	fmt.Fprintf(&b, "generation_count: %d\n", conv.GenerationCount)
	fmt.Fprintf(&b, "total_exchanges: %d\n", conv.TotalExchanges)
	b.WriteString("---\n\n")

	fmt.Fprintf(&b, "# %s\n\n", conv.Title)
	b.WriteString("## Messages\n\n")
	for _, m := range conv.Messages {
		fmt.Fprintf(&b, "**[%s]** %s\n\n", m.Role, m.Content)
	}
	return b.Bytes()
}

// stripMarkdown reduces the md rendering to plain text: front matter
// fences, heading markers, and emphasis removed, structure kept.
func stripMarkdown(md []byte) []byte {
	lines := strings.Split(string(md), "\n")
	var out []string
	for _, line := range lines {
		if line == "---" {
			continue
		}
		line = strings.TrimLeft(line, "#")
		line = strings.TrimPrefix(line, " ")
		line = strings.ReplaceAll(line, "**", "")
		out = append(out, line)
	}
	return []byte(strings.Join(out, "\n"))
}

func formatInstant(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
