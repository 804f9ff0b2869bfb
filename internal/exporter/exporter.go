// Package exporter serializes conversations to per-conversation files
// on disk. Filenames derive from the sanitized title plus a short
// content-independent id; collisions append a numeric suffix, never
// overwriting.
package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/gandalf-mcp/gandalf/internal/conversations"
	"github.com/gandalf-mcp/gandalf/internal/redact"
	"github.com/gandalf-mcp/gandalf/internal/sanitize"
)

// Format selects the serialization.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
)

// maxCollisionSuffix bounds the -N collision probe.
const maxCollisionSuffix = 1000

// ParseFormat validates a format string.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatMarkdown, FormatText:
		return Format(s), nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Exporter writes conversations to disk, masking detected secrets
// unless built with a disabled redactor.
type Exporter struct {
	redactor *redact.Redactor
	logger   *zap.Logger
}

// New builds an exporter. A nil redactor disables masking.
func New(redactor *redact.Redactor, logger *zap.Logger) *Exporter {
	if redactor == nil {
		redactor = redact.NewDisabled()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{redactor: redactor, logger: logger.Named("exporter")}
}

// Export writes one file per conversation under dir and returns the
// written paths in input order.
func (e *Exporter) Export(ctx context.Context, convs []conversations.Conversation, dir string, format Format) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	paths := make([]string, 0, len(convs))
	for i := range convs {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		conv := e.redactConversation(convs[i])

		content, err := render(&conv, format)
		if err != nil {
			return paths, fmt.Errorf("rendering %s/%s: %w", conv.Source, conv.ID, err)
		}
		path, err := e.writeFile(dir, &conv, format, content)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// redactConversation masks secrets in a copy of the conversation.
func (e *Exporter) redactConversation(conv conversations.Conversation) conversations.Conversation {
	if !e.redactor.Enabled() {
		return conv
	}
	var findings int
	conv.Title, _ = e.redactor.Apply(conv.Title)
	msgs := make([]conversations.Message, len(conv.Messages))
	for i, m := range conv.Messages {
		masked, found := e.redactor.Apply(m.Content)
		m.Content = masked
		findings += len(found)
		msgs[i] = m
	}
	conv.Messages = msgs
	if findings > 0 {
		e.logger.Info("masked secrets in exported conversation",
			zap.String("source", string(conv.Source)),
			zap.String("id", conv.ID),
			zap.Int("findings", findings))
	}
	return conv
}

// writeFile creates the target with O_EXCL, probing -N suffixes on
// collision.
func (e *Exporter) writeFile(dir string, conv *conversations.Conversation, format Format, content []byte) (string, error) {
	stem := sanitize.FileStem(conv.Title)
	id := sanitize.ShortID(string(conv.Source), conv.ID)

	for n := 0; n <= maxCollisionSuffix; n++ {
		name := fmt.Sprintf("%s-%s.%s", stem, id, format)
		if n > 0 {
			name = fmt.Sprintf("%s-%s-%d.%s", stem, id, n, format)
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("creating %s: %w", path, err)
		}
		if _, err := f.Write(content); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("writing %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("closing %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free filename for %s-%s after %d attempts", stem, id, maxCollisionSuffix)
}

// render serializes one conversation in the requested format.
func render(conv *conversations.Conversation, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(conv, "", "  ")
	case FormatMarkdown:
		return renderMarkdown(conv), nil
	case FormatText:
		return stripMarkdown(renderMarkdown(conv)), nil
	}
	return nil, fmt.Errorf("unknown export format %q", format)
}
