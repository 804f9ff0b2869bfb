package mcp

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a tool-level failure for callers and metrics.
type Kind string

const (
	KindInvalidArgument   Kind = "invalid_argument"
	KindUnknownTool       Kind = "unknown_tool"
	KindSourceUnavailable Kind = "source_unavailable"
	KindSourceCorrupt     Kind = "source_corrupt"
	KindTimeout           Kind = "timeout"
	KindIO                Kind = "io"
	KindInternal          Kind = "internal"
)

// ToolError is the structured failure surfaced to MCP clients: the
// kind, a short message, and where safe the failing tool or source.
type ToolError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Subject string `json:"subject,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Subject, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Errorf builds a ToolError with a formatted message.
func Errorf(kind Kind, subject, format string, args ...any) *ToolError {
	return &ToolError{Kind: kind, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// InvalidArgument flags a malformed or out-of-range tool input.
func InvalidArgument(subject, format string, args ...any) *ToolError {
	return Errorf(KindInvalidArgument, subject, format, args...)
}

// UnknownTool flags a tool name outside the registry.
func UnknownTool(name string) *ToolError {
	return Errorf(KindUnknownTool, name, "tool %q is not registered", name)
}

// Internal wraps an assertion or unreachable-state failure.
func Internal(subject string, err error) *ToolError {
	return Errorf(KindInternal, subject, "%v", err)
}

// KindOf classifies any error into the taxonomy. ToolErrors keep their
// kind; context expiry maps to timeout; everything else is internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var te *ToolError
	if errors.As(err, &te) {
		return te.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindInternal
}
