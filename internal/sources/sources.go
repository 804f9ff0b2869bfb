// Package sources defines the capability set every conversation source
// implements and the registry that discovers which sources have data on
// this host. Adapters live in subpackages; all of them open their
// stores read-only.
package sources

import (
	"context"

	"go.uber.org/zap"

	"github.com/gandalf-mcp/gandalf/internal/conversations"
)

// Emit receives one extracted conversation. Returning an error stops
// the extraction early; adapters must propagate it unchanged. The
// alias keeps plain callback literals assignable to the interface.
type Emit = func(conversations.Conversation) error

// Source is the capability set shared by every adapter.
type Source interface {
	// Name returns the canonical source identifier.
	Name() conversations.Source

	// Detect reports whether this source has any data on this host.
	Detect(ctx context.Context) bool

	// ListWorkspaces enumerates discoverable workspaces with totals.
	ListWorkspaces(ctx context.Context) ([]conversations.Workspace, error)

	// Extract streams normalized conversations matching the filter.
	// The sequence is lazy, finite, and non-restartable.
	Extract(ctx context.Context, f conversations.Filter, emit Emit) error

	// Stores returns the on-disk store paths backing this source, for
	// cache fingerprinting. Missing stores are simply absent.
	Stores(ctx context.Context) []string
}

// Registry holds the enumerated sources in a fixed order.
type Registry struct {
	sources  []Source
	fallback conversations.Source
	logger   *zap.Logger
}

// NewRegistry builds a registry over the given sources. fallback names
// the source preferred when detection finds nothing (the
// GANDALF_FALLBACK_TOOL contract); empty means no fallback.
func NewRegistry(srcs []Source, fallback conversations.Source, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{sources: srcs, fallback: fallback, logger: logger}
}

// All returns every registered source in registration order.
func (r *Registry) All() []Source {
	return r.sources
}

// Detect returns the sources that report data on this host. When none
// detect and a fallback is configured, the fallback source is returned
// alone so aggregation still has somewhere to look.
func (r *Registry) Detect(ctx context.Context) []Source {
	var detected []Source
	for _, s := range r.sources {
		if s.Detect(ctx) {
			detected = append(detected, s)
		}
	}
	if len(detected) > 0 {
		return detected
	}
	if r.fallback != "" {
		for _, s := range r.sources {
			if s.Name() == r.fallback {
				r.logger.Debug("no sources detected, using fallback",
					zap.String("source", string(r.fallback)))
				return []Source{s}
			}
		}
	}
	return nil
}

// Lookup finds a registered source by name.
func (r *Registry) Lookup(name conversations.Source) (Source, bool) {
	for _, s := range r.sources {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}
