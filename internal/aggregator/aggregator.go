// Package aggregator fans extraction out across the detected sources,
// merges and deduplicates the streams, applies the post-filters, and
// ranks the survivors. One Aggregate call serves both recall (activity
// ranking) and search (keyword relevance ranking).
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gandalf-mcp/gandalf/internal/conversations"
	"github.com/gandalf-mcp/gandalf/internal/sources"
)

// SourceError records one source's failure without failing the call.
type SourceError struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// ProcessingStats reports pipeline throughput and phase timings.
type ProcessingStats struct {
	TotalProcessed    int     `json:"total_processed"`
	Skipped           int     `json:"skipped"`
	EfficiencyPercent float64 `json:"efficiency_percent"`
	ExtractSeconds    float64 `json:"extract_seconds"`
	FilterSeconds     float64 `json:"filter_seconds"`
	RankSeconds       float64 `json:"rank_seconds"`
}

// Result is the aggregated output of one recall or search call.
type Result struct {
	Conversations []conversations.Conversation `json:"conversations"`
	Sources       []string                     `json:"sources"`
	SourceErrors  []SourceError                `json:"source_errors,omitempty"`
	Partial       bool                         `json:"partial,omitempty"`
	Stats         ProcessingStats              `json:"processing_stats"`
}

// Aggregator orchestrates parallel extraction over a source registry.
type Aggregator struct {
	registry *sources.Registry
	logger   *zap.Logger
}

// New builds an aggregator over the given registry.
func New(registry *sources.Registry, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{registry: registry, logger: logger.Named("aggregator")}
}

// Aggregate runs the full pipeline: detect, extract in parallel, dedup,
// filter, rank, truncate. A failing source lands in SourceErrors and
// the call continues; the call errors only when every source fails.
// Deadline expiry returns the best partial result flagged Partial.
func (a *Aggregator) Aggregate(ctx context.Context, f conversations.Filter) (*Result, error) {
	if f.Now == 0 {
		f.Now = time.Now().UnixMilli()
	}

	detected := a.registry.Detect(ctx)
	res := &Result{Conversations: []conversations.Conversation{}}
	if len(detected) == 0 {
		return res, nil
	}

	extractStart := time.Now()
	extracted, completed := a.extract(ctx, detected, f, res)
	res.Stats.ExtractSeconds = time.Since(extractStart).Seconds()
	res.Sources = completed

	if len(res.SourceErrors) == len(detected) && len(extracted) == 0 {
		return nil, fmt.Errorf("all %d sources failed: %s",
			len(detected), res.SourceErrors[0].Message)
	}

	filterStart := time.Now()
	res.Stats.TotalProcessed = len(extracted)
	kept := dedup(extracted)
	kept = a.postFilter(kept, f)
	res.Stats.Skipped = res.Stats.TotalProcessed - len(kept)
	res.Stats.EfficiencyPercent = efficiency(res.Stats.TotalProcessed, res.Stats.Skipped)
	res.Stats.FilterSeconds = time.Since(filterStart).Seconds()

	rankStart := time.Now()
	rank(kept, f)
	if f.Limit >= 0 && len(kept) > f.Limit {
		kept = kept[:f.Limit]
	}
	if f.Query != "" && !f.IncludeContent {
		for i := range kept {
			kept[i].Messages = nil
		}
	}
	res.Stats.RankSeconds = time.Since(rankStart).Seconds()

	res.Conversations = kept
	return res, nil
}

// ListWorkspaces merges workspace metadata from every detected source.
func (a *Aggregator) ListWorkspaces(ctx context.Context) ([]conversations.Workspace, error) {
	var all []conversations.Workspace
	for _, src := range a.registry.Detect(ctx) {
		ws, err := src.ListWorkspaces(ctx)
		if err != nil {
			a.logger.Warn("listing workspaces failed",
				zap.String("source", string(src.Name())), zap.Error(err))
			continue
		}
		all = append(all, ws...)
	}
	return all, nil
}

// extract fans out over the sources with a bounded worker pool. Each
// worker streams into its own slice; the merge happens after the group
// settles. Returns the extracted conversations and the names of the
// sources that completed.
func (a *Aggregator) extract(ctx context.Context, detected []sources.Source, f conversations.Filter, res *Result) ([]conversations.Conversation, []string) {
	perSource := make([][]conversations.Conversation, len(detected))

	var mu sync.Mutex
	var completed []string
	addError := func(name string, err error) {
		mu.Lock()
		res.SourceErrors = append(res.SourceErrors, SourceError{
			Source:  name,
			Message: err.Error(),
		})
		mu.Unlock()
	}

	g := &errgroup.Group{}
	g.SetLimit(workerLimit(len(detected)))
	for i, src := range detected {
		g.Go(func() error {
			name := string(src.Name())
			err := src.Extract(ctx, f, func(c conversations.Conversation) error {
				perSource[i] = append(perSource[i], c)
				return ctx.Err()
			})
			if err != nil {
				a.logger.Warn("source extraction failed",
					zap.String("source", name), zap.Error(err))
				addError(name, err)
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					mu.Lock()
					res.Partial = true
					mu.Unlock()
				}
				return nil
			}
			mu.Lock()
			completed = append(completed, name)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	var all []conversations.Conversation
	for _, batch := range perSource {
		all = append(all, batch...)
	}
	sort.Strings(completed)
	return all, completed
}

// workerLimit bounds the extraction pool.
func workerLimit(numSources int) int {
	limit := numSources + 2
	if cpus := runtime.NumCPU(); cpus < limit {
		limit = cpus
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// dedup removes exact (source,id) duplicates, then collapses the same
// logical conversation seen through two sources: keep the copy with
// more messages, ties keep the earlier source in the fixed order.
func dedup(convs []conversations.Conversation) []conversations.Conversation {
	seen := make(map[conversations.Key]struct{}, len(convs))
	byID := make(map[string]int, len(convs))
	out := convs[:0:0]

	for _, c := range convs {
		key := c.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		prev, exists := byID[c.ID]
		if !exists {
			byID[c.ID] = len(out)
			out = append(out, c)
			continue
		}
		if betterCopy(c, out[prev]) {
			out[prev] = c
		}
	}
	return out
}

// betterCopy reports whether candidate should replace current when both
// carry the same conversation id.
func betterCopy(candidate, current conversations.Conversation) bool {
	if len(candidate.Messages) != len(current.Messages) {
		return len(candidate.Messages) > len(current.Messages)
	}
	if candidate.TotalExchanges != current.TotalExchanges {
		return candidate.TotalExchanges > current.TotalExchanges
	}
	return candidate.Source.Less(current.Source)
}

// postFilter applies the lookback, type, and keyword filters in order.
func (a *Aggregator) postFilter(convs []conversations.Conversation, f conversations.Filter) []conversations.Conversation {
	cutoff := f.Cutoff()
	typeSet := make(map[string]struct{}, len(f.Types))
	for _, t := range f.Types {
		typeSet[t] = struct{}{}
	}

	out := convs[:0]
	for _, c := range convs {
		if cutoff > 0 && c.UpdatedAt < cutoff {
			continue
		}
		if len(typeSet) > 0 && !f.FastMode {
			if _, ok := typeSet[conversations.Classify(&c)]; !ok {
				continue
			}
		}
		if f.Query != "" {
			score, snippet := Relevance(&c, f)
			if score <= 0 {
				continue
			}
			c.RelevanceScore = score
			c.Snippet = snippet
		}
		c.ActivityScore = conversations.ActivityScore(c.UpdatedAt, f.Now, c.TotalExchanges)
		out = append(out, c)
	}
	return out
}

// rank orders by relevance for search and activity for recall, with a
// deterministic (source, id) tie-break.
func rank(convs []conversations.Conversation, f conversations.Filter) {
	sort.SliceStable(convs, func(i, j int) bool {
		a, b := &convs[i], &convs[j]
		if f.Query != "" && a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		if a.ActivityScore != b.ActivityScore {
			return a.ActivityScore > b.ActivityScore
		}
		if a.Source != b.Source {
			return a.Source.Less(b.Source)
		}
		return a.ID < b.ID
	})
}

func efficiency(total, skipped int) float64 {
	if total < 1 {
		total = 1
	}
	return 100.0 * float64(total-skipped) / float64(total)
}
