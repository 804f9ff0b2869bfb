package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/gandalf-mcp/gandalf/internal/aggregator"
	"github.com/gandalf-mcp/gandalf/internal/cache"
	"github.com/gandalf-mcp/gandalf/internal/conversations"
	"github.com/gandalf-mcp/gandalf/internal/exporter"
	"github.com/gandalf-mcp/gandalf/internal/project"
	"github.com/gandalf-mcp/gandalf/internal/scorer"
)

// Per-tool deadlines. Comprehensive recall walks message payloads and
// exports write files, so both get more room than the default.
const (
	defaultDeadline = 30 * time.Second
	recallDeadline  = 120 * time.Second
	exportDeadline  = 600 * time.Second
)

// Argument ranges from the tool contract.
const (
	maxQueryLen      = 10_000
	maxLimit         = 1000
	maxDaysLookback  = 365
	recentFilesShown = 10
)

// toolNames is the registry of every exposed tool.
var toolNames = []string{
	"get_project_info",
	"list_project_files",
	"recall_conversations",
	"search_conversations",
	"export_individual_conversations",
	"get_server_version",
}

// ToolNames returns the registered tool names.
func ToolNames() []string {
	return append([]string(nil), toolNames...)
}

// ValidateToolName rejects names outside the registry.
func ValidateToolName(name string) error {
	for _, t := range toolNames {
		if t == name {
			return nil
		}
	}
	return UnknownTool(name)
}

// inputSchema infers the JSON schema for an input type and relaxes the
// struct default of rejecting additional properties: unknown option
// keys from newer clients must reach the handler and be ignored there,
// not bounce at the protocol layer.
func inputSchema[In any](toolName string) *jsonschema.Schema {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		panic(fmt.Sprintf("inferring input schema for %s: %v", toolName, err))
	}
	schema.AdditionalProperties = nil
	return schema
}

// register wires one typed handler with the shared instrumentation:
// session capture for the notification bridge, active gauge, duration
// metric, per-tool deadline, panic recovery, and start/finish logging.
func register[In, Out any](s *Server, tool *mcp.Tool, deadline time.Duration, fn func(context.Context, In) (Out, error)) {
	// The tool table is the single registry; a name missing from it is
	// a wiring mistake caught at construction.
	if err := ValidateToolName(tool.Name); err != nil {
		panic(err.Error())
	}
	tool.InputSchema = inputSchema[In](tool.Name)
	mcp.AddTool(s.mcp, tool, func(ctx context.Context, req *mcp.CallToolRequest, args In) (result *mcp.CallToolResult, out Out, err error) {
		s.notifier.Attach(req.Session)
		start := time.Now()
		s.metrics.IncrementActive(ctx, tool.Name)
		defer func() {
			if r := recover(); r != nil {
				err = Internal(tool.Name, fmt.Errorf("panic: %v", r))
				result = nil
				s.logger.Error("tool handler panicked",
					zap.String("tool", tool.Name),
					zap.Any("panic", r),
					zap.Stack("stack"))
			}
			s.metrics.DecrementActive(ctx, tool.Name)
			s.metrics.RecordInvocation(ctx, tool.Name, time.Since(start), err)
			if err != nil {
				s.logger.Warn("tool call failed",
					zap.String("tool", tool.Name),
					zap.String("kind", string(KindOf(err))),
					zap.Duration("duration", time.Since(start)),
					zap.Error(err))
			} else {
				s.logger.Info("tool call finished",
					zap.String("tool", tool.Name),
					zap.Duration("duration", time.Since(start)))
			}
		}()

		s.logger.Debug("tool call started", zap.String("tool", tool.Name))
		ctx, cancel := context.WithTimeout(ctx, deadline)
		defer cancel()

		out, err = fn(ctx, args)
		if err != nil {
			return nil, out, err
		}

		payload, merr := json.MarshalIndent(out, "", "  ")
		if merr != nil {
			err = Internal(tool.Name, merr)
			return nil, out, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: string(payload)},
			},
		}, out, nil
	})
}

func (s *Server) registerTools() {
	register(s, &mcp.Tool{
		Name:        "get_project_info",
		Description: "Resolve the current project: name, git metadata, and file statistics",
	}, defaultDeadline, s.handleProjectInfo)

	register(s, &mcp.Tool{
		Name:        "list_project_files",
		Description: "List project files honoring ignore rules, optionally ranked by relevance",
	}, defaultDeadline, s.handleListFiles)

	register(s, &mcp.Tool{
		Name:        "recall_conversations",
		Description: "Aggregate recent conversations across detected agentic tools",
	}, recallDeadline, s.handleRecall)

	register(s, &mcp.Tool{
		Name:        "search_conversations",
		Description: "Search conversation history by keyword across detected agentic tools",
	}, recallDeadline, s.handleSearch)

	register(s, &mcp.Tool{
		Name:        "export_individual_conversations",
		Description: "Write recent conversations to per-conversation files on disk",
	}, exportDeadline, s.handleExport)

	register(s, &mcp.Tool{
		Name:        "get_server_version",
		Description: "Report the server version and MCP protocol revision",
	}, defaultDeadline, s.handleVersion)
}

// ===== PROJECT TOOLS =====

type projectInfoInput struct {
	IncludeStats *bool `json:"include_stats,omitempty" jsonschema:"Include aggregate file statistics (default: true)"`
}

type projectInfoOutput struct {
	project.Context
	FileStats *project.Stats `json:"file_stats,omitempty"`
}

func (s *Server) handleProjectInfo(ctx context.Context, args projectInfoInput) (projectInfoOutput, error) {
	includeStats := args.IncludeStats == nil || *args.IncludeStats

	pctx := project.Describe(s.cfg.ProjectRoot)
	project.CollectGit(ctx, &pctx, project.GitOptions{Timeout: s.cfg.GitTimeout}, s.logger)

	out := projectInfoOutput{}
	if includeStats {
		entries, err := project.Enumerate(ctx, s.cfg.ProjectRoot, project.EnumerateOptions{})
		if err != nil {
			return out, Errorf(KindIO, "get_project_info", "enumerating project files: %v", err)
		}
		stats := project.Summarize(entries)
		out.FileStats = &stats
		pctx.RecentlyModified = project.RecentlyModified(entries, recentFilesShown)
	}
	out.Context = pctx
	return out, nil
}

type listFilesInput struct {
	MaxFiles            *int     `json:"max_files,omitempty" jsonschema:"Maximum files to return (default: 1000)"`
	FileTypes           []string `json:"file_types,omitempty" jsonschema:"Extension filter; case-insensitive, leading dot optional"`
	UseRelevanceScoring *bool    `json:"use_relevance_scoring,omitempty" jsonschema:"Rank files by relevance score (default: true)"`
	IncludeHidden       bool     `json:"include_hidden,omitempty" jsonschema:"Include hidden files and dot-directories"`
}

type listFilesOutput struct {
	Files      []project.FileEntry               `json:"files"`
	TotalFiles int                               `json:"total_files"`
	Truncated  bool                              `json:"truncated,omitempty"`
	Tiers      map[project.PriorityTier][]string `json:"tiers,omitempty"`
}

func (s *Server) handleListFiles(ctx context.Context, args listFilesInput) (listFilesOutput, error) {
	maxFiles := s.cfg.MaxFiles
	if args.MaxFiles != nil {
		if *args.MaxFiles < 0 {
			return listFilesOutput{}, InvalidArgument("list_project_files", "max_files must be >= 0, got %d", *args.MaxFiles)
		}
		maxFiles = *args.MaxFiles
	}
	useScoring := args.UseRelevanceScoring == nil || *args.UseRelevanceScoring

	entries, err := project.Enumerate(ctx, s.cfg.ProjectRoot, project.EnumerateOptions{
		IncludeHidden: args.IncludeHidden,
		FileTypes:     args.FileTypes,
	})
	if err != nil {
		return listFilesOutput{}, Errorf(KindIO, "list_project_files", "enumerating project files: %v", err)
	}

	out := listFilesOutput{TotalFiles: len(entries)}
	if useScoring {
		pctx := project.Describe(s.cfg.ProjectRoot)
		project.CollectGit(ctx, &pctx, project.GitOptions{Timeout: s.cfg.GitTimeout}, s.logger)
		scorer.New(s.cfg.Weights(), time.Time{}).Rank(entries, pctx.RecentCommitFiles)
	} else {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].RelativePath < entries[j].RelativePath
		})
	}

	// Truncation happens after ranking, never before.
	if len(entries) > maxFiles {
		entries = entries[:maxFiles]
		out.Truncated = true
	}
	out.Files = entries

	if useScoring {
		tiers := make(map[project.PriorityTier][]string)
		for _, e := range entries {
			tiers[e.Tier] = append(tiers[e.Tier], e.RelativePath)
		}
		out.Tiers = tiers
	}
	return out, nil
}

// ===== CONVERSATION TOOLS =====

type recallInput struct {
	FastMode          *bool    `json:"fast_mode,omitempty" jsonschema:"Headers and counts only, no message payloads (default: true)"`
	DaysLookback      *int     `json:"days_lookback,omitempty" jsonschema:"Lookback window in days, 1-365 (default: 7)"`
	Limit             *int     `json:"limit,omitempty" jsonschema:"Maximum conversations to return, 0-1000 (default: 20)"`
	ConversationTypes []string `json:"conversation_types,omitempty" jsonschema:"Restrict to classifier labels; comprehensive mode only"`
}

func (s *Server) handleRecall(ctx context.Context, args recallInput) (aggregator.Result, error) {
	fastMode := args.FastMode == nil || *args.FastMode
	days, err := boundedInt(args.DaysLookback, 7, 1, maxDaysLookback, "recall_conversations", "days_lookback")
	if err != nil {
		return aggregator.Result{}, err
	}
	limit, err := boundedInt(args.Limit, 20, 0, maxLimit, "recall_conversations", "limit")
	if err != nil {
		return aggregator.Result{}, err
	}
	if err := validateTypes(args.ConversationTypes, "recall_conversations"); err != nil {
		return aggregator.Result{}, err
	}

	f := conversations.Filter{
		FastMode:     fastMode,
		DaysLookback: days,
		Limit:        limit,
		Now:          time.Now().UnixMilli(),
	}
	if !fastMode {
		f.Types = args.ConversationTypes
	} else {
		// Only comprehensive recall gets the extended deadline.
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultDeadline)
		defer cancel()
	}

	raw, hit, err := s.cache.GetOrBuild(ctx, s.cacheKey(ctx, f), func(ctx context.Context) (any, error) {
		return s.aggregator.Aggregate(ctx, f)
	})
	if err != nil {
		return aggregator.Result{}, wrapAggregateErr("recall_conversations", err)
	}
	// Cache hits are visible in logs and metrics only: the payload must
	// be indistinguishable from the build result.
	s.logger.Debug("recall aggregation served", zap.Bool("cache_hit", hit))

	var out aggregator.Result
	if err := json.Unmarshal(raw, &out); err != nil {
		return aggregator.Result{}, Internal("recall_conversations", err)
	}
	return out, nil
}

type searchInput struct {
	Query          string `json:"query" jsonschema:"required,Keyword query, 1-10000 characters"`
	Limit          *int   `json:"limit,omitempty" jsonschema:"Maximum conversations to return, 0-1000 (default: 10)"`
	DaysLookback   *int   `json:"days_lookback,omitempty" jsonschema:"Lookback window in days, 1-365 (default: 30)"`
	IncludeContent bool   `json:"include_content,omitempty" jsonschema:"Return matched message payloads alongside snippets"`
}

func (s *Server) handleSearch(ctx context.Context, args searchInput) (aggregator.Result, error) {
	if len(args.Query) == 0 || len(args.Query) > maxQueryLen {
		return aggregator.Result{}, InvalidArgument("search_conversations",
			"query must be 1-%d characters, got %d", maxQueryLen, len(args.Query))
	}
	limit, err := boundedInt(args.Limit, 10, 0, maxLimit, "search_conversations", "limit")
	if err != nil {
		return aggregator.Result{}, err
	}
	days, err := boundedInt(args.DaysLookback, 30, 1, maxDaysLookback, "search_conversations", "days_lookback")
	if err != nil {
		return aggregator.Result{}, err
	}

	res, err := s.aggregator.Aggregate(ctx, conversations.Filter{
		DaysLookback:   days,
		Limit:          limit,
		Query:          args.Query,
		IncludeContent: args.IncludeContent,
		Now:            time.Now().UnixMilli(),
	})
	if err != nil {
		return aggregator.Result{}, wrapAggregateErr("search_conversations", err)
	}
	return *res, nil
}

type exportInput struct {
	Limit             *int     `json:"limit,omitempty" jsonschema:"Maximum conversations to export, 0-1000 (default: 20)"`
	Format            string   `json:"format,omitempty" jsonschema:"Export format: json, md, or txt (default: json)"`
	OutputDir         string   `json:"output_dir,omitempty" jsonschema:"Target directory (default: the gandalf exports directory)"`
	ConversationTypes []string `json:"conversation_types,omitempty" jsonschema:"Restrict to classifier labels"`
}

type exportOutput struct {
	Files     []string `json:"files"`
	Count     int      `json:"count"`
	Format    string   `json:"format"`
	OutputDir string   `json:"output_dir"`
}

func (s *Server) handleExport(ctx context.Context, args exportInput) (exportOutput, error) {
	limit, err := boundedInt(args.Limit, 20, 0, maxLimit, "export_individual_conversations", "limit")
	if err != nil {
		return exportOutput{}, err
	}
	format, perr := exporter.ParseFormat(args.Format)
	if perr != nil {
		return exportOutput{}, InvalidArgument("export_individual_conversations", "%v", perr)
	}
	if err := validateTypes(args.ConversationTypes, "export_individual_conversations"); err != nil {
		return exportOutput{}, err
	}
	outputDir := args.OutputDir
	if outputDir == "" {
		outputDir = s.cfg.ExportsDir
	}
	if outputDir == "" {
		return exportOutput{}, InvalidArgument("export_individual_conversations", "output_dir is required")
	}

	res, err := s.aggregator.Aggregate(ctx, conversations.Filter{
		Limit: limit,
		Types: args.ConversationTypes,
		Now:   time.Now().UnixMilli(),
	})
	if err != nil {
		return exportOutput{}, wrapAggregateErr("export_individual_conversations", err)
	}

	paths, err := s.exporter.Export(ctx, res.Conversations, outputDir, format)
	if err != nil {
		return exportOutput{}, Errorf(KindIO, "export_individual_conversations", "%v", err)
	}
	return exportOutput{
		Files:     paths,
		Count:     len(paths),
		Format:    string(format),
		OutputDir: outputDir,
	}, nil
}

// ===== VERSION TOOL =====

type versionInput struct{}

type versionOutput struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	ProtocolVersion string `json:"protocol_version"`
}

func (s *Server) handleVersion(ctx context.Context, args versionInput) (versionOutput, error) {
	return versionOutput{
		Name:            s.cfg.Name,
		Version:         s.cfg.Version,
		ProtocolVersion: ProtocolVersion,
	}, nil
}

// ===== SHARED HELPERS =====

// cacheKey fingerprints the detected sources and their stores together
// with the filter and project root.
func (s *Server) cacheKey(ctx context.Context, f conversations.Filter) string {
	detected := s.registry.Detect(ctx)
	names := make([]string, 0, len(detected))
	var stores []string
	for _, src := range detected {
		names = append(names, string(src.Name()))
		stores = append(stores, src.Stores(ctx)...)
	}
	return cache.Fingerprint(names, f, s.cfg.ProjectRoot, cache.StatStores(stores))
}

// boundedInt applies a default and an inclusive range to an optional
// numeric argument.
func boundedInt(v *int, def, min, max int, tool, field string) (int, error) {
	if v == nil {
		return def, nil
	}
	if *v < min || *v > max {
		return 0, InvalidArgument(tool, "%s must be %d-%d, got %d", field, min, max, *v)
	}
	return *v, nil
}

// validateTypes rejects labels the classifier never produces.
func validateTypes(types []string, tool string) error {
	for _, t := range types {
		if !conversations.ValidType(t) {
			return InvalidArgument(tool, "unknown conversation type %q", t)
		}
	}
	return nil
}

// wrapAggregateErr maps an aggregation failure into the taxonomy: a
// deadline is a timeout, everything else means no source could serve.
func wrapAggregateErr(tool string, err error) error {
	var te *ToolError
	if errors.As(err, &te) {
		return err
	}
	if KindOf(err) == KindTimeout {
		return Errorf(KindTimeout, tool, "%v", err)
	}
	return Errorf(KindSourceUnavailable, tool, "%v", err)
}
