package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gandalf-mcp/gandalf/internal/aggregator"
	"github.com/gandalf-mcp/gandalf/internal/cache"
	"github.com/gandalf-mcp/gandalf/internal/conversations"
	"github.com/gandalf-mcp/gandalf/internal/exporter"
	"github.com/gandalf-mcp/gandalf/internal/sources"
)

type stubSource struct {
	name     conversations.Source
	detected bool
	convs    []conversations.Conversation
	stores   []string
	err      error
}

func (s *stubSource) Name() conversations.Source { return s.name }

func (s *stubSource) Detect(ctx context.Context) bool { return s.detected }

func (s *stubSource) ListWorkspaces(ctx context.Context) ([]conversations.Workspace, error) {
	return nil, nil
}

func (s *stubSource) Extract(ctx context.Context, f conversations.Filter, emit sources.Emit) error {
	if s.err != nil {
		return s.err
	}
	for _, c := range s.convs {
		if f.FastMode {
			c.Messages = nil
		}
		if err := emit(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubSource) Stores(ctx context.Context) []string { return s.stores }

// newTestServer wires a real aggregator, cache, and exporter over a
// temporary project directory with the given stub sources.
func newTestServer(t *testing.T, srcs ...sources.Source) (*Server, string) {
	t.Helper()
	root := t.TempDir()

	registry := sources.NewRegistry(srcs, "", zap.NewNop())
	agg := aggregator.New(registry, zap.NewNop())
	store := cache.New(filepath.Join(root, ".cache"), time.Hour, zap.NewNop())
	exp := exporter.New(nil, zap.NewNop())

	s, err := NewServer(&Config{
		Name:        "gandalf",
		Version:     "1.2.3",
		ProjectRoot: root,
		ExportsDir:  filepath.Join(root, "exports"),
	}, registry, agg, store, exp)
	require.NoError(t, err)
	return s, root
}

func stubConv(id string, updatedAt int64, exchanges int, msgs ...string) conversations.Conversation {
	c := conversations.Conversation{
		ID:             id,
		Source:         conversations.SourceCursor,
		WorkspaceID:    "ws1",
		Title:          "conversation " + id,
		CreatedAt:      updatedAt - 60_000,
		UpdatedAt:      updatedAt,
		TotalExchanges: exchanges,
	}
	for i, m := range msgs {
		role := conversations.RoleUser
		if i%2 == 1 {
			role = conversations.RoleAssistant
		}
		c.Messages = append(c.Messages, conversations.Message{
			Role:      role,
			Content:   m,
			Timestamp: updatedAt,
		})
	}
	return c
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestNewServerValidation(t *testing.T) {
	registry := sources.NewRegistry(nil, "", zap.NewNop())
	agg := aggregator.New(registry, zap.NewNop())
	store := cache.New(t.TempDir(), time.Hour, zap.NewNop())
	exp := exporter.New(nil, zap.NewNop())

	_, err := NewServer(&Config{}, registry, agg, store, exp)
	assert.ErrorContains(t, err, "project root")

	_, err = NewServer(&Config{ProjectRoot: t.TempDir()}, nil, agg, store, exp)
	assert.ErrorContains(t, err, "registry")

	_, err = NewServer(&Config{ProjectRoot: t.TempDir()}, registry, nil, store, exp)
	assert.ErrorContains(t, err, "aggregator")
}

func TestHandleVersion(t *testing.T) {
	s, _ := newTestServer(t)
	out, err := s.handleVersion(context.Background(), versionInput{})
	require.NoError(t, err)
	assert.Equal(t, "gandalf", out.Name)
	assert.Equal(t, "1.2.3", out.Version)
	assert.Equal(t, ProtocolVersion, out.ProtocolVersion)
}

// Unknown option keys must be ignored, not rejected at the protocol
// layer, so newer clients can send options this version predates.
func TestToolCallIgnoresUnknownOptionKeys(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.mcp.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.0"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer clientSession.Close()

	res, err := clientSession.CallTool(ctx, &mcp.CallToolParams{
		Name:      "get_server_version",
		Arguments: map[string]any{"include_stats": true, "future_option": 42},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
}

func TestHandleProjectInfo(t *testing.T) {
	s, root := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# readme\n"), 0o644))

	out, err := s.handleProjectInfo(context.Background(), projectInfoInput{})
	require.NoError(t, err)
	assert.Equal(t, root, out.RootPath)
	assert.NotEmpty(t, out.ProjectName)
	assert.False(t, out.IsGitRepo)
	require.NotNil(t, out.FileStats)
	assert.Equal(t, 2, out.FileStats.TotalFiles)
	assert.NotEmpty(t, out.RecentlyModified)
}

func TestHandleProjectInfoWithoutStats(t *testing.T) {
	s, root := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0o644))

	out, err := s.handleProjectInfo(context.Background(), projectInfoInput{IncludeStats: boolPtr(false)})
	require.NoError(t, err)
	assert.Nil(t, out.FileStats)
}

func TestHandleListFiles(t *testing.T) {
	s, root := newTestServer(t)
	for _, name := range []string{"alpha.go", "beta.py", "gamma.go"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644))
	}

	out, err := s.handleListFiles(context.Background(), listFilesInput{})
	require.NoError(t, err)
	assert.Equal(t, 3, out.TotalFiles)
	assert.Len(t, out.Files, 3)
	assert.False(t, out.Truncated)
	assert.NotEmpty(t, out.Tiers)
	for _, f := range out.Files {
		assert.NotEmpty(t, f.Tier)
	}
}

func TestHandleListFilesTypeFilterAndTruncation(t *testing.T) {
	s, root := newTestServer(t)
	for _, name := range []string{"a.go", "b.go", "c.go", "d.py"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644))
	}

	out, err := s.handleListFiles(context.Background(), listFilesInput{
		MaxFiles:            intPtr(2),
		FileTypes:           []string{"go"},
		UseRelevanceScoring: boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, out.TotalFiles)
	assert.Len(t, out.Files, 2)
	assert.True(t, out.Truncated)
	assert.Nil(t, out.Tiers)
	// Unscored listings come back path-sorted.
	assert.Equal(t, "a.go", out.Files[0].RelativePath)
	assert.Equal(t, "b.go", out.Files[1].RelativePath)
}

func TestHandleListFilesRejectsNegativeMax(t *testing.T) {
	s, _ := newTestServer(t)
	_, err := s.handleListFiles(context.Background(), listFilesInput{MaxFiles: intPtr(-1)})
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindInvalidArgument, te.Kind)
}

func TestHandleRecallFastMode(t *testing.T) {
	now := time.Now().UnixMilli()
	day := int64(24 * time.Hour / time.Millisecond)
	src := &stubSource{
		name:     conversations.SourceCursor,
		detected: true,
		convs: []conversations.Conversation{
			stubConv("fresh", now-1*day, 10, "hello", "hi"),
			stubConv("recent", now-3*day, 5, "hello", "hi"),
			stubConv("ancient", now-30*day, 50, "hello", "hi"),
		},
	}
	s, _ := newTestServer(t, src)

	out, err := s.handleRecall(context.Background(), recallInput{})
	require.NoError(t, err)
	require.Len(t, out.Conversations, 2)
	assert.Equal(t, "fresh", out.Conversations[0].ID)
	assert.Equal(t, "recent", out.Conversations[1].ID)
	for _, c := range out.Conversations {
		assert.Empty(t, c.Messages)
		assert.Greater(t, c.ActivityScore, 0.0)
	}
	assert.Equal(t, []string{"cursor"}, out.Sources)

	// A second call with the same fingerprint is served from cache and
	// must be indistinguishable from the build result, stats included.
	again, err := s.handleRecall(context.Background(), recallInput{})
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestHandleRecallComprehensiveTypeFilter(t *testing.T) {
	now := time.Now().UnixMilli()
	src := &stubSource{
		name:     conversations.SourceCursor,
		detected: true,
		convs: []conversations.Conversation{
			stubConv("bug", now-1000, 2, "I hit a panic with a stack trace, looks like a bug"),
			stubConv("chat", now-2000, 2, "what should we have for lunch"),
		},
	}
	s, _ := newTestServer(t, src)

	out, err := s.handleRecall(context.Background(), recallInput{
		FastMode:          boolPtr(false),
		ConversationTypes: []string{"debugging"},
	})
	require.NoError(t, err)
	require.Len(t, out.Conversations, 1)
	assert.Equal(t, "bug", out.Conversations[0].ID)
}

func TestHandleRecallArgumentValidation(t *testing.T) {
	s, _ := newTestServer(t)

	cases := []struct {
		name string
		args recallInput
	}{
		{"days too low", recallInput{DaysLookback: intPtr(0)}},
		{"days too high", recallInput{DaysLookback: intPtr(366)}},
		{"limit negative", recallInput{Limit: intPtr(-1)}},
		{"limit too high", recallInput{Limit: intPtr(1001)}},
		{"unknown type", recallInput{ConversationTypes: []string{"gossip"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.handleRecall(context.Background(), tc.args)
			var te *ToolError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, KindInvalidArgument, te.Kind)
		})
	}
}

func TestHandleSearch(t *testing.T) {
	now := time.Now().UnixMilli()
	src := &stubSource{
		name:     conversations.SourceCursor,
		detected: true,
		convs: []conversations.Conversation{
			stubConv("quest", now-1000, 2, "the fellowship of the ring sets out", "indeed"),
			stubConv("other", now-2000, 2, "completely unrelated topic", "sure"),
		},
	}
	s, _ := newTestServer(t, src)

	out, err := s.handleSearch(context.Background(), searchInput{Query: "fellowship"})
	require.NoError(t, err)
	require.Len(t, out.Conversations, 1)
	assert.Equal(t, "quest", out.Conversations[0].ID)
	assert.Contains(t, out.Conversations[0].Snippet, "fellowship")
	assert.Greater(t, out.Conversations[0].RelevanceScore, 0.0)
	// Without include_content the payloads stay home.
	assert.Empty(t, out.Conversations[0].Messages)
}

func TestHandleSearchIncludeContent(t *testing.T) {
	now := time.Now().UnixMilli()
	src := &stubSource{
		name:     conversations.SourceCursor,
		detected: true,
		convs: []conversations.Conversation{
			stubConv("quest", now-1000, 2, "the fellowship of the ring sets out", "indeed"),
		},
	}
	s, _ := newTestServer(t, src)

	out, err := s.handleSearch(context.Background(), searchInput{
		Query:          "fellowship",
		IncludeContent: true,
	})
	require.NoError(t, err)
	require.Len(t, out.Conversations, 1)
	assert.NotEmpty(t, out.Conversations[0].Messages)
}

func TestHandleSearchQueryValidation(t *testing.T) {
	s, _ := newTestServer(t)

	_, err := s.handleSearch(context.Background(), searchInput{Query: ""})
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindInvalidArgument, te.Kind)

	long := make([]byte, maxQueryLen+1)
	for i := range long {
		long[i] = 'q'
	}
	_, err = s.handleSearch(context.Background(), searchInput{Query: string(long)})
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindInvalidArgument, te.Kind)
}

func TestHandleSearchSourceFailure(t *testing.T) {
	src := &stubSource{
		name:     conversations.SourceCursor,
		detected: true,
		err:      fmt.Errorf("store locked"),
	}
	s, _ := newTestServer(t, src)

	_, err := s.handleSearch(context.Background(), searchInput{Query: "anything"})
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindSourceUnavailable, te.Kind)
}

func TestHandleExport(t *testing.T) {
	now := time.Now().UnixMilli()
	src := &stubSource{
		name:     conversations.SourceCursor,
		detected: true,
		convs: []conversations.Conversation{
			stubConv("one", now-1000, 2, "first conversation", "reply"),
			stubConv("two", now-2000, 2, "second conversation", "reply"),
		},
	}
	s, _ := newTestServer(t, src)

	out, err := s.handleExport(context.Background(), exportInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count)
	assert.Len(t, out.Files, 2)
	assert.Equal(t, "json", out.Format)

	// Exported files round-trip to the aggregated conversations.
	var exported conversations.Conversation
	raw, err := os.ReadFile(out.Files[0])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &exported))
	assert.NotEmpty(t, exported.Messages)
}

func TestHandleExportValidation(t *testing.T) {
	s, _ := newTestServer(t)
	var te *ToolError

	_, err := s.handleExport(context.Background(), exportInput{Format: "xml"})
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindInvalidArgument, te.Kind)

	_, err = s.handleExport(context.Background(), exportInput{ConversationTypes: []string{"nope"}})
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindInvalidArgument, te.Kind)
}

func TestBoundedInt(t *testing.T) {
	v, err := boundedInt(nil, 7, 1, 365, "t", "days")
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	v, err = boundedInt(intPtr(30), 7, 1, 365, "t", "days")
	require.NoError(t, err)
	assert.Equal(t, 30, v)

	_, err = boundedInt(intPtr(0), 7, 1, 365, "t", "days")
	assert.Error(t, err)
	_, err = boundedInt(intPtr(366), 7, 1, 365, "t", "days")
	assert.Error(t, err)
}

func TestValidateTypes(t *testing.T) {
	assert.NoError(t, validateTypes(nil, "t"))
	assert.NoError(t, validateTypes([]string{"debugging", "general"}, "t"))
	assert.Error(t, validateTypes([]string{"debugging", "made_up"}, "t"))
}

func TestCacheKeyIgnoresDetectionOrderButNotFilter(t *testing.T) {
	store := t.TempDir()
	storeFile := filepath.Join(store, "state.db")
	require.NoError(t, os.WriteFile(storeFile, []byte("data"), 0o644))

	a := &stubSource{name: conversations.SourceCursor, detected: true, stores: []string{storeFile}}
	b := &stubSource{name: conversations.SourceClaudeCode, detected: true}
	s, _ := newTestServer(t, a, b)

	f := conversations.Filter{FastMode: true, DaysLookback: 7, Limit: 20, Now: 1}
	k1 := s.cacheKey(context.Background(), f)

	f.Now = 2
	assert.Equal(t, k1, s.cacheKey(context.Background(), f), "reference instant must not shift the key")

	f.DaysLookback = 14
	assert.NotEqual(t, k1, s.cacheKey(context.Background(), f))
}
