package windsurf

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gandalf-mcp/gandalf/internal/conversations"
)

func newWorkspaceDir(t *testing.T, root, hash string) string {
	t.Helper()
	dir := filepath.Join(root, "User", "workspaceStorage", hash)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}

func TestDetect(t *testing.T) {
	root := t.TempDir()
	a := New([]string{root}, nil)
	assert.False(t, a.Detect(context.Background()))

	newWorkspaceDir(t, root, "ws1")
	assert.True(t, a.Detect(context.Background()))
}

func TestListWorkspaces(t *testing.T) {
	root := t.TempDir()
	newWorkspaceDir(t, root, "beta")
	newWorkspaceDir(t, root, "alpha")

	workspaces, err := New([]string{root}, nil).ListWorkspaces(context.Background())
	require.NoError(t, err)
	require.Len(t, workspaces, 2)

	assert.Equal(t, "alpha", workspaces[0].WorkspaceID)
	assert.Equal(t, "beta", workspaces[1].WorkspaceID)
	assert.Equal(t, conversations.SourceWindsurf, workspaces[0].Source)
	assert.Zero(t, workspaces[0].Totals.Conversations)
}

func TestExtractEmitsNothing(t *testing.T) {
	root := t.TempDir()
	newWorkspaceDir(t, root, "ws1")

	called := false
	err := New([]string{root}, nil).Extract(context.Background(), conversations.Filter{},
		func(conversations.Conversation) error {
			called = true
			return nil
		})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestStoresIgnoresFiles(t *testing.T) {
	root := t.TempDir()
	dir := newWorkspaceDir(t, root, "real")
	storageRoot := filepath.Dir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(storageRoot, "stray.txt"), []byte("x"), 0o644))

	stores := New([]string{root}, nil).Stores(context.Background())
	require.Len(t, stores, 1)
	assert.Equal(t, dir, stores[0])
}
