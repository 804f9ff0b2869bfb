package project

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T, dir string) *git.Repository {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return repo
}

func commitFile(t *testing.T, repo *git.Repository, dir, rel, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, rel)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, rel), []byte(content), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(rel)
	require.NoError(t, err)
	_, err = wt.Commit("update "+rel, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "test",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err)
}

func TestCollectGitNonRepo(t *testing.T) {
	pctx := Describe(t.TempDir())
	CollectGit(context.Background(), &pctx, GitOptions{}, nil)

	assert.False(t, pctx.IsGitRepo)
	assert.Empty(t, pctx.CurrentBranch)
	assert.Empty(t, pctx.GitHead)
}

func TestCollectGitWithCommits(t *testing.T) {
	dir := t.TempDir()
	repo := initRepo(t, dir)
	commitFile(t, repo, dir, "README.md", "hello")
	commitFile(t, repo, dir, "main.go", "package main")
	commitFile(t, repo, dir, "main.go", "package main // v2")

	pctx := Describe(dir)
	CollectGit(context.Background(), &pctx, GitOptions{}, nil)

	assert.True(t, pctx.IsGitRepo)
	assert.NotEmpty(t, pctx.CurrentBranch)
	assert.Len(t, pctx.GitHead, shortHashLen)

	require.NotNil(t, pctx.RecentCommitFiles)
	assert.Equal(t, 2, pctx.RecentCommitFiles["main.go"])
	assert.Equal(t, 1, pctx.RecentCommitFiles["README.md"])
}

func TestCollectGitEmptyRepo(t *testing.T) {
	dir := t.TempDir()
	initRepo(t, dir)

	pctx := Describe(dir)
	CollectGit(context.Background(), &pctx, GitOptions{}, nil)

	// A repo with no commits is still a repo, just without a branch.
	assert.True(t, pctx.IsGitRepo)
	assert.Empty(t, pctx.GitHead)
}

func TestCollectGitMaxCommitsBound(t *testing.T) {
	dir := t.TempDir()
	repo := initRepo(t, dir)
	for i := 0; i < 5; i++ {
		commitFile(t, repo, dir, "counted.txt", time.Now().String())
	}

	pctx := Describe(dir)
	CollectGit(context.Background(), &pctx, GitOptions{MaxCommits: 2}, nil)

	assert.True(t, pctx.IsGitRepo)
	assert.Equal(t, 2, pctx.RecentCommitFiles["counted.txt"])
}
