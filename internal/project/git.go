package project

import (
	"context"
	"errors"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

// shortHashLen matches git's default abbreviated hash length.
const shortHashLen = 8

// GitOptions bound the metadata collection.
type GitOptions struct {
	// Timeout caps the whole collection; failure is non-fatal.
	Timeout time.Duration

	// LookbackDays is the recent-commit window.
	LookbackDays int

	// MaxCommits bounds the log walk.
	MaxCommits int
}

// errWalkDone stops the commit iteration without reporting a failure.
var errWalkDone = errors.New("commit walk done")

// CollectGit fills the git fields of ctx in place. Any failure leaves
// IsGitRepo false and never propagates: projects without git history
// are a fully supported case, not an error.
func CollectGit(parent context.Context, pctx *Context, opts GitOptions, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 30
	}
	if opts.MaxCommits <= 0 {
		opts.MaxCommits = 100
	}

	ctx, cancel := context.WithTimeout(parent, opts.Timeout)
	defer cancel()

	repo, err := git.PlainOpen(pctx.RootPath)
	if err != nil {
		logger.Debug("no git repository at project root",
			zap.String("root", pctx.RootPath), zap.Error(err))
		return
	}

	head, err := repo.Head()
	if err != nil {
		// An initialized repo with no commits still counts as a repo.
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			pctx.IsGitRepo = true
		}
		logger.Debug("git HEAD unavailable", zap.Error(err))
		return
	}

	pctx.IsGitRepo = true
	if head.Name().IsBranch() {
		pctx.CurrentBranch = head.Name().Short()
	} else {
		pctx.CurrentBranch = "detached"
	}
	pctx.GitHead = head.Hash().String()[:shortHashLen]

	files, err := recentCommitFiles(ctx, repo, opts)
	if err != nil {
		logger.Debug("recent commit walk incomplete", zap.Error(err))
	}
	if len(files) > 0 {
		pctx.RecentCommitFiles = files
	}
}

// recentCommitFiles walks the log within the lookback window and counts
// how many commits touched each file. The walk is bounded by MaxCommits
// and by the collection deadline; hitting either bound returns the
// counts gathered so far.
func recentCommitFiles(ctx context.Context, repo *git.Repository, opts GitOptions) (map[string]int, error) {
	since := time.Now().AddDate(0, 0, -opts.LookbackDays)
	iter, err := repo.Log(&git.LogOptions{Since: &since})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	counts := make(map[string]int)
	seen := 0
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if seen >= opts.MaxCommits {
			return errWalkDone
		}
		seen++

		stats, err := c.Stats()
		if err != nil {
			// Merge commits and odd objects are skipped, not fatal.
			return nil
		}
		for _, st := range stats {
			counts[st.Name]++
		}
		return nil
	})
	if errors.Is(err, errWalkDone) {
		err = nil
	}
	return counts, err
}
