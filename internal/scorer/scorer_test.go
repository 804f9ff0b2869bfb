package scorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gandalf-mcp/gandalf/internal/config"
	"github.com/gandalf-mcp/gandalf/internal/project"
)

func testScorer() (*Scorer, time.Time) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	return New(nil, now), now
}

func TestRecencyFactorShape(t *testing.T) {
	s, now := testScorer()

	ageMillis := func(age time.Duration) int64 {
		return now.Add(-age).UnixMilli()
	}

	assert.InDelta(t, 1.0, s.recencyFactor(ageMillis(30*time.Minute)), 1e-9)
	assert.InDelta(t, 1.0, s.recencyFactor(ageMillis(time.Hour)), 1e-9)
	assert.InDelta(t, 0.10, s.recencyFactor(ageMillis(24*time.Hour)), 1e-9)
	assert.InDelta(t, 0.01, s.recencyFactor(ageMillis(7*24*time.Hour)), 1e-9)
	assert.Zero(t, s.recencyFactor(ageMillis(40*24*time.Hour)))
	assert.Zero(t, s.recencyFactor(0))

	// Monotonic between breakpoints.
	mid := s.recencyFactor(ageMillis(12 * time.Hour))
	assert.Greater(t, mid, 0.10)
	assert.Less(t, mid, 1.0)
}

func TestSizeFactorShape(t *testing.T) {
	s, _ := testScorer()
	bands := config.DefaultWeights().Size

	assert.InDelta(t, 1.0, s.sizeFactor(bands.OptimalMinBytes), 1e-9)
	assert.InDelta(t, 1.0, s.sizeFactor((bands.OptimalMinBytes+bands.OptimalMaxBytes)/2), 1e-9)
	assert.InDelta(t, 1.0, s.sizeFactor(bands.OptimalMaxBytes), 1e-9)

	// Oversize files get the fixed floor score.
	assert.InDelta(t, bands.OversizeScore, s.sizeFactor(bands.HardCeilingBytes+1), 1e-9)

	// Outside the optimal band the factor drops but stays positive.
	below := s.sizeFactor(bands.AcceptableMinBytes)
	assert.InDelta(t, 0.3, below, 1e-9)
	tiny := s.sizeFactor(10)
	assert.Less(t, tiny, below)
	assert.GreaterOrEqual(t, tiny, 0.0)

	above := s.sizeFactor(bands.AcceptableMaxBytes)
	assert.InDelta(t, 0.3, above, 1e-9)
}

func TestDirectoryFactorUsesMaxSegment(t *testing.T) {
	s, _ := testScorer()

	// "src" weighs 1.0, "docs" 0.4; the max over segments wins.
	assert.InDelta(t, 1.0, s.directoryFactor("src/docs/readme.md"), 1e-9)
	assert.InDelta(t, 0.4, s.directoryFactor("docs/guide.md"), 1e-9)
	assert.Zero(t, s.directoryFactor("toplevel.go"))
	assert.Zero(t, s.directoryFactor("unknown/file.go"))
}

func TestGitFactorCapped(t *testing.T) {
	s, _ := testScorer()
	counts := map[string]int{"hot.go": 50, "warm.go": 2}

	assert.InDelta(t, 1.0, s.gitFactor("hot.go", counts), 1e-9)
	assert.InDelta(t, 0.4, s.gitFactor("warm.go", counts), 1e-9)
	assert.Zero(t, s.gitFactor("cold.go", counts))
	assert.Zero(t, s.gitFactor("hot.go", nil))
}

func TestScoreIsWeightedSum(t *testing.T) {
	s, now := testScorer()
	e := project.FileEntry{
		RelativePath: "src/main.go",
		SizeBytes:    4096,
		ModifiedAt:   now.UnixMilli(),
		Extension:    ".go",
	}
	counts := map[string]int{"src/main.go": 10}

	// recency=1, size=1, ext=1, dir=1, git=1 with default weights.
	assert.InDelta(t, 1.0, s.Score(e, counts), 1e-9)

	// Dropping the git signal removes exactly its weight.
	assert.InDelta(t, 0.85, s.Score(e, nil), 1e-9)
}

func TestTierThresholds(t *testing.T) {
	s, _ := testScorer()

	assert.Equal(t, project.TierHigh, s.Tier(0.9))
	assert.Equal(t, project.TierHigh, s.Tier(0.8))
	assert.Equal(t, project.TierMedium, s.Tier(0.6))
	assert.Equal(t, project.TierLow, s.Tier(0.2))
}

func TestRankOrdering(t *testing.T) {
	s, now := testScorer()
	old := now.Add(-40 * 24 * time.Hour).UnixMilli()

	entries := []project.FileEntry{
		{RelativePath: "old.js", SizeBytes: 4096, ModifiedAt: old, Extension: ".js"},
		{RelativePath: "recent.py", SizeBytes: 4096, ModifiedAt: now.UnixMilli(), Extension: ".py"},
	}
	s.Rank(entries, nil)

	assert.Equal(t, "recent.py", entries[0].RelativePath)
	assert.Equal(t, "old.js", entries[1].RelativePath)
	assert.Greater(t, entries[0].Score, entries[1].Score)
	for _, e := range entries {
		assert.NotEmpty(t, e.Tier)
	}
}

func TestRankTieBreaks(t *testing.T) {
	s, now := testScorer()
	ts := now.UnixMilli()

	// Identical signals except path: lexicographic order decides.
	entries := []project.FileEntry{
		{RelativePath: "b.go", SizeBytes: 4096, ModifiedAt: ts, Extension: ".go"},
		{RelativePath: "a.go", SizeBytes: 4096, ModifiedAt: ts, Extension: ".go"},
	}
	s.Rank(entries, nil)
	assert.Equal(t, "a.go", entries[0].RelativePath)

	// Same score, newer mtime first.
	entries = []project.FileEntry{
		{RelativePath: "x.go", SizeBytes: 4096, ModifiedAt: ts - 60_000, Extension: ".go"},
		{RelativePath: "y.go", SizeBytes: 4096, ModifiedAt: ts - 30_000, Extension: ".go"},
	}
	s.Rank(entries, nil)
	assert.Equal(t, "y.go", entries[0].RelativePath)
}
