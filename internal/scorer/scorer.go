// Package scorer assigns multi-factor relevance scores to project
// files and buckets them into priority tiers. Scoring is a pure
// function of the file signals and the weight table; nothing here
// learns or persists.
package scorer

import (
	"sort"
	"strings"
	"time"

	"github.com/gandalf-mcp/gandalf/internal/config"
	"github.com/gandalf-mcp/gandalf/internal/project"
)

// Scorer scores file entries against one immutable weights snapshot.
type Scorer struct {
	weights *config.Weights
	now     time.Time
}

// New builds a scorer. A nil weights table selects the defaults; a
// zero now means time.Now at construction.
func New(weights *config.Weights, now time.Time) *Scorer {
	if weights == nil {
		weights = config.DefaultWeights()
	}
	if now.IsZero() {
		now = time.Now()
	}
	return &Scorer{weights: weights, now: now}
}

// Score computes the weighted sum over all factors for one entry.
// commitCounts maps repo-relative paths to recent commit counts and
// may be nil for projects without git history.
func (s *Scorer) Score(e project.FileEntry, commitCounts map[string]int) float64 {
	f := s.weights.Factors
	score := f.RecentModification * s.recencyFactor(e.ModifiedAt)
	score += f.FileSizeOptimality * s.sizeFactor(e.SizeBytes)
	score += f.FileTypePriority * s.weights.ExtensionWeight(e.Extension)
	score += f.DirectoryImportance * s.directoryFactor(e.RelativePath)
	score += f.GitActivity * s.gitFactor(e.RelativePath, commitCounts)
	return score
}

// Tier maps a score onto a priority tier.
func (s *Scorer) Tier(score float64) project.PriorityTier {
	switch {
	case score >= s.weights.Context.HighPriorityThreshold:
		return project.TierHigh
	case score >= s.weights.Context.MediumPriorityThreshold:
		return project.TierMedium
	default:
		return project.TierLow
	}
}

// Rank scores every entry in place and sorts: score descending, then
// modified time descending, then lexicographic path. Truncation to any
// caller limit must happen after this ranking.
func (s *Scorer) Rank(entries []project.FileEntry, commitCounts map[string]int) {
	for i := range entries {
		entries[i].Score = s.Score(entries[i], commitCounts)
		entries[i].Tier = s.Tier(entries[i].Score)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].ModifiedAt != entries[j].ModifiedAt {
			return entries[i].ModifiedAt > entries[j].ModifiedAt
		}
		return entries[i].RelativePath < entries[j].RelativePath
	})
}

// Recency decay breakpoints. Full weight within the first hour, then
// linear decay to 10% at a day, to 1% at a week, to zero at the
// configured horizon.
const (
	recencyFullAge  = time.Hour
	recencyDayAge   = 24 * time.Hour
	recencyWeekAge  = 7 * 24 * time.Hour
	recencyDayStop  = 0.10
	recencyWeekStop = 0.01
)

func (s *Scorer) recencyFactor(modifiedAtMillis int64) float64 {
	if modifiedAtMillis <= 0 {
		return 0
	}
	age := s.now.Sub(time.UnixMilli(modifiedAtMillis))
	horizon := time.Duration(s.weights.Context.RecencyHorizonDays) * 24 * time.Hour

	switch {
	case age <= recencyFullAge:
		return 1.0
	case age <= recencyDayAge:
		return interpolate(age, recencyFullAge, recencyDayAge, 1.0, recencyDayStop)
	case age <= recencyWeekAge:
		return interpolate(age, recencyDayAge, recencyWeekAge, recencyDayStop, recencyWeekStop)
	case age <= horizon:
		return interpolate(age, recencyWeekAge, horizon, recencyWeekStop, 0)
	default:
		return 0
	}
}

func (s *Scorer) sizeFactor(size int64) float64 {
	b := s.weights.Size
	switch {
	case size > b.HardCeilingBytes:
		return b.OversizeScore
	case size >= b.OptimalMinBytes && size <= b.OptimalMaxBytes:
		return 1.0
	case size >= b.AcceptableMinBytes && size < b.OptimalMinBytes:
		// Ramp up through the acceptable band below the optimum.
		return interpolateI64(size, b.AcceptableMinBytes, b.OptimalMinBytes, 0.3, 1.0)
	case size > b.OptimalMaxBytes && size <= b.AcceptableMaxBytes:
		return interpolateI64(size, b.OptimalMaxBytes, b.AcceptableMaxBytes, 1.0, 0.3)
	case size < b.AcceptableMinBytes:
		if b.AcceptableMinBytes == 0 {
			return 0.3
		}
		return 0.3 * float64(size) / float64(b.AcceptableMinBytes)
	default:
		// Between acceptable max and the hard ceiling.
		return interpolateI64(size, b.AcceptableMaxBytes, b.HardCeilingBytes, 0.3, b.OversizeScore)
	}
}

func (s *Scorer) directoryFactor(relPath string) float64 {
	segments := strings.Split(relPath, "/")
	if len(segments) <= 1 {
		return 0
	}
	return s.weights.DirectoryWeight(segments[:len(segments)-1])
}

func (s *Scorer) gitFactor(relPath string, commitCounts map[string]int) float64 {
	if len(commitCounts) == 0 {
		return 0
	}
	count := commitCounts[relPath]
	if count <= 0 {
		return 0
	}
	cap := s.weights.Git.ActivityCap
	if count > cap {
		count = cap
	}
	return float64(count) / float64(cap)
}

func interpolate(x, x0, x1 time.Duration, y0, y1 float64) float64 {
	if x1 <= x0 {
		return y1
	}
	t := float64(x-x0) / float64(x1-x0)
	return y0 + t*(y1-y0)
}

func interpolateI64(x, x0, x1 int64, y0, y1 float64) float64 {
	if x1 <= x0 {
		return y1
	}
	t := float64(x-x0) / float64(x1-x0)
	return y0 + t*(y1-y0)
}
