package config

import (
	"fmt"
)

// Weights holds every tunable input of the file relevance scorer.
// Values are immutable after loading; hot reload swaps whole snapshots.
type Weights struct {
	Factors     FactorWeights      `koanf:"weights"`
	Context     ContextThresholds  `koanf:"context"`
	Extensions  map[string]float64 `koanf:"file_extensions"`
	Directories map[string]float64 `koanf:"directories"`
	Size        SizeBands          `koanf:"size"`
	Git         GitActivity        `koanf:"git"`
}

// FactorWeights are the per-factor multipliers of the weighted sum.
type FactorWeights struct {
	RecentModification  float64 `koanf:"recent_modification"`
	FileSizeOptimality  float64 `koanf:"file_size_optimality"`
	FileTypePriority    float64 `koanf:"file_type_priority"`
	DirectoryImportance float64 `koanf:"directory_importance"`
	GitActivity         float64 `koanf:"git_activity"`
}

// ContextThresholds derive priority tiers from raw scores.
type ContextThresholds struct {
	HighPriorityThreshold   float64 `koanf:"high_priority_threshold"`
	MediumPriorityThreshold float64 `koanf:"medium_priority_threshold"`

	// RecencyHorizonDays is the mtime age beyond which the recency
	// factor contributes nothing.
	RecencyHorizonDays int `koanf:"recency_horizon_days"`
}

// SizeBands describe the size-optimality curve.
type SizeBands struct {
	OptimalMinBytes    int64 `koanf:"optimal_min_bytes"`
	OptimalMaxBytes    int64 `koanf:"optimal_max_bytes"`
	AcceptableMinBytes int64 `koanf:"acceptable_min_bytes"`
	AcceptableMaxBytes int64 `koanf:"acceptable_max_bytes"`

	// HardCeilingBytes marks files that always get OversizeScore.
	HardCeilingBytes int64   `koanf:"hard_ceiling_bytes"`
	OversizeScore    float64 `koanf:"oversize_score"`
}

// GitActivity bounds the commit-history factor.
type GitActivity struct {
	LookbackDays int `koanf:"lookback_days"`
	MaxCommits   int `koanf:"max_commits"`

	// ActivityCap is the commit count at which the factor saturates.
	ActivityCap int `koanf:"activity_cap"`
}

// DefaultWeights returns the built-in scoring configuration.
func DefaultWeights() *Weights {
	return &Weights{
		Factors: FactorWeights{
			RecentModification:  0.30,
			FileSizeOptimality:  0.20,
			FileTypePriority:    0.20,
			DirectoryImportance: 0.15,
			GitActivity:         0.15,
		},
		Context: ContextThresholds{
			HighPriorityThreshold:   0.8,
			MediumPriorityThreshold: 0.5,
			RecencyHorizonDays:      30,
		},
		Extensions: map[string]float64{
			".go":    1.0,
			".py":    1.0,
			".ts":    0.95,
			".tsx":   0.95,
			".js":    0.9,
			".jsx":   0.9,
			".rs":    0.95,
			".java":  0.9,
			".kt":    0.9,
			".c":     0.85,
			".h":     0.8,
			".cpp":   0.85,
			".hpp":   0.8,
			".rb":    0.85,
			".php":   0.8,
			".swift": 0.85,
			".sh":    0.7,
			".sql":   0.7,
			".yaml":  0.65,
			".yml":   0.65,
			".toml":  0.65,
			".json":  0.6,
			".md":    0.6,
			".rst":   0.5,
			".txt":   0.3,
			".html":  0.5,
			".css":   0.5,
			".proto": 0.75,
			".lock":  0.1,
		},
		Directories: map[string]float64{
			"src":      1.0,
			"lib":      0.9,
			"internal": 0.9,
			"pkg":      0.85,
			"cmd":      0.85,
			"app":      0.85,
			"core":     0.85,
			"api":      0.8,
			"server":   0.8,
			"client":   0.75,
			"config":   0.6,
			"scripts":  0.5,
			"test":     0.5,
			"tests":    0.5,
			"docs":     0.4,
			"examples": 0.3,
		},
		Size: SizeBands{
			OptimalMinBytes:    1 << 10,  // 1 KiB
			OptimalMaxBytes:    64 << 10, // 64 KiB
			AcceptableMinBytes: 128,
			AcceptableMaxBytes: 512 << 10, // 512 KiB
			HardCeilingBytes:   5 << 20,  // 5 MiB
			OversizeScore:      0.05,
		},
		Git: GitActivity{
			LookbackDays: 30,
			MaxCommits:   100,
			ActivityCap:  5,
		},
	}
}

// Validate rejects weight tables the scorer cannot use.
func (w *Weights) Validate() error {
	factors := map[string]float64{
		"recent_modification":  w.Factors.RecentModification,
		"file_size_optimality": w.Factors.FileSizeOptimality,
		"file_type_priority":   w.Factors.FileTypePriority,
		"directory_importance": w.Factors.DirectoryImportance,
		"git_activity":         w.Factors.GitActivity,
	}
	sum := 0.0
	for name, v := range factors {
		if v < 0 || v > 1 {
			return fmt.Errorf("weight %s out of range [0,1]: %v", name, v)
		}
		sum += v
	}
	if sum == 0 {
		return fmt.Errorf("all factor weights are zero")
	}

	if w.Context.HighPriorityThreshold < w.Context.MediumPriorityThreshold {
		return fmt.Errorf("high priority threshold %v below medium %v",
			w.Context.HighPriorityThreshold, w.Context.MediumPriorityThreshold)
	}
	if w.Context.MediumPriorityThreshold < 0 {
		return fmt.Errorf("medium priority threshold cannot be negative")
	}
	if w.Context.RecencyHorizonDays <= 0 {
		return fmt.Errorf("recency horizon must be positive days")
	}

	s := w.Size
	if s.OptimalMinBytes > s.OptimalMaxBytes {
		return fmt.Errorf("optimal size range inverted: %d > %d", s.OptimalMinBytes, s.OptimalMaxBytes)
	}
	if s.AcceptableMinBytes > s.OptimalMinBytes || s.AcceptableMaxBytes < s.OptimalMaxBytes {
		return fmt.Errorf("acceptable size range must enclose the optimal range")
	}
	if s.HardCeilingBytes < s.AcceptableMaxBytes {
		return fmt.Errorf("hard ceiling %d below acceptable max %d", s.HardCeilingBytes, s.AcceptableMaxBytes)
	}
	if s.OversizeScore < 0 || s.OversizeScore > 1 {
		return fmt.Errorf("oversize score out of range [0,1]: %v", s.OversizeScore)
	}

	for ext, v := range w.Extensions {
		if v < 0 || v > 1 {
			return fmt.Errorf("extension weight %s out of range [0,1]: %v", ext, v)
		}
	}
	for dir, v := range w.Directories {
		if v < 0 || v > 1 {
			return fmt.Errorf("directory weight %s out of range [0,1]: %v", dir, v)
		}
	}

	if w.Git.LookbackDays <= 0 {
		return fmt.Errorf("git lookback must be positive days")
	}
	if w.Git.MaxCommits <= 0 {
		return fmt.Errorf("git max commits must be positive")
	}
	if w.Git.ActivityCap <= 0 {
		return fmt.Errorf("git activity cap must be positive")
	}
	return nil
}

// ExtensionWeight looks up the file-type factor for an extension.
// Unknown extensions contribute nothing to that factor.
func (w *Weights) ExtensionWeight(ext string) float64 {
	return w.Extensions[ext]
}

// DirectoryWeight returns the highest weight among path segments.
func (w *Weights) DirectoryWeight(segments []string) float64 {
	best := 0.0
	for _, seg := range segments {
		if v, ok := w.Directories[seg]; ok && v > best {
			best = v
		}
	}
	return best
}
