package project

// PriorityTier buckets a file's relevance score.
type PriorityTier string

const (
	TierHigh   PriorityTier = "high"
	TierMedium PriorityTier = "medium"
	TierLow    PriorityTier = "low"
)

// FileEntry is one enumerated project file. Score and Tier are zero
// until the relevance scorer runs over the listing.
type FileEntry struct {
	RelativePath string       `json:"relative_path"`
	SizeBytes    int64        `json:"size_bytes"`
	ModifiedAt   int64        `json:"modified_at"`
	Extension    string       `json:"extension"`
	IsHidden     bool         `json:"is_hidden"`
	Score        float64      `json:"score,omitempty"`
	Tier         PriorityTier `json:"priority_tier,omitempty"`
}

// Context describes the resolved project.
type Context struct {
	RootPath      string `json:"root_path"`
	ProjectName   string `json:"project_name"`
	RawName       string `json:"raw_name,omitempty"`
	IsGitRepo     bool   `json:"is_git_repo"`
	CurrentBranch string `json:"current_branch,omitempty"`
	GitHead       string `json:"git_head,omitempty"`

	// RecentlyModified lists the most recently touched files, bounded.
	RecentlyModified []string `json:"recently_modified_paths,omitempty"`

	// RecentCommitFiles maps file paths changed in recent commits to
	// their commit counts within the lookback window.
	RecentCommitFiles map[string]int `json:"recent_commit_files,omitempty"`
}

// Stats summarize an enumeration for get_project_info.
type Stats struct {
	TotalFiles     int            `json:"total_files"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	ByExtension    map[string]int `json:"by_extension,omitempty"`
}
