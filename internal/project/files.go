package project

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gandalf-mcp/gandalf/internal/ignore"
)

// EnumerateOptions control a project walk.
type EnumerateOptions struct {
	// IncludeHidden keeps dot-files and files under dot-directories.
	IncludeHidden bool

	// FileTypes restricts results to these extensions when non-empty.
	// Matching is case-insensitive; a leading dot is optional.
	FileTypes []string
}

// Enumerate walks the project root honoring the layered ignore policy:
// built-in skip directories, the project's gitignore-style files, and
// the hidden-file rule. The walk stops early when ctx is cancelled and
// returns what it has along with the context error.
func Enumerate(ctx context.Context, root string, opts EnumerateOptions) ([]FileEntry, error) {
	patterns, err := ignore.NewParser(nil, nil).ParseProject(root)
	if err != nil {
		return nil, err
	}
	matcher, err := ignore.NewMatcher(patterns)
	if err != nil {
		return nil, err
	}

	extFilter := normalizeExtensions(opts.FileTypes)

	var entries []FileEntry
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}

		hidden := isHidden(rel)
		if d.IsDir() {
			if matcher.ExcludedDir(rel) {
				return filepath.SkipDir
			}
			if hidden && !opts.IncludeHidden {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if matcher.Excluded(rel) {
			return nil
		}
		if hidden && !opts.IncludeHidden {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(rel))
		if len(extFilter) > 0 && !extFilter[ext] {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		entries = append(entries, FileEntry{
			RelativePath: filepath.ToSlash(rel),
			SizeBytes:    info.Size(),
			ModifiedAt:   info.ModTime().UnixMilli(),
			Extension:    ext,
			IsHidden:     hidden,
		})
		return nil
	})

	return entries, walkErr
}

// Summarize computes listing stats for get_project_info.
func Summarize(entries []FileEntry) Stats {
	s := Stats{ByExtension: make(map[string]int)}
	for _, e := range entries {
		s.TotalFiles++
		s.TotalSizeBytes += e.SizeBytes
		if e.Extension != "" {
			s.ByExtension[e.Extension]++
		}
	}
	if len(s.ByExtension) == 0 {
		s.ByExtension = nil
	}
	return s
}

// RecentlyModified returns the paths of the most recently touched
// entries, newest first, bounded by max.
func RecentlyModified(entries []FileEntry, max int) []string {
	if max <= 0 || len(entries) == 0 {
		return nil
	}
	sorted := make([]FileEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ModifiedAt != sorted[j].ModifiedAt {
			return sorted[i].ModifiedAt > sorted[j].ModifiedAt
		}
		return sorted[i].RelativePath < sorted[j].RelativePath
	})
	if len(sorted) > max {
		sorted = sorted[:max]
	}
	paths := make([]string, len(sorted))
	for i, e := range sorted {
		paths[i] = e.RelativePath
	}
	return paths
}

// isHidden reports whether any segment of the relative path starts
// with a dot.
func isHidden(rel string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// normalizeExtensions lowercases the filter and ensures leading dots,
// so "PY" and ".py" both match a.py.
func normalizeExtensions(types []string) map[string]bool {
	if len(types) == 0 {
		return nil
	}
	out := make(map[string]bool, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, ".") {
			t = "." + t
		}
		out[t] = true
	}
	return out
}
