// Package ignore provides gitignore-style exclusion for project file
// listings. It parses the ignore files that editors honor, converts
// their patterns to doublestar globs, and answers exclusion queries
// for files and whole directory subtrees.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidPattern indicates a glob pattern failed validation.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// DefaultIgnoreFiles lists the ignore files read from a project root,
// in precedence order. Each agentic editor ships its own variant.
var DefaultIgnoreFiles = []string{".gitignore", ".cursorignore", ".codeiumignore"}

// DefaultFallbackPatterns apply when a project carries no ignore files.
var DefaultFallbackPatterns = []string{
	"**/node_modules/**",
	"**/dist/**",
	"**/build/**",
	"**/__pycache__/**",
	"**/*.min.js",
}

// defaultSkipDirs are directories that are always skipped during walks.
// These typically contain generated code, dependencies, or version
// control data.
var defaultSkipDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
	".cache":       true,
	"dist":         true,
	"build":        true,
	".next":        true,
	"target":       true, // Rust/Java build output
}

// Parser reads and parses gitignore-style files.
type Parser struct {
	// IgnoreFiles is the list of ignore file names to look for.
	IgnoreFiles []string

	// FallbackPatterns are returned when no ignore files are found.
	FallbackPatterns []string
}

// NewParser creates an ignore file parser. Nil slices select the
// package defaults.
func NewParser(ignoreFiles, fallbackPatterns []string) *Parser {
	if ignoreFiles == nil {
		ignoreFiles = DefaultIgnoreFiles
	}
	if fallbackPatterns == nil {
		fallbackPatterns = DefaultFallbackPatterns
	}
	return &Parser{
		IgnoreFiles:      ignoreFiles,
		FallbackPatterns: fallbackPatterns,
	}
}

// ParseProject reads all ignore files from the project root and returns
// combined exclude patterns. If no ignore files are found, returns the
// fallback patterns.
func (p *Parser) ParseProject(projectRoot string) ([]string, error) {
	var patterns []string
	foundAny := false

	for _, ignoreFile := range p.IgnoreFiles {
		filePatterns, err := parseFile(filepath.Join(projectRoot, ignoreFile))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		patterns = append(patterns, filePatterns...)
		foundAny = true
	}

	if !foundAny {
		return p.FallbackPatterns, nil
	}

	return deduplicate(patterns), nil
}

// parseFile reads a single gitignore-style file and returns patterns.
func parseFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		if pattern := parseLine(scanner.Text()); pattern != "" {
			patterns = append(patterns, pattern)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return patterns, nil
}

// parseLine parses a single line from a gitignore file.
// Returns empty string for comments, blank lines, and negations.
func parseLine(line string) string {
	line = strings.TrimRight(line, " \t")

	if line == "" || strings.HasPrefix(line, "#") {
		return ""
	}

	// Negation patterns are not supported.
	if strings.HasPrefix(line, "!") {
		return ""
	}

	return toGlobPattern(line)
}

// toGlobPattern converts a gitignore pattern to a doublestar glob.
func toGlobPattern(pattern string) string {
	// A leading slash roots the pattern at the project root.
	rooted := strings.HasPrefix(pattern, "/")
	pattern = strings.TrimPrefix(pattern, "/")

	// A trailing slash marks a directory pattern.
	dir := strings.HasSuffix(pattern, "/")
	pattern = strings.TrimSuffix(pattern, "/")

	// Without a slash the pattern matches at any depth.
	if !rooted && !strings.Contains(pattern, "/") {
		pattern = "**/" + pattern
	}

	if dir {
		return pattern + "/**"
	}

	// A final segment that is a bare name without glob metacharacters
	// or an extension is almost always a directory, so "node_modules"
	// and "**/build" behave like their trailing-slash forms.
	if base := path.Base(pattern); !strings.Contains(base, ".") && !strings.ContainsAny(base, "*?[") {
		pattern += "/**"
	}

	return pattern
}

// deduplicate removes duplicate patterns while preserving order.
func deduplicate(patterns []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(patterns))

	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}

	return result
}

// Matcher answers exclusion queries against a compiled pattern set.
type Matcher struct {
	patterns []string
}

// NewMatcher validates patterns and builds a matcher over them.
func NewMatcher(patterns []string) (*Matcher, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}
	}
	return &Matcher{patterns: patterns}, nil
}

// Excluded reports whether the slash- or OS-separated relative path
// matches any exclude pattern.
func (m *Matcher) Excluded(relPath string) bool {
	rel := filepath.ToSlash(relPath)
	for _, pattern := range m.patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		// "**/name/**" should also exclude a file or directory named
		// "name" itself, not only its contents.
		if trimmed := strings.TrimSuffix(pattern, "/**"); trimmed != pattern {
			if ok, _ := doublestar.Match(trimmed, rel); ok {
				return true
			}
		}
	}
	return false
}

// ExcludedDir reports whether an entire directory subtree is excluded,
// either by the built-in skip list or by the pattern set. Walkers use
// this to prune before descending.
func (m *Matcher) ExcludedDir(relPath string) bool {
	rel := filepath.ToSlash(relPath)
	if defaultSkipDirs[path.Base(rel)] {
		return true
	}
	return m.Excluded(rel)
}

// SkipDirName reports whether a bare directory name is on the built-in
// skip list, independent of any parsed patterns.
func SkipDirName(name string) bool {
	return defaultSkipDirs[name]
}
