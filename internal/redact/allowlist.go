package redact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
)

var (
	// ErrInvalidRegex indicates a regex pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")

	// ErrInvalidTOML indicates a TOML file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")
)

// ProjectAllowlistName is the per-project allowlist file, compatible
// with the gitleaks configuration format.
const ProjectAllowlistName = ".gitleaks.toml"

// Allowlist contains path and content patterns excluded from secret
// detection.
type Allowlist struct {
	Paths     []string // File path regex patterns to ignore
	Regexes   []string // Content regex patterns to ignore
	StopWords []string // Literal substrings that mark a match as benign
}

// LoadAllowlists loads and merges project and user allowlists using
// union logic. Missing files are silently ignored. Invalid TOML or
// regex patterns return errors.
//
// projectRoot: directory containing .gitleaks.toml (empty to skip)
// userPath: full path to the user allowlist file (empty to skip)
func LoadAllowlists(projectRoot, userPath string) (*Allowlist, error) {
	merged := &Allowlist{
		Paths:     []string{},
		Regexes:   []string{},
		StopWords: []string{},
	}

	if projectRoot != "" {
		projectFile := filepath.Join(projectRoot, ProjectAllowlistName)
		if project, err := loadTOML(projectFile); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else {
			merged.Paths = append(merged.Paths, project.Paths...)
			merged.Regexes = append(merged.Regexes, project.Regexes...)
			merged.StopWords = append(merged.StopWords, project.StopWords...)
		}
	}

	if userPath != "" {
		if user, err := loadTOML(userPath); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else {
			merged.Paths = append(merged.Paths, user.Paths...)
			merged.Regexes = append(merged.Regexes, user.Regexes...)
			merged.StopWords = append(merged.StopWords, user.StopWords...)
		}
	}

	return merged, nil
}

// loadTOML loads and validates a single allowlist file.
func loadTOML(path string) (*Allowlist, error) {
	var config struct {
		Allowlist struct {
			Paths     []string
			Regexes   []string
			StopWords []string `toml:"stopwords"`
		}
	}

	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	// Validate patterns fail-fast so a broken allowlist never silently
	// disables itself mid-run.
	for _, pattern := range config.Allowlist.Paths {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: invalid path pattern '%s' in %s: %v",
				ErrInvalidRegex, pattern, path, err)
		}
	}
	for _, pattern := range config.Allowlist.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: invalid content pattern '%s' in %s: %v",
				ErrInvalidRegex, pattern, path, err)
		}
	}

	// Stop words are literal substrings, nothing to validate.
	return &Allowlist{
		Paths:     config.Allowlist.Paths,
		Regexes:   config.Allowlist.Regexes,
		StopWords: config.Allowlist.StopWords,
	}, nil
}
