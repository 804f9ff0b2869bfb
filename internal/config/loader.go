package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// ErrInvalidWeightsFile marks a weights file that could not be used.
// Callers warn and continue on the weights returned alongside it.
var ErrInvalidWeightsFile = errors.New("invalid weights file")

const (
	// WeightsFileName is the discovered file name for scoring overrides.
	WeightsFileName = "gandalf-weights.yaml"

	// maxWeightsFileSize caps the file read (weight tables are small).
	maxWeightsFileSize = 1024 * 1024

	weightEnvPrefix = "WEIGHT_"
)

// DiscoverWeightsFile returns the first existing weights file, looking in
// the project root and then the user config directory. Empty when absent.
func DiscoverWeightsFile(projectRoot string) string {
	candidates := make([]string, 0, 2)
	if projectRoot != "" {
		candidates = append(candidates, filepath.Join(projectRoot, WeightsFileName))
	}
	if userDir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(userDir, "gandalf", WeightsFileName))
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
	}
	return ""
}

// LoadWeights builds the effective weight table.
//
// Precedence (highest to lowest):
//  1. WEIGHT_* environment variables (WEIGHT_GIT_ACTIVITY=0.4)
//  2. YAML weights file (gandalf-weights.yaml)
//  3. Built-in defaults
//
// A missing path ("") skips the file layer. An unreadable or invalid file
// does not fail the load: the remaining layers still apply and the returned
// error wraps ErrInvalidWeightsFile for the caller to log as a warning.
func LoadWeights(path string) (*Weights, error) {
	k := koanf.New(".")

	var fileErr error
	if path != "" {
		content, err := readWeightsFile(path)
		if err != nil {
			fileErr = fmt.Errorf("%w: %v", ErrInvalidWeightsFile, err)
		} else if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			// Discard any partially loaded keys.
			fileErr = fmt.Errorf("%w: %s: %v", ErrInvalidWeightsFile, path, err)
			k = koanf.New(".")
		}
	}

	// Environment overrides apply even when the file layer failed.
	// WEIGHT_RECENT_MODIFICATION -> weights.recent_modification
	if err := k.Load(env.Provider(weightEnvPrefix, ".", weightEnvKey), nil); err != nil {
		return DefaultWeights(), fmt.Errorf("loading weight env overrides: %w", err)
	}

	w := DefaultWeights()
	if err := k.Unmarshal("", w); err != nil {
		return DefaultWeights(), fmt.Errorf("%w: %s: %v", ErrInvalidWeightsFile, path, err)
	}
	if err := w.Validate(); err != nil {
		return DefaultWeights(), fmt.Errorf("%w: %s: %v", ErrInvalidWeightsFile, path, err)
	}
	return w, fileErr
}

// weightEnvKey maps WEIGHT_RECENT_MODIFICATION to weights.recent_modification.
// Names without a matching field unmarshal into nothing and are ignored.
func weightEnvKey(s string) string {
	return "weights." + strings.ToLower(strings.TrimPrefix(s, weightEnvPrefix))
}

func readWeightsFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat weights file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("weights file %s is not a regular file", path)
	}
	if info.Size() > maxWeightsFileSize {
		return nil, fmt.Errorf("weights file %s exceeds %d bytes", path, maxWeightsFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights file: %w", err)
	}
	return content, nil
}
