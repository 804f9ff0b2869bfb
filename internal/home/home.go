// Package home manages the gandalf state directory.
//
// The directory is owned by gandalf; conversation stores of other tools
// are never located under it and are opened read-only elsewhere.
package home

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Layout names the directories under the gandalf home.
//
//	cache/    aggregation cache, one file per key
//	logs/     per-session NDJSON logs
//	exports/  default exporter output
//	backups/  installer backups of client configs
//	servers/  installer registration records
type Layout struct {
	Root string
}

// New returns the layout rooted at the given directory.
func New(root string) *Layout {
	return &Layout{Root: root}
}

// Ensure creates the home directory tree with owner-only permissions.
// Conversation content and logs can hold sensitive text.
func (l *Layout) Ensure() error {
	for _, dir := range []string{l.Root, l.CacheDir(), l.LogsDir(), l.ExportsDir(), l.BackupsDir(), l.ServersDir()} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// CacheDir returns the aggregation cache directory.
func (l *Layout) CacheDir() string { return filepath.Join(l.Root, "cache") }

// LogsDir returns the session log directory.
func (l *Layout) LogsDir() string { return filepath.Join(l.Root, "logs") }

// ExportsDir returns the default exporter output directory.
func (l *Layout) ExportsDir() string { return filepath.Join(l.Root, "exports") }

// BackupsDir returns the installer backup directory.
func (l *Layout) BackupsDir() string { return filepath.Join(l.Root, "backups") }

// ServersDir returns the installer registration directory.
func (l *Layout) ServersDir() string { return filepath.Join(l.Root, "servers") }

// ReadinessPath returns the status probe output file.
func (l *Layout) ReadinessPath() string { return filepath.Join(l.Root, "readiness.json") }

// Readiness is the status probe summary written by the status command.
// The serving path never reads it.
type Readiness struct {
	CheckedAt time.Time         `json:"checked_at"`
	Version   string            `json:"version"`
	Home      string            `json:"home"`
	Ready     bool              `json:"ready"`
	Checks    map[string]string `json:"checks"`
}

// WriteReadiness writes the probe summary atomically.
func (l *Layout) WriteReadiness(r *Readiness) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding readiness: %w", err)
	}
	tmp, err := os.CreateTemp(l.Root, ".readiness-*")
	if err != nil {
		return fmt.Errorf("creating readiness temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing readiness: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing readiness temp file: %w", err)
	}
	if err := os.Rename(tmpName, l.ReadinessPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing readiness file: %w", err)
	}
	return nil
}
