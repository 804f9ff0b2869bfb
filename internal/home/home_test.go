package home

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnsureCreatesLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "deep", ".gandalf")
	l := New(root)

	if err := l.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	for _, dir := range []string{l.CacheDir(), l.LogsDir(), l.ExportsDir(), l.BackupsDir(), l.ServersDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("missing %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
		if perm := info.Mode().Perm(); perm != 0o700 {
			t.Errorf("%s permissions = %o, want 0700", dir, perm)
		}
	}
}

func TestEnsureIdempotent(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), ".gandalf"))
	if err := l.Ensure(); err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	if err := l.Ensure(); err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
}

func TestWriteReadiness(t *testing.T) {
	l := New(t.TempDir())

	r := &Readiness{
		CheckedAt: time.Now().UTC(),
		Version:   "1.0.0",
		Home:      l.Root,
		Ready:     true,
		Checks:    map[string]string{"cache": "ok", "cursor": "absent"},
	}
	if err := l.WriteReadiness(r); err != nil {
		t.Fatalf("WriteReadiness: %v", err)
	}

	data, err := os.ReadFile(l.ReadinessPath())
	if err != nil {
		t.Fatalf("read readiness: %v", err)
	}
	var got Readiness
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("readiness is not valid JSON: %v", err)
	}
	if !got.Ready || got.Version != "1.0.0" {
		t.Errorf("unexpected readiness %+v", got)
	}
	if got.Checks["cursor"] != "absent" {
		t.Errorf("checks lost: %+v", got.Checks)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "readiness.json" && !e.IsDir() {
			t.Errorf("stray file %s", e.Name())
		}
	}
}
