package redact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeAllowlist(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestLoadAllowlistsMissingFiles(t *testing.T) {
	dir := t.TempDir()

	got, err := LoadAllowlists(dir, filepath.Join(dir, "allowlist.toml"))
	if err != nil {
		t.Fatalf("LoadAllowlists() error = %v", err)
	}
	if len(got.Paths) != 0 || len(got.Regexes) != 0 {
		t.Errorf("expected empty allowlist, got %+v", got)
	}
}

func TestLoadAllowlistsMergesProjectAndUser(t *testing.T) {
	projectDir := t.TempDir()
	userDir := t.TempDir()
	userFile := filepath.Join(userDir, "allowlist.toml")

	writeAllowlist(t, filepath.Join(projectDir, ProjectAllowlistName), `
[allowlist]
paths = ["testdata/.*"]
regexes = ["EXAMPLE_KEY"]
stopwords = ["sample"]
`)
	writeAllowlist(t, userFile, `
[allowlist]
regexes = ["fixture-token"]
stopwords = ["placeholder"]
`)

	got, err := LoadAllowlists(projectDir, userFile)
	if err != nil {
		t.Fatalf("LoadAllowlists() error = %v", err)
	}

	if len(got.Paths) != 1 || got.Paths[0] != "testdata/.*" {
		t.Errorf("Paths = %v", got.Paths)
	}
	if len(got.Regexes) != 2 {
		t.Fatalf("Regexes = %v, want 2 entries", got.Regexes)
	}
	if got.Regexes[0] != "EXAMPLE_KEY" || got.Regexes[1] != "fixture-token" {
		t.Errorf("Regexes = %v, want project before user", got.Regexes)
	}
	if len(got.StopWords) != 2 || got.StopWords[0] != "sample" || got.StopWords[1] != "placeholder" {
		t.Errorf("StopWords = %v, want project before user", got.StopWords)
	}
}

func TestLoadAllowlistsInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	writeAllowlist(t, filepath.Join(dir, ProjectAllowlistName), `[allowlist`)

	_, err := LoadAllowlists(dir, "")
	if !errors.Is(err, ErrInvalidTOML) {
		t.Errorf("error = %v, want ErrInvalidTOML", err)
	}
}

func TestLoadAllowlistsInvalidRegex(t *testing.T) {
	dir := t.TempDir()
	writeAllowlist(t, filepath.Join(dir, ProjectAllowlistName), `
[allowlist]
regexes = ["[unclosed("]
`)

	_, err := LoadAllowlists(dir, "")
	if !errors.Is(err, ErrInvalidRegex) {
		t.Errorf("error = %v, want ErrInvalidRegex", err)
	}
}
