package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gandalf-mcp/gandalf/internal/sanitize"
)

// Resolve picks the project root. Precedence, first match wins:
//
//  1. An explicit --project-root parameter.
//  2. The first existing directory in WORKSPACE_FOLDER_PATHS.
//  3. The git top-level enclosing the working directory.
//  4. The PWD environment variable, if it names a directory.
//  5. The working directory itself.
//
// The chosen path is canonicalized with symlinks resolved.
func Resolve(explicit string, workspacePaths []string) (string, error) {
	if explicit != "" {
		root, err := canonicalDir(explicit)
		if err != nil {
			return "", fmt.Errorf("project root %s: %w", explicit, err)
		}
		return root, nil
	}

	for _, p := range workspacePaths {
		if root, err := canonicalDir(p); err == nil {
			return root, nil
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	if top, ok := gitTopLevel(cwd); ok {
		if root, err := canonicalDir(top); err == nil {
			return root, nil
		}
	}

	if pwd := os.Getenv("PWD"); pwd != "" {
		if root, err := canonicalDir(pwd); err == nil {
			return root, nil
		}
	}

	root, err := canonicalDir(cwd)
	if err != nil {
		return "", fmt.Errorf("working directory: %w", err)
	}
	return root, nil
}

// Describe builds the non-git part of the project context for a root.
func Describe(root string) Context {
	raw := filepath.Base(root)
	ctx := Context{
		RootPath:    root,
		ProjectName: sanitize.Name(raw),
	}
	// Report the raw name only when sanitization altered it.
	if ctx.ProjectName != raw {
		ctx.RawName = raw
	}
	return ctx
}

// gitTopLevel walks up from dir looking for a .git entry. A plain file
// named .git (worktrees, submodules) counts as well.
func gitTopLevel(dir string) (string, bool) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func canonicalDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", resolved)
	}
	return resolved, nil
}
