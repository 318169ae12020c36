// Package gitutil provides small helpers for working inside a git checkout.
package gitutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kevin-mind/nopo/pkg/logger"
)

// FindRepoRoot walks up from dir looking for a .git entry and returns the
// containing directory. Pass "" to start from the working directory.
func FindRepoRoot(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}

	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	for {
		// .git is a directory in a normal checkout and a file in a worktree;
		// either marks the root.
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			logger.Debug("found repository root", map[string]any{"root": dir})
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not inside a git repository")
		}
		dir = parent
	}
}
