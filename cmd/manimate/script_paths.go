package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"manimate/internal/config"
)

// resolveScriptPath accepts a bare name (looked up in the work directory) or
// a path to an existing file.
func resolveScriptPath(workDir, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", fmt.Errorf("script name is required")
	}
	if !strings.ContainsAny(arg, `/\`) {
		candidate := filepath.Join(workDir, arg)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	path, err := config.ExpandPath(arg)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("inspect script %q: %w", arg, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	return path, nil
}
