// Package pathutil checks paths the generator writes to or reads back from
// an output directory.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a path escapes its output directory.
var ErrOutsideRoot = errors.New("path is outside the output directory")

// RedactPath reduces a full path to .../<parent>/<basename> for log lines
// and error messages, e.g. "/data/runs/datapoint-3" becomes ".../runs/datapoint-3".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	base := filepath.Base(cleaned)
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// OutputDir cleans an output directory and makes it absolute. The filesystem
// root and the home directory itself are refused, since every run creates
// datapoint directories directly below it.
func OutputDir(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("output directory is empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return "", errors.New("output directory contains null byte")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolving output directory: %w", err)
	}
	if filepath.Dir(abs) == abs {
		return "", fmt.Errorf("refusing to use filesystem root %q as output directory", abs)
	}
	if home, err := os.UserHomeDir(); err == nil && filepath.Clean(home) == abs {
		return "", errors.New("refusing to use the home directory itself as output directory")
	}
	return abs, nil
}

// Within checks that path lies inside root once symlinks are resolved.
// Neither path needs to exist yet.
func Within(path, root string) error {
	if path == "" {
		return errors.New("path is empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return errors.New("path contains null byte")
	}

	resolvedPath, err := resolve(path)
	if err != nil {
		return err
	}
	resolvedRoot, err := resolve(root)
	if err != nil {
		return err
	}

	if !isSubpath(resolvedPath, resolvedRoot) {
		return fmt.Errorf("%s: %w", RedactPath(path), ErrOutsideRoot)
	}
	return nil
}

// resolve makes path absolute and resolves symlinks on its deepest
// existing ancestor.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", RedactPath(path), err)
	}
	return resolveExisting(abs)
}

func resolveExisting(path string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(path)
	if parent == path {
		return "", fmt.Errorf("cannot resolve path: %s", RedactPath(path))
	}
	resolvedParent, err := resolveExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(path)), nil
}

// isSubpath reports whether path is base or below it. "/tmp/foo" is not
// below "/tmp/fo".
func isSubpath(path, base string) bool {
	if path == base {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(base, string(os.PathSeparator))+string(os.PathSeparator))
}
