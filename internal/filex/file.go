// Package filex holds small filesystem and path helpers shared by the
// storage engine.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir creates dir (and parents) if it does not exist yet.
func EnsureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return dir, nil
}

// NormalizeRelPath validates and canonicalizes a client-supplied file path.
// The result is slash-separated, relative, and free of "." / ".." elements,
// so it is safe to join under a client-scoped directory.
//
// Returns an empty string and false for paths that escape their root or are
// empty after cleaning.
func NormalizeRelPath(p string) (string, bool) {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "", false
	}
	cleaned := filepath.ToSlash(filepath.Clean(p))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return cleaned, true
}
