// Package keymap maps local dataset files to run-scoped object keys.
package keymap

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ObjectKey maps a local file path to its remote object key within a run.
// The key is runPrefix + "/" + the file's path relative to the dataset root,
// with forward slashes. Distinct local files map to distinct keys, and the
// mapping is stable across process restarts for a fixed runPrefix.
func ObjectKey(runPrefix, datasetRoot, localPath string) (string, error) {
	rel, err := filepath.Rel(datasetRoot, localPath)
	if err != nil {
		return "", fmt.Errorf("relativize %s: %w", localPath, err)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("path %s escapes dataset root %s", localPath, datasetRoot)
	}
	return runPrefix + "/" + rel, nil
}

// KeyForEntry maps a manifest-relative POSIX path directly to its object key.
func KeyForEntry(runPrefix, relPath string) string {
	return runPrefix + "/" + relPath
}
