package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureDirIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c")
	if err := EnsureDir(path); err != nil {
		t.Fatalf("EnsureDir() = %v", err)
	}
	if err := EnsureDir(path); err != nil {
		t.Fatalf("EnsureDir() second call = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory at %s", path)
	}
}

func TestPurgeDirKeepsRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureDir(filepath.Join(dir, "sub", "deep")); err != nil {
		t.Fatal(err)
	}

	if err := PurgeDir(dir); err != nil {
		t.Fatalf("PurgeDir() = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("purged directory should still exist: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("directory not empty after purge: %v", entries)
	}
}

func TestPurgeDirMissingIsNoop(t *testing.T) {
	if err := PurgeDir(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Fatalf("PurgeDir(missing) = %v, want nil", err)
	}
}
