package runstate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	st := &State{
		Provider:    "minio",
		RunID:       "run-20260829T120000Z-abcd1234",
		StartedAt:   time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
		FinishedAt:  time.Date(2026, 8, 29, 12, 5, 0, 0, time.UTC),
		Completed:   true,
		EventStream: filepath.Join(dir, "minio.ndjson"),
	}
	if err := Save(dir, st); err != nil {
		t.Fatalf("Save() = %v", err)
	}

	loaded, err := Load(dir, "minio")
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if loaded.RunID != st.RunID || !loaded.Completed || !loaded.StartedAt.Equal(st.StartedAt) {
		t.Errorf("loaded %+v, want %+v", loaded, st)
	}
}

func TestSaveOverwritesPreviousRun(t *testing.T) {
	dir := t.TempDir()

	if err := Save(dir, &State{Provider: "r2", RunID: "run-old", Completed: false, Error: "timeout"}); err != nil {
		t.Fatal(err)
	}
	if err := Save(dir, &State{Provider: "r2", RunID: "run-new", Completed: true}); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(dir, "r2")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.RunID != "run-new" || !loaded.Completed || loaded.Error != "" {
		t.Errorf("loaded %+v, want the newer run", loaded)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir(), "absent"); !errors.Is(err, ErrNoState) {
		t.Fatalf("Load() = %v, want ErrNoState", err)
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	if err := Save(dir, &State{Provider: "p"}); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "runstate_p.json" {
		t.Errorf("unexpected directory contents: %v", entries)
	}
}
