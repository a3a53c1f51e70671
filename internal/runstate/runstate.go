// Package runstate persists the outcome of the most recent benchmark run per
// provider, so operators can inspect what last ran without parsing event
// streams.
package runstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNoState is returned when no run state exists for a provider.
var ErrNoState = errors.New("no run state found")

// State records one provider's most recent run.
type State struct {
	Provider    string    `json:"provider"`
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Completed   bool      `json:"completed"`
	Error       string    `json:"error,omitempty"`
	EventStream string    `json:"event_stream"`
}

// statePath returns the state file location for a provider under dir.
func statePath(dir, provider string) string {
	return filepath.Join(dir, fmt.Sprintf("runstate_%s.json", provider))
}

// Load reads a provider's last run state from dir.
func Load(dir, provider string) (*State, error) {
	data, err := os.ReadFile(statePath(dir, provider))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("read run state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse run state: %w", err)
	}
	return &st, nil
}

// Save persists a run state atomically (temp file + rename).
func Save(dir string, st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}

	path := statePath(dir, st.Provider)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write run state temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename run state file: %w", err)
	}
	return nil
}
