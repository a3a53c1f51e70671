package events

import (
	"encoding/json"
	"fmt"
	"os"
)

// Writer appends records to a per-provider NDJSON file. Each append is synced
// to disk before returning, so a crash mid-run leaves a truthful partial log.
type Writer struct {
	f    *os.File
	path string
}

// NewWriter opens (truncating) the event stream for a fresh run.
func NewWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("open event stream %s: %w", path, err)
	}
	return &Writer{f: f, path: path}, nil
}

// Append writes one record as a JSON line and syncs it durably.
func (w *Writer) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal event record: %w", err)
	}
	data = append(data, '\n')

	if _, err := w.f.Write(data); err != nil {
		return fmt.Errorf("append event record: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("sync event stream: %w", err)
	}
	return nil
}

// Path returns the stream's file path.
func (w *Writer) Path() string {
	return w.path
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	return w.f.Close()
}
