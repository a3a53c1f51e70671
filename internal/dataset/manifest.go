package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ManifestName is the manifest's file name under the dataset root.
const ManifestName = "manifest.json"

// Manifest is the authoritative description of a generated dataset. It is
// created once by the generator and read-only afterward.
type Manifest struct {
	Seed        int64       `json:"seed"`
	TotalSizeGB float64     `json:"total_size_gb"`
	FileCount   int         `json:"file_count"`
	Distribution string     `json:"distribution"`
	Files       []FileEntry `json:"files"`
}

// FileEntry describes one generated file.
type FileEntry struct {
	// Path is relative to the dataset root, POSIX-style.
	Path string `json:"path"`

	// Size in bytes, always positive.
	Size int64 `json:"size"`

	// Checksum is the SHA-256 content hash, hex-encoded.
	Checksum string `json:"checksum"`
}

// TotalBytes returns the aggregate size of all listed files.
func (m *Manifest) TotalBytes() int64 {
	var total int64
	for _, f := range m.Files {
		total += f.Size
	}
	return total
}

// ManifestPath returns the manifest location for a dataset root.
func ManifestPath(root string) string {
	return filepath.Join(root, ManifestName)
}

// LoadManifest reads a manifest from the dataset root.
func LoadManifest(root string) (*Manifest, error) {
	data, err := os.ReadFile(ManifestPath(root))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// WriteManifest persists a manifest atomically (temp file + rename).
func WriteManifest(root string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	path := ManifestPath(root)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp manifest: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename manifest: %w", err)
	}
	return nil
}
