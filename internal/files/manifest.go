package files

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunManifest records one completed pipeline run. The processor compares the
// stored fingerprint against a fresh load and skips re-deriving a source
// whose bytes have not changed.
type RunManifest struct {
	RunID        string    `json:"run_id"`
	SourcePath   string    `json:"source_path"`
	SourceKind   string    `json:"source_kind"`
	Fingerprint  string    `json:"fingerprint"`
	Format       string    `json:"format"`
	Rows         int       `json:"rows"`
	ExcludedRows int       `json:"excluded_rows"`
	Version      string    `json:"version"`
	CompletedAt  time.Time `json:"completed_at"`
	Outputs      []string  `json:"outputs"`
}

// UpToDate reports whether this manifest covers the same source bytes in
// the same derived table format. Safe on a nil manifest. Manifests written
// before format stamping carry an empty Format and never match, which
// forces one re-derivation.
func (m *RunManifest) UpToDate(fingerprint, format string) bool {
	return m != nil && m.Fingerprint != "" &&
		m.Fingerprint == fingerprint && m.Format == format
}

// ReadManifest loads a run manifest. A missing file is not an error; both
// returns are nil.
func ReadManifest(path string) (*RunManifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m RunManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// WriteManifest persists a run manifest, creating parent directories.
func WriteManifest(path string, m *RunManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	return os.WriteFile(path, append(data, '\n'), 0644)
}
