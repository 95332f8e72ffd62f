package places

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Ledger is the JSON list of place names fetched successfully across
// runs. It is append-only: Append merges new names into the existing
// list instead of overwriting it.
type Ledger struct {
	path string
}

// NewLedger creates a ledger stored at path.
func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

// Load reads the ledger. A missing file is an empty ledger.
func (l *Ledger) Load() ([]string, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("parse ledger: %w", err)
	}
	return names, nil
}

// Append merges names into the ledger, preserving existing order and
// skipping duplicates, then writes the result atomically.
func (l *Ledger) Append(names []string) error {
	existing, err := l.Load()
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(existing))
	for _, name := range existing {
		seen[name] = true
	}
	merged := existing
	for _, name := range names {
		if !seen[name] {
			merged = append(merged, name)
			seen[name] = true
		}
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		return fmt.Errorf("rename ledger: %w", err)
	}
	return nil
}
