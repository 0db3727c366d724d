package backup

import (
	"fmt"
	"os"
	"path/filepath"
)

// Directory is a handle to one backup directory: a flat namespace of
// exported activity files plus the not-found ledger. A file with the
// canonical name for an (activity, format) pair existing here is conclusive
// proof that the pair has already been retrieved. Files only ever accumulate;
// nothing is deleted.
type Directory struct {
	path   string
	ledger *Ledger
}

// OpenDirectory opens a backup directory, creating it if necessary.
func OpenDirectory(path string) (*Directory, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &Directory{path: path, ledger: OpenLedger(path)}, nil
}

// Path returns the directory's location on disk.
func (d *Directory) Path() string { return d.path }

// Ledger returns the directory's not-found ledger.
func (d *Directory) Ledger() *Ledger { return d.ledger }

// Snapshot returns the set of names already accounted for: the union of the
// directory's file names and the ledger's recorded names. Both mean the same
// thing for reconciliation purposes — do not fetch this name again.
//
// The snapshot must be taken before any writes of the current run begin, so
// files created by this run are never mistaken for pre-existing ones.
func (d *Directory) Snapshot() (map[string]struct{}, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup directory: %w", err)
	}
	names, err := d.ledger.Names()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		names[e.Name()] = struct{}{}
	}
	return names, nil
}

// WriteFile stores an exported representation under its canonical name. A
// write failure is fatal for the run: it is never retried or suppressed.
func (d *Directory) WriteFile(name string, data []byte) error {
	dest := filepath.Join(d.path, name)
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
