package backup

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LedgerFile is the name of the not-found ledger kept inside every backup
// directory. Each line is the file name an export would have produced, had
// the remote side had a representation for it. An entry is a strong
// indication of an activity-format that simply doesn't exist (for example a
// manually entered activity with no FIT source) and therefore must not be
// retried on the next backup run.
const LedgerFile = ".not_found"

// Ledger is the append-only record of confirmed-absent (activity, format)
// pairs for one backup directory. Appends are serialized so concurrent
// downloads never interleave or truncate each other's lines.
//
// The ledger is not deduplicated: repeated runs that confirm the same
// absence append another line. Reads have set-membership semantics, so the
// duplicates are wasteful but harmless.
type Ledger struct {
	path string

	mu sync.Mutex
}

// OpenLedger returns the ledger for a backup directory. The underlying file
// is created lazily on the first append.
func OpenLedger(dir string) *Ledger {
	return &Ledger{path: filepath.Join(dir, LedgerFile)}
}

// Names returns the set of file names recorded in the ledger. A missing
// ledger file yields an empty set.
func (l *Ledger) Names() (map[string]struct{}, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	names := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			names[name] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return names, nil
}

// Append records one confirmed-absent file name.
func (l *Ledger) Append(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger for append: %w", err)
	}
	if _, err := f.WriteString(name + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to append to ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}
	return nil
}
