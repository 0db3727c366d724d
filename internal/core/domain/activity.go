package domain

import (
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Activity identifies a single recorded activity on the remote account.
// Identity is the (ID, Start) pair: two activities are equal only if both
// match exactly. Values are immutable once obtained from the inventory.
type Activity struct {
	ID    int64
	Start time.Time
}

// ExportFilename returns the canonical file name for an activity exported
// to a given format: "<RFC3339 start>_<id><suffix>".
// For example: "2015-02-17T05:45:00Z_123456789.tcx".
//
// The same name is used both when writing an exported file and when checking
// whether one already exists, so the mapping must stay deterministic.
func ExportFilename(a Activity, f Format) string {
	return exportFilename(a, f, runtime.GOOS == "windows")
}

// exportFilename builds the canonical name, substituting colons in the
// timestamp when the target file system forbids them. The substitution has
// to be identical on the write and existence-check paths or incremental
// runs re-download activities that are already on disk.
func exportFilename(a Activity, f Format, replaceColons bool) string {
	var b strings.Builder
	b.WriteString(a.Start.Format(time.RFC3339))
	b.WriteByte('_')
	b.WriteString(strconv.FormatInt(a.ID, 10))
	b.WriteString(f.Suffix())
	name := b.String()
	if replaceColons {
		name = strings.ReplaceAll(name, ":", "_")
	}
	return name
}
