package backup

import (
	"sort"

	"github.com/nordvik/garminbackup/internal/core/domain"
)

// Plan returns the activities that still need backing up: every activity for
// which at least one of the requested formats has no canonical name in the
// accounted-for snapshot. An activity is excluded only when all requested
// formats are present — either as a file on disk or as a ledger entry.
//
// The result is ordered by start time (then ID) so successive runs process
// the backlog deterministically.
func Plan(activities []domain.Activity, snapshot map[string]struct{}, formats []domain.Format) []domain.Activity {
	var missing []domain.Activity
	for _, a := range activities {
		for _, f := range formats {
			if _, ok := snapshot[domain.ExportFilename(a, f)]; !ok {
				missing = append(missing, a)
				break
			}
		}
	}
	sort.Slice(missing, func(i, j int) bool {
		if !missing[i].Start.Equal(missing[j].Start) {
			return missing[i].Start.Before(missing[j].Start)
		}
		return missing[i].ID < missing[j].ID
	})
	return missing
}
