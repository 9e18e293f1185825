package reconciler

import "blsdata/internal/models"

// Action is what a sync run does with one listed file.
type Action int

// Actions.
const (
	ActionSkip Action = iota
	ActionUpload
)

func (a Action) String() string {
	if a == ActionUpload {
		return "upload"
	}

	return "skip"
}

// Decision pairs a listed file with its action.
type Decision struct {
	Entry  models.ListingEntry
	Action Action
}

// Plan decides, per listed file, whether it has to be downloaded again. A
// file is stale when the manifest has no record for it or the recorded
// timestamp differs; two unknown timestamps compare equal.
func Plan(old models.Manifest, entries []models.ListingEntry) []Decision {
	known := old.Index()
	decisions := make([]Decision, 0, len(entries))

	for _, entry := range entries {
		action := ActionSkip

		rec, ok := known[entry.FileName]
		if !ok || !sameTimestamp(rec.LastUpdatedTimestamp, entry.Timestamp) {
			action = ActionUpload
		}

		decisions = append(decisions, Decision{Entry: entry, Action: action})
	}

	return decisions
}

// Removed returns the names in old that are missing from current, in old's order.
func Removed(old, current models.Manifest) []string {
	var removed []string

	seen := make(map[string]bool, len(old))
	kept := current.Index()

	for _, rec := range old {
		if _, ok := kept[rec.FileName]; ok || seen[rec.FileName] {
			continue
		}

		seen[rec.FileName] = true
		removed = append(removed, rec.FileName)
	}

	return removed
}

func sameTimestamp(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return *a == *b
}
