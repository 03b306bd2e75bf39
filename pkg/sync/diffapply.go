package sync

import (
	"github.com/marmos91/mediasync/pkg/media"
)

// ApplyDiff computes the new ordered id list for a UI adapter from the
// currently displayed records and a reconciliation outcome.
//
// The core never depends on a UI snapshot type: an adapter layer feeds
// the returned ordering into whatever diffable data source drives the
// actual view. The function is pure — same inputs, same output.
//
// Deleted and updated records are matched by id; surviving records,
// updated versions, and additions are merged back into the canonical
// listing order (ModifiedAt desc, FileName desc).
func ApplyDiff(current []media.MediaRecord, changes *Changes) []media.ID {
	if changes == nil {
		changes = &Changes{}
	}

	deleted := make(map[media.ID]struct{}, len(changes.Deleted))
	for i := range changes.Deleted {
		deleted[changes.Deleted[i].ID] = struct{}{}
	}
	updated := make(map[media.ID]*media.MediaRecord, len(changes.Updated))
	for i := range changes.Updated {
		updated[changes.Updated[i].ID] = &changes.Updated[i]
	}

	merged := make([]media.MediaRecord, 0, len(current)+len(changes.Added))
	seen := make(map[media.ID]struct{}, len(current))

	for i := range current {
		rec := current[i]
		if _, gone := deleted[rec.ID]; gone {
			continue
		}
		if fresh, ok := updated[rec.ID]; ok {
			rec = *fresh
		}
		merged = append(merged, rec)
		seen[rec.ID] = struct{}{}
	}

	for i := range changes.Added {
		if _, dup := seen[changes.Added[i].ID]; dup {
			continue
		}
		merged = append(merged, changes.Added[i])
	}

	media.SortCanonical(merged)

	ids := make([]media.ID, len(merged))
	for i := range merged {
		ids[i] = merged[i].ID
	}
	return ids
}
