// Package sync implements the synchronization core: reconciliation of
// remote listings against the local replica, cursor-based pagination,
// live-photo pair resolution, favorite-set synchronization, and the
// per-scope coordinator that serializes sync passes.
package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/mediasync/internal/logger"
	"github.com/marmos91/mediasync/pkg/media"
	"github.com/marmos91/mediasync/pkg/store/record"
)

// ErrReconciliationAborted signals that the reconciliation transaction
// failed: no partial state was applied and the returned change sets must
// be discarded by the caller.
var ErrReconciliationAborted = errors.New("reconciliation aborted")

// Changes holds the outcome of one reconciliation pass, for UI-level
// diffing — the UI applies these sets instead of re-scanning the store.
//
// The video half of a live photo pair never appears in Added or Deleted:
// it is stored (or removed) like any record, but the UI must not animate
// it as a standalone item.
type Changes struct {
	Added   []media.MediaRecord
	Updated []media.MediaRecord
	Deleted []media.MediaRecord
}

// Empty reports whether the pass changed nothing.
func (c *Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Deleted) == 0
}

// Reconciler diffs remote listings against the local replica and applies
// the result to the record store in one transaction per pass.
type Reconciler struct {
	store record.Store
}

// NewReconciler creates a reconciler writing through the given store.
func NewReconciler(store record.Store) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile computes added/updated/deleted between a freshly fetched
// remote listing and the current local replica for the same scope, and
// applies all three sets to the store in a single transaction (deletes
// first, then upserts, to avoid transient duplicate-id states).
//
// Set semantics (by record id):
//   - deleted: local records absent from the remote listing, except
//     pending ones, which exist ahead of remote confirmation and are
//     kept until a listing confirms them
//   - updated: records present on both sides whose local status is
//     normal and whose tracked fields differ (see
//     media.TrackedFieldsDiffer); the remote version overwrites local
//   - added: remote records absent locally; the video half of a live
//     photo pair is stored but excluded from the reported set
//
// The diff is a single O(n) pass over id-keyed maps.
//
// On transaction failure nothing is applied: the error wraps
// ErrReconciliationAborted and the returned Changes is nil.
func (r *Reconciler) Reconcile(ctx context.Context, scope media.Scope, remoteRecords, localRecords []media.MediaRecord) (*Changes, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	remoteByID := make(map[media.ID]*media.MediaRecord, len(remoteRecords))
	for i := range remoteRecords {
		remoteByID[remoteRecords[i].ID] = &remoteRecords[i]
	}
	localByID := make(map[media.ID]*media.MediaRecord, len(localRecords))
	for i := range localRecords {
		localByID[localRecords[i].ID] = &localRecords[i]
	}

	changes := &Changes{}
	var deleteIDs []media.ID
	var upserts []media.MediaRecord

	for i := range localRecords {
		local := &localRecords[i]
		if _, ok := remoteByID[local.ID]; ok {
			continue
		}
		// Pending records exist locally ahead of remote confirmation, so
		// the listing omits them by construction. Absence is not deletion.
		if local.Status != media.StatusNormal {
			continue
		}
		deleteIDs = append(deleteIDs, local.ID)
		// Paired live videos are removed but not reported, mirroring the
		// added-set suppression: the UI never showed them as items.
		if !local.IsLivePhotoVideo() {
			changes.Deleted = append(changes.Deleted, *local)
		}
	}

	for i := range remoteRecords {
		rec := &remoteRecords[i]
		local, exists := localByID[rec.ID]

		if !exists {
			upserts = append(upserts, *rec)
			if !rec.IsLivePhotoVideo() {
				changes.Added = append(changes.Added, *rec)
			}
			continue
		}

		// Pending records were created locally ahead of remote
		// confirmation; a listing must not clobber them.
		if local.Status != media.StatusNormal {
			continue
		}
		if media.TrackedFieldsDiffer(local, rec) {
			upserts = append(upserts, *rec)
			changes.Updated = append(changes.Updated, *rec)
		}
	}

	if len(deleteIDs) == 0 && len(upserts) == 0 {
		return changes, nil
	}

	if err := r.store.ApplyChanges(ctx, scope.Account, deleteIDs, upserts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReconciliationAborted, err)
	}

	logger.Debug("reconciled scope %s%s: %d added, %d updated, %d deleted",
		scope.Account, scope.RootPath, len(changes.Added), len(changes.Updated), len(changes.Deleted))

	return changes, nil
}
