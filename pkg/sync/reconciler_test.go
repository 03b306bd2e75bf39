package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mediasync/pkg/media"
	"github.com/marmos91/mediasync/pkg/store/record"
	"github.com/marmos91/mediasync/pkg/store/record/memory"
)

func ids(recs []media.MediaRecord) []media.ID {
	out := make([]media.ID, len(recs))
	for i := range recs {
		out[i] = recs[i].ID
	}
	return out
}

// TestReconcilePartition verifies the three-way partition of one pass:
// unchanged, updated, added, deleted, pending-preserved.
//
// Remote listing: A (unchanged), B (new etag), D (new record).
// Local replica:  A, B, C (gone remotely), P (pending, new remote etag).
func TestReconcilePartition(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryRecordStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	localA := testRecord("A", "a.jpg", base)
	localB := testRecord("B", "b.jpg", base)
	localC := testRecord("C", "c.jpg", base)
	localP := testRecord("P", "p.jpg", base)
	localP.Status = media.StatusPending

	require.NoError(t, store.UpsertMany(ctx, []media.MediaRecord{localA, localB, localC, localP}))

	remoteA := localA
	remoteB := localB
	remoteB.ETag = "v2"
	remoteD := testRecord("D", "d.jpg", base.Add(time.Hour))
	remoteP := localP
	remoteP.Status = media.StatusNormal
	remoteP.ETag = "v9"

	local, err := store.GetAll(ctx, record.Query{Account: testAccount})
	require.NoError(t, err)

	changes, err := NewReconciler(store).Reconcile(ctx, testScope,
		[]media.MediaRecord{remoteA, remoteB, remoteD, remoteP}, local)
	require.NoError(t, err)

	assert.Equal(t, []media.ID{"D"}, ids(changes.Added))
	assert.Equal(t, []media.ID{"B"}, ids(changes.Updated))
	assert.Equal(t, []media.ID{"C"}, ids(changes.Deleted))

	// Store state after the pass.
	_, err = store.Get(ctx, testAccount, "C")
	assert.True(t, media.IsNotFound(err))

	gotB, err := store.Get(ctx, testAccount, "B")
	require.NoError(t, err)
	assert.Equal(t, "v2", gotB.ETag)

	// The pending record was not clobbered by the remote version.
	gotP, err := store.Get(ctx, testAccount, "P")
	require.NoError(t, err)
	assert.Equal(t, media.StatusPending, gotP.Status)
	assert.Equal(t, "v1", gotP.ETag)

	_, err = store.Get(ctx, testAccount, "D")
	assert.NoError(t, err)
}

// TestReconcilePendingSurvivesAbsence verifies a pending record missing
// from the listing is kept: pending records exist ahead of remote
// confirmation, so the listing omits them by construction.
func TestReconcilePendingSurvivesAbsence(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryRecordStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	localA := testRecord("A", "a.jpg", base)
	pending := testRecord("P", "p.jpg", base)
	pending.Status = media.StatusPending

	require.NoError(t, store.UpsertMany(ctx, []media.MediaRecord{localA, pending}))

	local, err := store.GetAll(ctx, record.Query{Account: testAccount})
	require.NoError(t, err)

	changes, err := NewReconciler(store).Reconcile(ctx, testScope,
		[]media.MediaRecord{localA}, local)
	require.NoError(t, err)
	assert.Empty(t, changes.Deleted)

	gotP, err := store.Get(ctx, testAccount, "P")
	require.NoError(t, err)
	assert.Equal(t, media.StatusPending, gotP.Status)
}

// TestReconcileNoChanges verifies an identical listing yields an empty,
// non-nil change set and no store writes.
func TestReconcileNoChanges(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryRecordStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := testRecord("A", "a.jpg", base)
	require.NoError(t, store.Upsert(ctx, rec))

	// Writes are failing, which proves an unchanged pass never issues one.
	store.FailWrites(true)

	changes, err := NewReconciler(store).Reconcile(ctx, testScope,
		[]media.MediaRecord{rec}, []media.MediaRecord{rec})
	require.NoError(t, err)
	assert.True(t, changes.Empty())
}

// TestReconcileUntrackedFieldChange verifies that a change to an
// untracked field does not produce an update.
func TestReconcileUntrackedFieldChange(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryRecordStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	local := testRecord("A", "a.jpg", base)
	remote := local
	remote.SizeBytes = 12345

	changes, err := NewReconciler(store).Reconcile(ctx, testScope,
		[]media.MediaRecord{remote}, []media.MediaRecord{local})
	require.NoError(t, err)
	assert.True(t, changes.Empty())
}

// TestReconcileLiveVideoSuppression verifies the video half of a live pair
// is stored and removed like any record but never reported to the UI.
func TestReconcileLiveVideoSuppression(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryRecordStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	image := testRecord("img", "live.jpg", base)
	image.LivePhotoPeerID = "vid"
	video := testRecord("vid", "live.mov", base)
	video.Kind = media.KindVideo
	video.LivePhotoPeerID = "img"

	// Arrival: both records stored, only the image reported as added.
	changes, err := NewReconciler(store).Reconcile(ctx, testScope,
		[]media.MediaRecord{image, video}, nil)
	require.NoError(t, err)
	assert.Equal(t, []media.ID{"img"}, ids(changes.Added))

	_, err = store.Get(ctx, testAccount, "vid")
	assert.NoError(t, err)

	// Departure: both removed, only the image reported as deleted.
	local, err := store.GetAll(ctx, record.Query{Account: testAccount})
	require.NoError(t, err)

	changes, err = NewReconciler(store).Reconcile(ctx, testScope, nil, local)
	require.NoError(t, err)
	assert.Equal(t, []media.ID{"img"}, ids(changes.Deleted))

	_, err = store.Get(ctx, testAccount, "vid")
	assert.True(t, media.IsNotFound(err))
}

// TestReconcileAborted verifies a failed transaction reports
// ErrReconciliationAborted, returns no change sets, and leaves prior
// state intact.
func TestReconcileAborted(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryRecordStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	existing := testRecord("A", "a.jpg", base)
	require.NoError(t, store.Upsert(ctx, existing))

	store.FailWrites(true)

	changes, err := NewReconciler(store).Reconcile(ctx, testScope,
		[]media.MediaRecord{testRecord("B", "b.jpg", base)},
		[]media.MediaRecord{existing})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReconciliationAborted)
	assert.Nil(t, changes)

	store.FailWrites(false)
	got, err := store.GetAll(ctx, record.Query{Account: testAccount})
	require.NoError(t, err)
	assert.Equal(t, []media.ID{"A"}, ids(got))
}

// TestReconcileCancelled verifies context cancellation short-circuits the
// pass before any diffing.
func TestReconcileCancelled(t *testing.T) {
	store := memory.NewMemoryRecordStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReconciler(store).Reconcile(ctx, testScope, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
