package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mediasync/pkg/media"
	"github.com/marmos91/mediasync/pkg/store/record"
)

const testAccount = media.Account("acct")

func testRecord(id, name string, modified time.Time) media.MediaRecord {
	return media.MediaRecord{
		ID:         media.ID(id),
		Account:    testAccount,
		ServerPath: "/photos/" + name,
		FileName:   name,
		ETag:       "v1",
		ModifiedAt: modified,
		Kind:       media.KindImage,
	}
}

// TestGetUpsert verifies basic insert, lookup, and last-writer-wins
// replacement.
func TestGetUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := testRecord("r1", "a.jpg", base)

	require.NoError(t, store.Upsert(ctx, rec))

	got, err := store.Get(ctx, testAccount, "r1")
	require.NoError(t, err)
	assert.Equal(t, rec, *got)

	// Same id replaces the prior record wholesale.
	rec.ETag = "v2"
	rec.FileName = "renamed.jpg"
	require.NoError(t, store.Upsert(ctx, rec))

	got, err = store.Get(ctx, testAccount, "r1")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.ETag)
	assert.Equal(t, "renamed.jpg", got.FileName)
}

// TestUpdateRecord verifies the atomic read-modify-write: fn sees the
// current version and only its changes land, other fields untouched.
func TestUpdateRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := testRecord("r1", "a.jpg", base)
	rec.ETag = "v2"
	require.NoError(t, store.Upsert(ctx, rec))

	err := store.UpdateRecord(ctx, testAccount, "r1", func(r *media.MediaRecord) error {
		assert.Equal(t, "v2", r.ETag)
		r.IsFavorite = true
		return nil
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, testAccount, "r1")
	require.NoError(t, err)
	assert.True(t, got.IsFavorite)
	assert.Equal(t, "v2", got.ETag)
}

// TestUpdateRecordNotFound verifies a missing record surfaces ErrNotFound.
func TestUpdateRecordNotFound(t *testing.T) {
	store := NewMemoryRecordStore()

	err := store.UpdateRecord(context.Background(), testAccount, "missing", func(r *media.MediaRecord) error {
		t.Fatal("fn must not run for a missing record")
		return nil
	})
	require.Error(t, err)
	assert.True(t, media.IsNotFound(err))
}

// TestUpdateRecordFnErrorAborts verifies an error from fn writes nothing.
func TestUpdateRecordFnErrorAborts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(ctx, testRecord("r1", "a.jpg", base)))

	boom := errors.New("rejected")
	err := store.UpdateRecord(ctx, testAccount, "r1", func(r *media.MediaRecord) error {
		r.IsFavorite = true
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Get(ctx, testAccount, "r1")
	require.NoError(t, err)
	assert.False(t, got.IsFavorite)
}

// TestUpdateRecordNoLostUpdates verifies concurrent updates serialize:
// every append to the note survives, which a get-then-upsert cannot
// guarantee.
func TestUpdateRecordNoLostUpdates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(ctx, testRecord("r1", "a.jpg", base)))

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.UpdateRecord(ctx, testAccount, "r1", func(r *media.MediaRecord) error {
				r.Note += "x"
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, testAccount, "r1")
	require.NoError(t, err)
	assert.Len(t, got.Note, writers)
}

// TestGetNotFound verifies the typed not-found error.
func TestGetNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()

	_, err := store.Get(ctx, testAccount, "missing")
	require.Error(t, err)
	assert.True(t, media.IsNotFound(err))
}

// TestGetAllFiltering verifies query predicates over a mixed record set.
func TestGetAllFiltering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	image := testRecord("img", "a.jpg", base)
	video := testRecord("vid", "b.mov", base)
	video.Kind = media.KindVideo
	pairedVideo := testRecord("pvid", "c.mov", base)
	pairedVideo.Kind = media.KindVideo
	pairedVideo.LivePhotoPeerID = "img"
	favorite := testRecord("fav", "d.jpg", base)
	favorite.IsFavorite = true
	dir := testRecord("dir", "albums", base)
	dir.IsDirectory = true
	elsewhere := testRecord("doc", "e.pdf", base)
	elsewhere.ServerPath = "/documents/e.pdf"
	old := testRecord("old", "f.jpg", base.Add(-48*time.Hour))

	require.NoError(t, store.UpsertMany(ctx, []media.MediaRecord{
		image, video, pairedVideo, favorite, dir, elsewhere, old,
	}))

	tests := []struct {
		name    string
		query   record.Query
		wantIDs []media.ID
	}{
		{
			name:    "all for account",
			query:   record.Query{Account: testAccount},
			wantIDs: []media.ID{"img", "vid", "pvid", "fav", "dir", "doc", "old"},
		},
		{
			name:    "path prefix",
			query:   record.Query{Account: testAccount, PathPrefix: "/documents"},
			wantIDs: []media.ID{"doc"},
		},
		{
			name:    "time window",
			query:   record.Query{Account: testAccount, From: base.Add(-time.Hour)},
			wantIDs: []media.ID{"img", "vid", "pvid", "fav", "dir", "doc"},
		},
		{
			name:    "kind filter",
			query:   record.Query{Account: testAccount, Kinds: []media.ClassKind{media.KindVideo}},
			wantIDs: []media.ID{"vid", "pvid"},
		},
		{
			name:    "favorites only",
			query:   record.Query{Account: testAccount, FavoritesOnly: true},
			wantIDs: []media.ID{"fav"},
		},
		{
			name:    "display query hides paired videos and directories",
			query:   record.Query{Account: testAccount, ExcludeLiveVideos: true, ExcludeDirectories: true},
			wantIDs: []media.ID{"img", "vid", "fav", "doc", "old"},
		},
		{
			name:    "other account sees nothing",
			query:   record.Query{Account: "other"},
			wantIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.GetAll(ctx, tt.query)
			require.NoError(t, err)

			var ids []media.ID
			for i := range got {
				ids = append(ids, got[i].ID)
			}
			assert.ElementsMatch(t, tt.wantIDs, ids)
		})
	}
}

// TestGetAllRequiresAccount verifies that an account-less query is rejected.
func TestGetAllRequiresAccount(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()

	_, err := store.GetAll(ctx, record.Query{})
	require.Error(t, err)

	var storeErr *media.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, media.ErrInvalidArgument, storeErr.Code)
}

// TestGetSorted verifies the canonical ordering of sorted reads.
func TestGetSorted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.UpsertMany(ctx, []media.MediaRecord{
		testRecord("old", "old.jpg", base.Add(-time.Hour)),
		testRecord("tieA", "apple.jpg", base),
		testRecord("tieZ", "zebra.jpg", base),
		testRecord("new", "new.jpg", base.Add(time.Hour)),
	}))

	got, err := store.GetSorted(ctx, record.Query{Account: testAccount})
	require.NoError(t, err)

	ids := make([]media.ID, len(got))
	for i := range got {
		ids[i] = got[i].ID
	}
	assert.Equal(t, []media.ID{"new", "tieZ", "tieA", "old"}, ids)
}

// TestDelete verifies removal and the missing-record no-op.
func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Upsert(ctx, testRecord("r1", "a.jpg", base)))
	require.NoError(t, store.Delete(ctx, testAccount, "r1"))

	_, err := store.Get(ctx, testAccount, "r1")
	assert.True(t, media.IsNotFound(err))

	// Deleting again is a no-op, not an error.
	assert.NoError(t, store.Delete(ctx, testAccount, "r1"))
}

// TestDeleteWhere verifies predicate-based deletion and its count.
func TestDeleteWhere(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	video := testRecord("vid", "b.mov", base)
	video.Kind = media.KindVideo

	require.NoError(t, store.UpsertMany(ctx, []media.MediaRecord{
		testRecord("img1", "a.jpg", base),
		testRecord("img2", "c.jpg", base),
		video,
	}))

	n, err := store.DeleteWhere(ctx, record.Query{Account: testAccount, Kinds: []media.ClassKind{media.KindImage}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	remaining, err := store.GetAll(ctx, record.Query{Account: testAccount})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, media.ID("vid"), remaining[0].ID)
}

// TestApplyChanges verifies the deletes-then-upserts batch primitive.
func TestApplyChanges(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.UpsertMany(ctx, []media.MediaRecord{
		testRecord("keep", "a.jpg", base),
		testRecord("gone", "b.jpg", base),
	}))

	updated := testRecord("keep", "a.jpg", base)
	updated.ETag = "v2"
	added := testRecord("new", "c.jpg", base)

	err := store.ApplyChanges(ctx, testAccount,
		[]media.ID{"gone"},
		[]media.MediaRecord{updated, added})
	require.NoError(t, err)

	_, err = store.Get(ctx, testAccount, "gone")
	assert.True(t, media.IsNotFound(err))

	got, err := store.Get(ctx, testAccount, "keep")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.ETag)

	_, err = store.Get(ctx, testAccount, "new")
	assert.NoError(t, err)
}

// TestApplyChangesAtomicity verifies that a failed batch leaves prior
// state fully intact.
func TestApplyChangesAtomicity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.UpsertMany(ctx, []media.MediaRecord{
		testRecord("r1", "a.jpg", base),
		testRecord("r2", "b.jpg", base),
	}))

	store.FailWrites(true)
	err := store.ApplyChanges(ctx, testAccount,
		[]media.ID{"r1"},
		[]media.MediaRecord{testRecord("r3", "c.jpg", base)})
	require.Error(t, err)

	var storeErr *media.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, media.ErrWriteFailed, storeErr.Code)

	store.FailWrites(false)
	got, err := store.GetAll(ctx, record.Query{Account: testAccount})
	require.NoError(t, err)

	var ids []media.ID
	for i := range got {
		ids = append(ids, got[i].ID)
	}
	assert.ElementsMatch(t, []media.ID{"r1", "r2"}, ids)
}

// TestApplyChangesAccountMismatch verifies cross-account upserts are
// rejected before anything is applied.
func TestApplyChangesAccountMismatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	foreign := testRecord("r1", "a.jpg", base)
	foreign.Account = "other"

	err := store.ApplyChanges(ctx, testAccount, nil, []media.MediaRecord{foreign})
	require.Error(t, err)

	var storeErr *media.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, media.ErrInvalidArgument, storeErr.Code)
}

// TestAccountIsolation verifies records from different accounts never mix.
func TestAccountIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mine := testRecord("r1", "a.jpg", base)
	theirs := testRecord("r1", "b.jpg", base)
	theirs.Account = "other"

	require.NoError(t, store.Upsert(ctx, mine))
	require.NoError(t, store.Upsert(ctx, theirs))

	got, err := store.Get(ctx, testAccount, "r1")
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", got.FileName)

	got, err = store.Get(ctx, "other", "r1")
	require.NoError(t, err)
	assert.Equal(t, "b.jpg", got.FileName)
}
