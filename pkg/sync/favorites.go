package sync

import (
	"context"
	"fmt"

	"github.com/marmos91/mediasync/internal/logger"
	"github.com/marmos91/mediasync/pkg/media"
	"github.com/marmos91/mediasync/pkg/remote"
	"github.com/marmos91/mediasync/pkg/store/record"
)

// FavoriteSynchronizer reconciles the account's favorite set against the
// remote favorites listing, independently of the main media sync flow.
// Favorites listings are full and unpaginated and carry no time window.
type FavoriteSynchronizer struct {
	store  record.Store
	source remote.ListingSource
}

// NewFavoriteSynchronizer creates a favorite synchronizer.
func NewFavoriteSynchronizer(store record.Store, source remote.ListingSource) *FavoriteSynchronizer {
	return &FavoriteSynchronizer{store: store, source: source}
}

// SyncFavorites fetches the remote favorites listing and reconciles the
// store's favorite flags against it:
//
//  1. every listed record is upserted with IsFavorite set
//  2. every store record currently flagged favorite but absent from the
//     listing has its flag cleared
//
// Both phases run inside one store transaction, so there is no window
// where a record is transiently neither a new favorite nor an old one.
// Returns how many records were set and cleared.
func (f *FavoriteSynchronizer) SyncFavorites(ctx context.Context, account media.Account) (set, cleared int, err error) {
	remoteFavs, err := f.source.ListFavorites(ctx, account)
	if err != nil {
		return 0, 0, fmt.Errorf("favorites listing failed: %w", err)
	}

	current, err := f.store.GetAll(ctx, record.Query{Account: account, FavoritesOnly: true})
	if err != nil {
		return 0, 0, err
	}

	listed := make(map[media.ID]struct{}, len(remoteFavs))
	var upserts []media.MediaRecord

	for i := range remoteFavs {
		rec := remoteFavs[i]
		rec.IsFavorite = true
		listed[rec.ID] = struct{}{}
		upserts = append(upserts, rec)
	}
	set = len(upserts)

	for i := range current {
		if _, ok := listed[current[i].ID]; ok {
			continue
		}
		stale := current[i]
		stale.IsFavorite = false
		upserts = append(upserts, stale)
		cleared++
	}

	if len(upserts) == 0 {
		return 0, 0, nil
	}

	if err := f.store.ApplyChanges(ctx, account, nil, upserts); err != nil {
		return 0, 0, err
	}

	logger.Debug("favorites sync for %s: %d set, %d cleared", account, set, cleared)
	return set, cleared, nil
}

// ToggleFavorite flips a record's favorite state, remote first.
//
// The local flag changes only after the remote service confirms the
// toggle; any remote failure means no change was applied anywhere. The
// local write is a single atomic read-modify-write, so a reconciliation
// pass landing concurrently is never clobbered by a stale whole-record
// write-back: only the favorite flag changes.
func (f *FavoriteSynchronizer) ToggleFavorite(ctx context.Context, account media.Account, id media.ID, favorite bool) error {
	if err := f.source.SetFavorite(ctx, account, id, favorite); err != nil {
		return fmt.Errorf("remote favorite toggle failed: %w", err)
	}

	return f.store.UpdateRecord(ctx, account, id, func(rec *media.MediaRecord) error {
		rec.IsFavorite = favorite
		return nil
	})
}

// FavoritesViewDiff diffs what the UI currently displays against the
// authoritative favorite set from the store. This is a second, smaller
// diff distinct from store-level reconciliation: the view may show a
// time-filtered subset of the full favorites set.
//
// toDelete are displayed records that are no longer favorite; toAdd are
// favorites not currently displayed.
func FavoritesViewDiff(displayed, authoritative []media.MediaRecord) (toAdd, toDelete []media.MediaRecord) {
	authByID := make(map[media.ID]struct{}, len(authoritative))
	for i := range authoritative {
		authByID[authoritative[i].ID] = struct{}{}
	}
	shownByID := make(map[media.ID]struct{}, len(displayed))
	for i := range displayed {
		shownByID[displayed[i].ID] = struct{}{}
	}

	for i := range displayed {
		if _, ok := authByID[displayed[i].ID]; !ok {
			toDelete = append(toDelete, displayed[i])
		}
	}
	for i := range authoritative {
		if _, ok := shownByID[authoritative[i].ID]; !ok {
			toAdd = append(toAdd, authoritative[i])
		}
	}
	return toAdd, toDelete
}
