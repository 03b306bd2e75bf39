package sync

import (
	"context"

	"github.com/marmos91/mediasync/internal/logger"
	"github.com/marmos91/mediasync/pkg/media"
	"github.com/marmos91/mediasync/pkg/store/record"
)

// ResolveLivePairs post-processes a scope's records so that display
// queries can filter out the video half of live photo pairs.
//
// For every image referencing a live-photo video peer by id, the peer id
// is mirrored onto the video record (marking it as a paired video). An
// image whose peer id dangles — the referenced video is not in the store
// — has its peer reference cleared so it is not presented as live; a
// later listing that delivers the video re-establishes the pair.
//
// Must run after reconciliation and before any read that excludes paired
// videos. The pass is idempotent: repeated runs produce the same flags.
// Returns the number of records it had to rewrite.
func ResolveLivePairs(ctx context.Context, store record.Store, scope media.Scope) (int, error) {
	records, err := store.GetAll(ctx, record.ScopeQuery(scope))
	if err != nil {
		return 0, err
	}

	byID := make(map[media.ID]*media.MediaRecord, len(records))
	for i := range records {
		byID[records[i].ID] = &records[i]
	}

	var upserts []media.MediaRecord

	for i := range records {
		rec := &records[i]
		if rec.Kind != media.KindImage || rec.LivePhotoPeerID == "" {
			continue
		}

		peer, ok := byID[rec.LivePhotoPeerID]
		if !ok || peer.Kind != media.KindVideo {
			logger.Debug("live pair: dangling peer %s for image %s, unflagging", rec.LivePhotoPeerID, rec.ID)
			cleared := *rec
			cleared.LivePhotoPeerID = ""
			upserts = append(upserts, cleared)
			continue
		}

		if peer.LivePhotoPeerID != rec.ID {
			flagged := *peer
			flagged.LivePhotoPeerID = rec.ID
			upserts = append(upserts, flagged)
		}
	}

	if len(upserts) == 0 {
		return 0, nil
	}

	if err := store.ApplyChanges(ctx, scope.Account, nil, upserts); err != nil {
		return 0, err
	}
	return len(upserts), nil
}
