package sync

import (
	"context"
	"time"

	"github.com/marmos91/mediasync/pkg/media"
)

// fakeListingSource is a scriptable remote.ListingSource for tests.
// Unset hooks return empty results.
type fakeListingSource struct {
	searchFn        func(ctx context.Context, scope media.Scope, limit int) ([]media.MediaRecord, error)
	listFavoritesFn func(ctx context.Context, account media.Account) ([]media.MediaRecord, error)
	setFavoriteFn   func(ctx context.Context, account media.Account, id media.ID, favorite bool) error
}

func (f *fakeListingSource) Search(ctx context.Context, scope media.Scope, limit int) ([]media.MediaRecord, error) {
	if f.searchFn == nil {
		return nil, nil
	}
	return f.searchFn(ctx, scope, limit)
}

func (f *fakeListingSource) ListFavorites(ctx context.Context, account media.Account) ([]media.MediaRecord, error) {
	if f.listFavoritesFn == nil {
		return nil, nil
	}
	return f.listFavoritesFn(ctx, account)
}

func (f *fakeListingSource) SetFavorite(ctx context.Context, account media.Account, id media.ID, favorite bool) error {
	if f.setFavoriteFn == nil {
		return nil
	}
	return f.setFavoriteFn(ctx, account, id, favorite)
}

const testAccount = media.Account("acct")

var testScope = media.Scope{Account: testAccount}

// testRecord builds a minimal image record in the test account.
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
