// Package record defines the record store contract: a persistent keyed
// table of media records, queryable by predicate and sortable.
//
// Implementations must provide transaction semantics per call: every method
// runs as one logical transaction, writers are serialized (single-writer,
// multiple-reader), and a reader never observes a partially-applied batch.
//
// Two implementations exist:
//   - badger: persistent BadgerDB-backed store (production)
//   - memory: in-memory store (tests, ephemeral sessions)
package record

import (
	"context"
	"strings"
	"time"

	"github.com/marmos91/mediasync/pkg/media"
)

// Query is the predicate for record lookups. The zero value of every
// field except Account means "no constraint".
type Query struct {
	// Account restricts the query to one session. Required.
	Account media.Account

	// PathPrefix restricts to records whose ServerPath starts with it.
	PathPrefix string

	// From/To bound ModifiedAt (inclusive). Zero values leave the bound open.
	From time.Time
	To   time.Time

	// Kinds restricts by media class. Empty means all kinds.
	Kinds []media.ClassKind

	// FavoritesOnly restricts to records with IsFavorite set.
	FavoritesOnly bool

	// Status restricts to one record status. Nil means any.
	Status *media.Status

	// ExcludeLiveVideos drops the video half of live photo pairs.
	// Display queries set this; reconciliation queries must not, since
	// paired videos are stored like any other record.
	ExcludeLiveVideos bool

	// ExcludeDirectories drops directory records.
	ExcludeDirectories bool
}

// ScopeQuery returns the raw query for a scope: everything the store holds
// for the scope, paired live videos included. Reconciliation uses this.
func ScopeQuery(scope media.Scope) Query {
	return Query{
		Account:    scope.Account,
		PathPrefix: scope.RootPath,
		From:       scope.From,
		To:         scope.To,
	}
}

// DisplayQuery returns the query backing UI listings for a scope:
// no directories and no paired live videos.
func DisplayQuery(scope media.Scope) Query {
	q := ScopeQuery(scope)
	q.ExcludeLiveVideos = true
	q.ExcludeDirectories = true
	return q
}

// Matches reports whether a record satisfies the predicate.
func (q Query) Matches(r *media.MediaRecord) bool {
	if r.Account != q.Account {
		return false
	}
	if q.PathPrefix != "" && !strings.HasPrefix(r.ServerPath, q.PathPrefix) {
		return false
	}
	if !q.From.IsZero() && r.ModifiedAt.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && r.ModifiedAt.After(q.To) {
		return false
	}
	if len(q.Kinds) > 0 {
		found := false
		for _, k := range q.Kinds {
			if r.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.FavoritesOnly && !r.IsFavorite {
		return false
	}
	if q.Status != nil && r.Status != *q.Status {
		return false
	}
	if q.ExcludeLiveVideos && r.IsLivePhotoVideo() {
		return false
	}
	if q.ExcludeDirectories && r.IsDirectory {
		return false
	}
	return true
}

// Store is the record store contract.
//
// Error behavior: write failures surface as *media.StoreError with
// ErrWriteFailed and leave prior state intact; read failures surface as
// ErrReadFailed. Get returns ErrNotFound for missing records.
type Store interface {
	// Get returns the record with the given id, or ErrNotFound.
	Get(ctx context.Context, account media.Account, id media.ID) (*media.MediaRecord, error)

	// GetAll returns all records matching the query, in no particular order.
	GetAll(ctx context.Context, q Query) ([]media.MediaRecord, error)

	// GetSorted returns all records matching the query in the canonical
	// listing order (ModifiedAt desc, FileName desc), from one
	// read-consistent snapshot.
	GetSorted(ctx context.Context, q Query) ([]media.MediaRecord, error)

	// Upsert inserts or replaces a record by id (last-writer-wins).
	Upsert(ctx context.Context, rec media.MediaRecord) error

	// UpsertMany inserts or replaces a batch of records in one transaction.
	UpsertMany(ctx context.Context, recs []media.MediaRecord) error

	// UpdateRecord applies fn to the current version of a record and
	// writes the result back, all in one transaction under the writer
	// lock, so no other logical operation can land between the read and
	// the write. Returns ErrNotFound if the record does not exist; an
	// error from fn aborts the update with nothing written.
	UpdateRecord(ctx context.Context, account media.Account, id media.ID, fn func(*media.MediaRecord) error) error

	// Delete removes a record by id. Deleting a missing record is a no-op.
	Delete(ctx context.Context, account media.Account, id media.ID) error

	// DeleteWhere removes all records matching the query and returns how
	// many were removed.
	DeleteWhere(ctx context.Context, q Query) (int, error)

	// ApplyChanges applies deletes and upserts for one account in a single
	// transaction, deletes first, to avoid transient duplicate-id states.
	// On failure nothing is applied.
	//
	// This is the primitive the reconciler and the favorite synchronizer
	// build their one-transaction-per-pass guarantee on.
	ApplyChanges(ctx context.Context, account media.Account, deletes []media.ID, upserts []media.MediaRecord) error

	// Close releases store resources. The store must not be used after.
	Close() error
}
