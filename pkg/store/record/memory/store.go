// Package memory implements an in-memory record store.
//
// The memory store keeps the full replica in maps guarded by a single
// read-write mutex. It is used by tests and by ephemeral sessions that
// don't need the replica to survive a restart. Semantics (atomic batches,
// last-writer-wins upserts, canonical sort order) match the badger store.
package memory

import (
	"context"
	"sync"

	"github.com/marmos91/mediasync/pkg/media"
	"github.com/marmos91/mediasync/pkg/store/record"
)

// MemoryRecordStore implements record.Store backed by process memory.
//
// Thread Safety: all operations take a coarse store-wide mutex, which
// gives single-writer multiple-reader semantics for free. Batches mutate
// a private copy of the account map and swap it in, so a concurrent
// reader never observes a partially-applied batch.
type MemoryRecordStore struct {
	mu sync.RWMutex

	// accounts maps account -> record id -> record
	accounts map[media.Account]map[media.ID]media.MediaRecord

	// failWrites forces every write transaction to fail. Tests use it to
	// verify that failed batches leave prior state intact.
	failWrites bool
}

// NewMemoryRecordStore creates an empty in-memory record store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		accounts: make(map[media.Account]map[media.ID]media.MediaRecord),
	}
}

// FailWrites toggles forced write failures. Test hook.
func (s *MemoryRecordStore) FailWrites(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = fail
}

func (s *MemoryRecordStore) writeError(msg string) error {
	return &media.StoreError{Code: media.ErrWriteFailed, Message: msg}
}

// Get returns the record with the given id, or ErrNotFound.
func (s *MemoryRecordStore) Get(ctx context.Context, account media.Account, id media.ID) (*media.MediaRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.accounts[account][id]
	if !ok {
		return nil, &media.StoreError{Code: media.ErrNotFound, Message: "record not found", ID: id}
	}
	out := rec
	return &out, nil
}

// GetAll returns all records matching the query.
func (s *MemoryRecordStore) GetAll(ctx context.Context, q record.Query) ([]media.MediaRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.Account == "" {
		return nil, &media.StoreError{Code: media.ErrInvalidArgument, Message: "query account is required"}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []media.MediaRecord
	for _, rec := range s.accounts[q.Account] {
		if q.Matches(&rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// GetSorted returns all records matching the query in canonical order.
func (s *MemoryRecordStore) GetSorted(ctx context.Context, q record.Query) ([]media.MediaRecord, error) {
	out, err := s.GetAll(ctx, q)
	if err != nil {
		return nil, err
	}
	media.SortCanonical(out)
	return out, nil
}

// Upsert inserts or replaces a record by id.
func (s *MemoryRecordStore) Upsert(ctx context.Context, rec media.MediaRecord) error {
	return s.UpsertMany(ctx, []media.MediaRecord{rec})
}

// UpsertMany inserts or replaces a batch of records atomically.
func (s *MemoryRecordStore) UpsertMany(ctx context.Context, recs []media.MediaRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i := range recs {
		if recs[i].ID == "" || recs[i].Account == "" {
			return &media.StoreError{Code: media.ErrInvalidArgument, Message: "record id and account are required"}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrites {
		return s.writeError("record store write failed")
	}

	for _, rec := range recs {
		byID, ok := s.accounts[rec.Account]
		if !ok {
			byID = make(map[media.ID]media.MediaRecord)
			s.accounts[rec.Account] = byID
		}
		byID[rec.ID] = rec
	}
	return nil
}

// UpdateRecord applies fn to the current record and writes it back under
// the store lock, so no other write can land between the read and the
// write-back.
func (s *MemoryRecordStore) UpdateRecord(ctx context.Context, account media.Account, id media.ID, fn func(*media.MediaRecord) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrites {
		return s.writeError("record store write failed")
	}

	rec, ok := s.accounts[account][id]
	if !ok {
		return &media.StoreError{Code: media.ErrNotFound, Message: "record not found", ID: id}
	}

	if err := fn(&rec); err != nil {
		return err
	}
	rec.ID = id
	rec.Account = account

	s.accounts[account][id] = rec
	return nil
}

// Delete removes a record by id. Missing records are a no-op.
func (s *MemoryRecordStore) Delete(ctx context.Context, account media.Account, id media.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrites {
		return s.writeError("record store write failed")
	}

	delete(s.accounts[account], id)
	return nil
}

// DeleteWhere removes all records matching the query.
func (s *MemoryRecordStore) DeleteWhere(ctx context.Context, q record.Query) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if q.Account == "" {
		return 0, &media.StoreError{Code: media.ErrInvalidArgument, Message: "query account is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrites {
		return 0, s.writeError("record store write failed")
	}

	byID := s.accounts[q.Account]
	deleted := 0
	for id, rec := range byID {
		if q.Matches(&rec) {
			delete(byID, id)
			deleted++
		}
	}
	return deleted, nil
}

// ApplyChanges applies deletes then upserts for one account atomically.
//
// The mutation runs on a copy of the account map which is swapped in only
// after every change succeeds, so a failure leaves prior state intact and
// concurrent readers never see a half-applied batch.
func (s *MemoryRecordStore) ApplyChanges(ctx context.Context, account media.Account, deletes []media.ID, upserts []media.MediaRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if account == "" {
		return &media.StoreError{Code: media.ErrInvalidArgument, Message: "account is required"}
	}
	for i := range upserts {
		if upserts[i].ID == "" {
			return &media.StoreError{Code: media.ErrInvalidArgument, Message: "record id is required"}
		}
		if upserts[i].Account != account {
			return &media.StoreError{Code: media.ErrInvalidArgument, Message: "record account mismatch", ID: upserts[i].ID}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrites {
		return s.writeError("record store write failed")
	}

	next := make(map[media.ID]media.MediaRecord, len(s.accounts[account])+len(upserts))
	for id, rec := range s.accounts[account] {
		next[id] = rec
	}

	// Deletes first, then upserts, matching the badger transaction order.
	for _, id := range deletes {
		delete(next, id)
	}
	for _, rec := range upserts {
		next[rec.ID] = rec
	}

	s.accounts[account] = next
	return nil
}

// Close releases store resources. No-op for the memory store.
func (s *MemoryRecordStore) Close() error {
	return nil
}
