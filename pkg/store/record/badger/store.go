// Package badger implements the record store on BadgerDB.
package badger

import (
	"context"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/mediasync/pkg/media"
	"github.com/marmos91/mediasync/pkg/store/record"
)

// BadgerRecordStore implements record.Store using BadgerDB for persistence.
//
// This implementation backs the local replica with a fast embedded
// key-value store. It is suitable for:
//   - Sessions whose replica must survive app restarts
//   - Multi-account databases (keys are namespaced per account)
//   - Replicas holding hundreds of thousands of records
//
// Thread Safety:
// Reads run on badger's MVCC snapshots and need no external locking.
// Writes are additionally serialized by a store-wide mutex (writeMu) so
// that logical operations — a reconciliation batch, a favorite toggle —
// never interleave at the statement level. Badger transactions alone
// would give atomicity but not this coarser single-writer discipline.
//
// Storage Model:
// One key per record, namespaced by account (see keys.go). Queries scan
// the account prefix and filter in code; the replica is bounded by what
// the client browses, so a prefix scan stays cheap and avoids secondary
// index maintenance on every upsert.
type BadgerRecordStore struct {
	// db is the BadgerDB database handle (thread-safe, internal MVCC)
	db *badger.DB

	// writeMu serializes logical write operations (single-writer discipline)
	writeMu sync.Mutex
}

// BadgerRecordStoreConfig contains configuration for creating a BadgerDB
// record store.
type BadgerRecordStoreConfig struct {
	// DBPath is the directory where BadgerDB will store its files.
	// BadgerDB creates multiple files here (value log, LSM tree, etc.)
	DBPath string `mapstructure:"db_path"`

	// BadgerOptions allows customization of BadgerDB behavior.
	// If nil, sensible defaults for the replica workload are used.
	BadgerOptions *badger.Options
}

// NewBadgerRecordStore opens (or creates) a BadgerDB-backed record store.
//
// The returned store is immediately ready for use and safe for concurrent
// access from multiple goroutines.
//
// Parameters:
//   - ctx: Context for cancellation during initialization
//   - config: Configuration including the DB path
//
// Returns:
//   - *BadgerRecordStore: A new store instance ready for use
//   - error: Error if the database cannot be opened or the on-disk schema
//     version is unsupported
func NewBadgerRecordStore(ctx context.Context, config BadgerRecordStoreConfig) (*BadgerRecordStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if config.BadgerOptions != nil {
		opts = *config.BadgerOptions
	} else {
		// Replica workload: frequent small upsert batches, full-account
		// range scans on every page read, values of a few hundred bytes.
		opts = badger.DefaultOptions(config.DBPath)
		opts = opts.WithLoggingLevel(badger.WARNING)
		opts = opts.WithCompression(options.None)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	store := &BadgerRecordStore{db: db}

	if err := store.checkSchemaVersion(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// checkSchemaVersion initializes or validates the stored schema version.
func (s *BadgerRecordStore) checkSchemaVersion() error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(keySchemaVersion())
		if err == badger.ErrKeyNotFound {
			return txn.Set(keySchemaVersion(), encodeSchemaVersion(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		return item.Value(func(val []byte) error {
			version, err := decodeSchemaVersion(val)
			if err != nil {
				return err
			}
			if version != currentSchemaVersion {
				return fmt.Errorf("unsupported replica schema version %d (expected %d)", version, currentSchemaVersion)
			}
			return nil
		})
	})
}

// Close closes the BadgerDB database and releases all resources.
func (s *BadgerRecordStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

// Get returns the record with the given id, or ErrNotFound.
func (s *BadgerRecordStore) Get(ctx context.Context, account media.Account, id media.ID) (*media.MediaRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *media.MediaRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyRecord(account, id))
		if err == badger.ErrKeyNotFound {
			return &media.StoreError{Code: media.ErrNotFound, Message: "record not found", ID: id}
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			rec, err = decodeRecord(val)
			return err
		})
	})
	if err != nil {
		if se, ok := err.(*media.StoreError); ok {
			return nil, se
		}
		return nil, &media.StoreError{Code: media.ErrReadFailed, Message: fmt.Sprintf("record read failed: %v", err), ID: id}
	}
	return rec, nil
}

// GetAll returns all records matching the query, in storage order.
func (s *BadgerRecordStore) GetAll(ctx context.Context, q record.Query) ([]media.MediaRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.Account == "" {
		return nil, &media.StoreError{Code: media.ErrInvalidArgument, Message: "query account is required"}
	}

	var out []media.MediaRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyAccountPrefix(q.Account)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				rec, err := decodeRecord(val)
				if err != nil {
					return err
				}
				if q.Matches(rec) {
					out = append(out, *rec)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, &media.StoreError{Code: media.ErrReadFailed, Message: fmt.Sprintf("record scan failed: %v", err)}
	}
	return out, nil
}

// GetSorted returns all records matching the query in the canonical
// listing order. The scan and the sort operate on one badger snapshot,
// so the result is read-consistent.
func (s *BadgerRecordStore) GetSorted(ctx context.Context, q record.Query) ([]media.MediaRecord, error) {
	out, err := s.GetAll(ctx, q)
	if err != nil {
		return nil, err
	}
	media.SortCanonical(out)
	return out, nil
}

// Upsert inserts or replaces a record by id (last-writer-wins).
func (s *BadgerRecordStore) Upsert(ctx context.Context, rec media.MediaRecord) error {
	return s.UpsertMany(ctx, []media.MediaRecord{rec})
}

// UpsertMany inserts or replaces a batch of records in one transaction.
func (s *BadgerRecordStore) UpsertMany(ctx context.Context, recs []media.MediaRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return s.ApplyChanges(ctx, recs[0].Account, nil, recs)
}

// UpdateRecord applies fn to the current record and writes it back in
// one badger transaction under the writer lock, so no other logical
// write can land between the read and the write-back.
func (s *BadgerRecordStore) UpdateRecord(ctx context.Context, account media.Account, id media.ID, fn func(*media.MediaRecord) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var fnErr error
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(keyRecord(account, id))
		if err == badger.ErrKeyNotFound {
			return &media.StoreError{Code: media.ErrNotFound, Message: "record not found", ID: id}
		}
		if err != nil {
			return err
		}

		var rec *media.MediaRecord
		if err := item.Value(func(val []byte) error {
			rec, err = decodeRecord(val)
			return err
		}); err != nil {
			return err
		}

		if fnErr = fn(rec); fnErr != nil {
			return fnErr
		}
		rec.ID = id
		rec.Account = account

		data, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		return txn.Set(keyRecord(account, id), data)
	})
	if err != nil {
		if err == fnErr {
			return fnErr
		}
		if se, ok := err.(*media.StoreError); ok {
			return se
		}
		return &media.StoreError{Code: media.ErrWriteFailed, Message: fmt.Sprintf("record update failed: %v", err), ID: id}
	}
	return nil
}

// Delete removes a record by id. Deleting a missing record is a no-op.
func (s *BadgerRecordStore) Delete(ctx context.Context, account media.Account, id media.ID) error {
	return s.ApplyChanges(ctx, account, []media.ID{id}, nil)
}

// DeleteWhere removes all records matching the query.
//
// The matching scan and the deletes run in a single update transaction,
// so concurrent readers observe either all matching records or none.
func (s *BadgerRecordStore) DeleteWhere(ctx context.Context, q record.Query) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if q.Account == "" {
		return 0, &media.StoreError{Code: media.ErrInvalidArgument, Message: "query account is required"}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deleted := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyAccountPrefix(q.Account)

		it := txn.NewIterator(opts)

		// Collect keys first: deleting while iterating invalidates the iterator.
		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				rec, err := decodeRecord(val)
				if err != nil {
					return err
				}
				if q.Matches(rec) {
					keys = append(keys, item.KeyCopy(nil))
				}
				return nil
			})
			if err != nil {
				it.Close()
				return err
			}
		}
		it.Close()

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		deleted = len(keys)
		return nil
	})
	if err != nil {
		return 0, &media.StoreError{Code: media.ErrWriteFailed, Message: fmt.Sprintf("record delete failed: %v", err)}
	}
	return deleted, nil
}

// ApplyChanges applies deletes and upserts for one account in a single
// badger transaction, deletes first. On failure badger discards the
// transaction, so prior state is intact and nothing is considered applied.
func (s *BadgerRecordStore) ApplyChanges(ctx context.Context, account media.Account, deletes []media.ID, upserts []media.MediaRecord) error {
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

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, id := range deletes {
			if err := txn.Delete(keyRecord(account, id)); err != nil {
				return err
			}
		}

		for i := range upserts {
			data, err := encodeRecord(&upserts[i])
			if err != nil {
				return err
			}
			if err := txn.Set(keyRecord(account, upserts[i].ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &media.StoreError{Code: media.ErrWriteFailed, Message: fmt.Sprintf("record batch write failed: %v", err)}
	}
	return nil
}
