package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/marmos91/mediasync/internal/logger"
	"github.com/marmos91/mediasync/pkg/media"
	"github.com/marmos91/mediasync/pkg/remote"
	"github.com/marmos91/mediasync/pkg/store/record"
)

// ErrSyncSuperseded is returned by a sync pass whose result was discarded
// because a newer pass for the same scope started while it was running.
// The caller must not apply anything from a superseded pass.
var ErrSyncSuperseded = errors.New("sync superseded by a newer request")

// Coordinator runs sync passes with at most one outstanding operation per
// scope: starting a new pass cancels any prior in-flight pass for the
// same (account, root path), so two reconciliations never race on one
// record set.
//
// Every pass carries a generation token; a pass re-checks that it still
// owns the scope's current generation before any store write, so a
// cancelled or superseded pass is guaranteed not to mutate shared state
// after supersession is observed. UI consumers thereby tolerate
// out-of-order completion of overlapping refresh and load-more requests.
type Coordinator struct {
	store       record.Store
	source      remote.ListingSource
	reconciler  *Reconciler
	searchLimit int

	mu       sync.Mutex
	inflight map[string]*syncOp
}

type syncOp struct {
	generation uuid.UUID
	cancel     context.CancelFunc
}

// NewCoordinator creates a coordinator. searchLimit bounds how many
// records one listing request may return; <= 0 means no limit.
func NewCoordinator(store record.Store, source remote.ListingSource, searchLimit int) *Coordinator {
	return &Coordinator{
		store:       store,
		source:      source,
		reconciler:  NewReconciler(store),
		searchLimit: searchLimit,
		inflight:    map[string]*syncOp{},
	}
}

// scopeKey identifies the cancellation domain: one outstanding sync per
// account and root path. Different time windows over the same root still
// race on the same records, so they share a key.
func scopeKey(scope media.Scope) string {
	return string(scope.Account) + "|" + scope.RootPath
}

// Sync fetches the remote listing for the scope, reconciles it against
// the local replica, and resolves live photo pairs.
//
// Remote failures surface as "sync failed" without mutating local state:
// the replica stays the last-known-good view (stale-but-available over
// unavailable). A pass superseded by a newer one returns
// ErrSyncSuperseded with no state change.
func (c *Coordinator) Sync(ctx context.Context, scope media.Scope) (*Changes, error) {
	opCtx, cancel := context.WithCancel(ctx)
	generation := uuid.New()
	key := scopeKey(scope)

	c.mu.Lock()
	if prev := c.inflight[key]; prev != nil {
		logger.Debug("sync %s: cancelling in-flight pass %s", key, prev.generation)
		prev.cancel()
	}
	c.inflight[key] = &syncOp{generation: generation, cancel: cancel}
	c.mu.Unlock()

	defer c.finish(key, generation, cancel)

	remoteRecords, err := c.source.Search(opCtx, scope, c.searchLimit)
	if err != nil {
		return nil, fmt.Errorf("sync failed for %s: %w", key, err)
	}

	localRecords, err := c.store.GetAll(opCtx, record.ScopeQuery(scope))
	if err != nil {
		return nil, err
	}

	// Last gate before writing: a newer pass may own the scope by now.
	if !c.owns(key, generation) {
		return nil, ErrSyncSuperseded
	}
	if err := opCtx.Err(); err != nil {
		return nil, err
	}

	changes, err := c.reconciler.Reconcile(opCtx, scope, remoteRecords, localRecords)
	if err != nil {
		return nil, err
	}

	if _, err := ResolveLivePairs(opCtx, c.store, scope); err != nil {
		return nil, err
	}

	return changes, nil
}

// owns reports whether the generation is still the scope's current one.
func (c *Coordinator) owns(key string, generation uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	op := c.inflight[key]
	return op != nil && op.generation == generation
}

// finish releases the scope slot if this pass still owns it.
func (c *Coordinator) finish(key string, generation uuid.UUID, cancel context.CancelFunc) {
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if op := c.inflight[key]; op != nil && op.generation == generation {
		delete(c.inflight, key)
	}
}
