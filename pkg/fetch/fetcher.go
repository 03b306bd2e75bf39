// Package fetch serves artifact bytes to the UI through a two-tier
// cache: a synchronous in-memory LRU for visible-cell lookups, backed by
// the on-disk artifact cache, backed by the remote artifact source.
//
// Per-cell thumbnail downloads run concurrently, one task per visible
// item, each cancellable when its cell scrolls off-screen. Cancellation
// is race-free against page updates: a task re-checks its context and
// the record's current etag before any cache write, so a cancelled or
// stale task never persists bytes for a superseded etag.
package fetch

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/marmos91/mediasync/internal/logger"
	"github.com/marmos91/mediasync/pkg/cache"
	"github.com/marmos91/mediasync/pkg/media"
	"github.com/marmos91/mediasync/pkg/remote"
	"github.com/marmos91/mediasync/pkg/store/record"
)

// ErrStaleArtifact is returned when the record's etag changed while its
// artifact was being fetched. The fetched bytes are discarded, nothing is
// cached, and the caller should re-request with the current etag.
var ErrStaleArtifact = errors.New("record etag changed during fetch")

// DefaultMemoryBytes is the default in-memory tier budget (32MB).
const DefaultMemoryBytes = 32 << 20

// memEntry is one in-memory cached thumbnail.
type memEntry struct {
	key  string
	data []byte
}

// call is one in-flight fetch shared by concurrent requesters.
type call struct {
	done chan struct{}
	data []byte
	err  error
}

// Fetcher is the UI-facing artifact cache for one account.
type Fetcher struct {
	account media.Account
	store   record.Store
	disk    *cache.DiskCache
	source  remote.ArtifactSource

	mu       sync.Mutex
	entries  map[string]*list.Element
	lru      *list.List
	memBytes int64
	maxBytes int64

	flightMu sync.Mutex
	flight   map[string]*call
}

// NewFetcher creates a fetcher. maxMemoryBytes <= 0 selects
// DefaultMemoryBytes.
func NewFetcher(account media.Account, store record.Store, disk *cache.DiskCache, source remote.ArtifactSource, maxMemoryBytes int64) *Fetcher {
	if maxMemoryBytes <= 0 {
		maxMemoryBytes = DefaultMemoryBytes
	}
	return &Fetcher{
		account:  account,
		store:    store,
		disk:     disk,
		source:   source,
		entries:  map[string]*list.Element{},
		lru:      list.New(),
		maxBytes: maxMemoryBytes,
		flight:   map[string]*call{},
	}
}

func thumbKey(id media.ID, etag string) string {
	return string(id) + "|" + etag
}

// CachedThumbnail returns thumbnail bytes from the memory tier only.
// Synchronous and non-blocking; suitable for cell rendering paths.
func (f *Fetcher) CachedThumbnail(id media.ID, etag string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	elem, ok := f.entries[thumbKey(id, etag)]
	if !ok {
		return nil, false
	}
	f.lru.MoveToFront(elem)
	return elem.Value.(*memEntry).data, true
}

// FetchAndCacheThumbnail returns thumbnail bytes for (id, etag), filling
// both cache tiers on the way. Concurrent requests for the same (id,
// etag) share one remote fetch.
//
// The context is checked at entry and again before any cache write.
func (f *Fetcher) FetchAndCacheThumbnail(ctx context.Context, id media.ID, etag string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if data, ok := f.CachedThumbnail(id, etag); ok {
		// Keep the disk entry warm so eviction ordering matches actual use.
		f.disk.Touch(string(id), etag, cache.KindIcon)
		return data, nil
	}

	key := thumbKey(id, etag)

	f.flightMu.Lock()
	if existing, ok := f.flight[key]; ok {
		f.flightMu.Unlock()
		select {
		case <-existing.done:
			return existing.data, existing.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c := &call{done: make(chan struct{})}
	f.flight[key] = c
	f.flightMu.Unlock()

	c.data, c.err = f.fetchThumbnail(ctx, id, etag)

	f.flightMu.Lock()
	delete(f.flight, key)
	f.flightMu.Unlock()
	close(c.done)

	return c.data, c.err
}

func (f *Fetcher) fetchThumbnail(ctx context.Context, id media.ID, etag string) ([]byte, error) {
	// Disk tier. IO failures are logged and treated as a miss.
	data, hit, err := f.disk.Read(string(id), etag, cache.KindIcon)
	if err != nil {
		logger.Warn("thumbnail disk read for %s: %v", id, err)
	}
	if hit {
		f.memAdd(thumbKey(id, etag), data)
		return data, nil
	}

	data, err = f.source.FetchThumbnail(ctx, id, etag)
	if err != nil {
		return nil, err
	}

	// Guards before any cache write: the task may have been cancelled
	// while the fetch was in flight, or a reconciliation pass may have
	// replaced the record's etag. Stale bytes must never be persisted.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if stale, err := f.isStale(ctx, id, etag); err != nil {
		return nil, err
	} else if stale {
		return nil, ErrStaleArtifact
	}

	if err := f.disk.Write(string(id), etag, cache.KindIcon, data); err != nil {
		logger.Warn("thumbnail disk write for %s: %v", id, err)
	}
	f.memAdd(thumbKey(id, etag), data)

	return data, nil
}

// FetchOriginal returns the original file bytes for a record, through the
// disk cache (no memory tier: originals are too large to pin in memory).
func (f *Fetcher) FetchOriginal(ctx context.Context, id media.ID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, err := f.store.Get(ctx, f.account, id)
	if err != nil {
		return nil, err
	}

	data, hit, err := f.disk.Read(string(id), rec.ETag, cache.KindOriginal)
	if err != nil {
		logger.Warn("original disk read for %s: %v", id, err)
	}
	if hit {
		return data, nil
	}

	data, err = f.source.FetchOriginal(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if stale, err := f.isStale(ctx, id, rec.ETag); err != nil {
		return nil, err
	} else if stale {
		return nil, ErrStaleArtifact
	}

	if err := f.disk.Write(string(id), rec.ETag, cache.KindOriginal, data); err != nil {
		logger.Warn("original disk write for %s: %v", id, err)
	}
	return data, nil
}

// isStale reports whether the record's current etag no longer matches the
// one the fetch was started for. A deleted record counts as stale.
func (f *Fetcher) isStale(ctx context.Context, id media.ID, etag string) (bool, error) {
	rec, err := f.store.Get(ctx, f.account, id)
	if media.IsNotFound(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("etag check failed: %w", err)
	}
	return rec.ETag != etag, nil
}

// memAdd inserts bytes into the memory tier, evicting least-recently-used
// entries past the byte budget.
func (f *Fetcher) memAdd(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if elem, ok := f.entries[key]; ok {
		f.lru.MoveToFront(elem)
		return
	}

	f.entries[key] = f.lru.PushFront(&memEntry{key: key, data: data})
	f.memBytes += int64(len(data))

	for f.memBytes > f.maxBytes {
		oldest := f.lru.Back()
		if oldest == nil {
			break
		}
		entry := oldest.Value.(*memEntry)
		f.lru.Remove(oldest)
		delete(f.entries, entry.key)
		f.memBytes -= int64(len(entry.data))
	}
}

// MemoryBytes returns the current memory-tier usage. Used by tests and
// diagnostics.
func (f *Fetcher) MemoryBytes() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.memBytes
}
