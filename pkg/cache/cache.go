// Package cache implements the on-disk artifact cache.
//
// The cache stores up to three derived artifacts per record — icon,
// preview, original — addressed by (record id, etag, kind). Entries are
// immutable once written: a changed etag produces a new entry, and stale
// entries for superseded etags are only removed by the eviction sweep or
// by an explicit record deletion cascade.
//
// On-disk layout (the only externally visible format):
//
//	root/<id>/<etag>.<kind>.<ext>
//
// Cache failures are never fatal to the calling operation: a failed write
// simply means the artifact is re-fetched next time it is needed.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ArtifactKind identifies which derived artifact of a record an entry holds.
type ArtifactKind int

const (
	KindIcon ArtifactKind = iota
	KindPreview
	KindOriginal
)

func (k ArtifactKind) String() string {
	switch k {
	case KindIcon:
		return "icon"
	case KindPreview:
		return "preview"
	default:
		return "original"
	}
}

// ext returns the fixed file extension for an artifact kind. The
// extension must be a pure function of the kind so that Path stays
// deterministic.
func (k ArtifactKind) ext() string {
	switch k {
	case KindIcon, KindPreview:
		return "jpg"
	default:
		return "bin"
	}
}

// IOError wraps a cache I/O failure. Callers treat it as a cache miss.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("cache %s failed for %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// DefaultMaxBytes is the default cache budget (500MB).
const DefaultMaxBytes = 500 << 20

// DiskCache is the size-bounded on-disk artifact cache.
//
// Thread Safety:
// Writes for distinct (id, etag, kind) keys proceed fully in parallel
// (distinct files). The eviction sweep takes listMu exclusively only for
// the duration of the directory walk, so it briefly excludes writers
// while building a consistent listing but never blocks them during
// deletion (see sweep.go).
type DiskCache struct {
	root     string
	maxBytes int64

	// listMu: writers hold it shared, the sweep's walk holds it exclusive
	listMu sync.RWMutex

	// sweepMu serializes sweeps so two opportunistic triggers don't race
	sweepMu sync.Mutex
}

// New creates a disk cache rooted at dir with the given byte budget.
// maxBytes <= 0 selects DefaultMaxBytes.
func New(dir string, maxBytes int64) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &IOError{Op: "init", Path: dir, Err: err}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &DiskCache{root: dir, maxBytes: maxBytes}, nil
}

// Root returns the cache root directory.
func (c *DiskCache) Root() string {
	return c.root
}

// MaxBytes returns the configured byte budget.
func (c *DiskCache) MaxBytes() int64 {
	return c.maxBytes
}

// Path returns the deterministic path for an artifact. It is a pure
// function of its inputs: no I/O, no network.
func (c *DiskCache) Path(id, etag string, kind ArtifactKind) string {
	name := fmt.Sprintf("%s.%s.%s", etag, kind, kind.ext())
	return filepath.Join(c.root, id, name)
}

// Exists reports whether the artifact is present on disk.
func (c *DiskCache) Exists(id, etag string, kind ArtifactKind) bool {
	info, err := os.Stat(c.Path(id, etag, kind))
	return err == nil && info.Mode().IsRegular()
}

// Write stores artifact bytes, creating the record directory on demand.
//
// The write is atomic (temp file then rename), so a concurrent reader
// never observes a partially written artifact and a crash never leaves a
// corrupt entry under the final name.
func (c *DiskCache) Write(id, etag string, kind ArtifactKind, data []byte) error {
	c.listMu.RLock()
	defer c.listMu.RUnlock()

	path := c.Path(id, etag, kind)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// Read returns the artifact bytes and marks the entry as recently used.
// A missing entry returns (nil, false, nil); any other failure returns an
// IOError which callers treat as a miss.
func (c *DiskCache) Read(id, etag string, kind ArtifactKind) ([]byte, bool, error) {
	path := c.Path(id, etag, kind)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &IOError{Op: "read", Path: path, Err: err}
	}

	c.touch(path)
	return data, true, nil
}

// Touch marks an artifact as recently used without reading it. Used when
// a caller serves bytes from a memory tier but wants the disk entry to
// stay warm for eviction purposes.
func (c *DiskCache) Touch(id, etag string, kind ArtifactKind) {
	c.touch(c.Path(id, etag, kind))
}

// touch bumps the file timestamp used for LRU ordering.
//
// Access time would be the natural signal, but atime is not portably
// readable through the standard library and is frequently disabled at
// mount time (noatime/relatime). Entries are immutable once written, so
// their modification time is free to carry last-access instead.
func (c *DiskCache) touch(path string) {
	now := time.Now()
	_ = os.Chtimes(path, now, now)
}

// DeleteRecord removes every cached artifact for a record, across all
// etags and kinds. Called from the record deletion cascade.
func (c *DiskCache) DeleteRecord(id string) error {
	c.listMu.RLock()
	defer c.listMu.RUnlock()

	dir := filepath.Join(c.root, id)
	if err := os.RemoveAll(dir); err != nil {
		return &IOError{Op: "delete", Path: dir, Err: err}
	}
	return nil
}
