package cache

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/marmos91/mediasync/internal/logger"
)

// sweepFile is one regular file observed by the sweep's directory walk.
type sweepFile struct {
	path     string
	size     int64
	accessed time.Time
}

// SweepStats summarizes one eviction sweep.
type SweepStats struct {
	TotalBytes   int64 // bytes found by the walk
	DeletedBytes int64 // bytes freed
	DeletedFiles int   // files removed
	FailedFiles  int   // files that could not be removed
}

// SweepIfOverBudget runs the eviction sweep if the cache exceeds its byte
// budget.
//
// The sweep is advisory and best-effort: it never blocks a write that
// would exceed the budget; callers run it opportunistically (on
// view-appear, after large downloads) and it catches up incrementally.
//
// Algorithm:
//  1. Walk the cache and sum regular-file sizes (hidden files skipped).
//  2. If total <= budget, no-op.
//  3. Otherwise delete files oldest-first by last access until total
//     drops to HALF the budget. The hysteresis avoids re-triggering a
//     sweep on every subsequent write near the boundary.
//
// The walk holds the listing lock exclusively so writers can't race the
// size accounting, but deletion happens after the lock is released;
// existence is re-checked before each delete to tolerate files replaced
// concurrently. A failure on one file never aborts the rest of the sweep.
func (c *DiskCache) SweepIfOverBudget(ctx context.Context) (*SweepStats, error) {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, total, err := c.listFiles()
	if err != nil {
		return nil, err
	}

	stats := &SweepStats{TotalBytes: total}
	if total <= c.maxBytes {
		return stats, nil
	}

	// Oldest first. Equal timestamps fall back to path order so repeated
	// sweeps over the same tree pick the same victims.
	sort.Slice(files, func(i, j int) bool {
		if !files[i].accessed.Equal(files[j].accessed) {
			return files[i].accessed.Before(files[j].accessed)
		}
		return files[i].path < files[j].path
	})

	target := c.maxBytes / 2
	remaining := total

	logger.Info("cache sweep: %d bytes over %d budget, evicting to %d", total, c.maxBytes, target)

	for _, f := range files {
		if remaining <= target {
			break
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		// Re-check before deleting: the file may have been replaced (new
		// size) or removed since the walk.
		info, err := os.Stat(f.path)
		if os.IsNotExist(err) {
			remaining -= f.size
			continue
		}
		if err != nil {
			logger.Warn("cache sweep: stat %s: %v", f.path, err)
			stats.FailedFiles++
			continue
		}

		if err := os.Remove(f.path); err != nil {
			logger.Warn("cache sweep: remove %s: %v", f.path, err)
			stats.FailedFiles++
			continue
		}

		size := info.Size()
		remaining -= size
		stats.DeletedBytes += size
		stats.DeletedFiles++

		c.removeDirIfEmpty(filepath.Dir(f.path))
	}

	logger.Info("cache sweep: freed %d bytes in %d files (%d failures)",
		stats.DeletedBytes, stats.DeletedFiles, stats.FailedFiles)

	return stats, nil
}

// listFiles walks the cache root and returns all regular files with their
// sizes and access timestamps. Hidden files and directories are skipped.
//
// The walk holds the listing lock exclusively so the listing is a
// consistent snapshot with respect to writers.
func (c *DiskCache) listFiles() ([]sweepFile, int64, error) {
	c.listMu.Lock()
	defer c.listMu.Unlock()

	var files []sweepFile
	var total int64

	err := filepath.WalkDir(c.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// A file vanished mid-walk is not an error for an advisory sweep.
			logger.Debug("cache sweep: walk %s: %v", path, err)
			return nil
		}
		if path == c.root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil || !info.Mode().IsRegular() {
			return nil
		}

		files = append(files, sweepFile{path: path, size: info.Size(), accessed: info.ModTime()})
		total += info.Size()
		return nil
	})
	if err != nil {
		return nil, 0, &IOError{Op: "sweep", Path: c.root, Err: err}
	}
	return files, total, nil
}

// removeDirIfEmpty removes a per-record directory once its last artifact
// is gone. Failures are ignored: a non-empty directory is the common case.
func (c *DiskCache) removeDirIfEmpty(dir string) {
	if dir == c.root {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	_ = os.Remove(dir)
}
