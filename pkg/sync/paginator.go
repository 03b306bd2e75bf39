package sync

import (
	"context"
	"time"

	"github.com/marmos91/mediasync/pkg/media"
	"github.com/marmos91/mediasync/pkg/store/record"
)

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 200

// Cursor is a pagination continuation token: resume strictly after this
// (timestamp, name) pair in the canonical descending order. Cursors are
// transient and never persisted.
//
// The anchor record does not need to exist anymore: comparison is purely
// positional, so pagination proceeds even if the anchor was deleted or
// remote state changed between pages.
type Cursor struct {
	AnchorTime time.Time
	AnchorName string
}

// CursorFor returns the cursor that resumes after the given record.
func CursorFor(rec *media.MediaRecord) *Cursor {
	return &Cursor{AnchorTime: rec.ModifiedAt, AnchorName: rec.FileName}
}

// after reports whether a record lies strictly after the cursor in the
// canonical order (ModifiedAt desc, FileName desc).
//
// On the anchor timestamp itself, only records whose name sorts strictly
// below the anchor name are eligible; records at the same timestamp with
// FileName >= AnchorName were already delivered on the prior page.
func (c *Cursor) after(rec *media.MediaRecord) bool {
	if rec.ModifiedAt.Before(c.AnchorTime) {
		return true
	}
	if rec.ModifiedAt.Equal(c.AnchorTime) {
		return rec.FileName < c.AnchorName
	}
	return false
}

// Paginator produces stable, cursor-based pages over the record store's
// sorted view.
//
// Boundary behavior is deliberately overlap-tolerant: when many records
// share one timestamp, excluding by a shifted timestamp boundary could
// silently drop records sharing that exact second. Occasionally
// re-delivering a record to the UI (idempotent on a keyed dataset) is the
// chosen tradeoff over data loss.
type Paginator struct {
	store    record.Store
	pageSize int
}

// NewPaginator creates a paginator over the given store. pageSize <= 0
// selects DefaultPageSize.
func NewPaginator(store record.Store, pageSize int) *Paginator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Paginator{store: store, pageSize: pageSize}
}

// Page returns the next page of records matching the query in canonical
// order, optionally resuming strictly after cursor.
//
// A nil cursor returns the first page (all records when fewer than a page
// exist). The returned cursor is nil once the listing is exhausted.
func (p *Paginator) Page(ctx context.Context, q record.Query, cursor *Cursor) ([]media.MediaRecord, *Cursor, error) {
	sorted, err := p.store.GetSorted(ctx, q)
	if err != nil {
		return nil, nil, err
	}

	var page []media.MediaRecord
	more := false

	for i := range sorted {
		if cursor != nil && !cursor.after(&sorted[i]) {
			continue
		}
		if len(page) == p.pageSize {
			more = true
			break
		}
		page = append(page, sorted[i])
	}

	if !more {
		return page, nil, nil
	}
	return page, CursorFor(&page[len(page)-1]), nil
}
