// Package media defines the core domain types for the mediasync replica:
// media records, scopes, canonical ordering, and the store error taxonomy.
//
// A MediaRecord is the local projection of one logical remote file. The
// record store owns MediaRecord lifecycle; all cross-component interaction
// happens by value (copied records) or by key (ID, ETag).
package media

import (
	"sort"
	"time"
)

// ID is the opaque, globally unique identifier of a remote file.
// It is stable across renames and serves as the store primary key.
type ID string

// Account identifies the owning session (server URL + user).
type Account string

// ClassKind classifies a record by its media class.
type ClassKind int

const (
	KindImage ClassKind = iota
	KindVideo
	KindAudio
	KindOther
)

func (k ClassKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "other"
	}
}

// Status tracks whether a record has been confirmed by a remote listing.
type Status int

const (
	// StatusNormal is a record confirmed by a remote listing.
	StatusNormal Status = iota

	// StatusPending is a record that exists locally before remote
	// confirmation (e.g. a freshly downloaded item not yet re-listed).
	// Pending records are never overwritten by reconciliation updates.
	StatusPending
)

// MediaRecord is the local replica of one logical remote file.
type MediaRecord struct {
	// ID is the primary key. Re-inserting a record with the same ID
	// replaces the prior record (last-writer-wins).
	ID ID `json:"id"`

	// Account is the owning session identifier.
	Account Account `json:"account"`

	// ServerPath is the current remote path.
	ServerPath string `json:"server_path"`

	// FileName is the leaf display name. It is the deterministic
	// tiebreak for records sharing the same ModifiedAt.
	FileName string `json:"file_name"`

	// ETag is the opaque remote content version token. A changed ETag
	// invalidates cached artifacts for the record.
	ETag string `json:"etag"`

	// ModifiedAt is the primary sort key (descending).
	ModifiedAt time.Time `json:"modified_at"`

	Kind        ClassKind `json:"kind"`
	IsDirectory bool      `json:"is_directory"`
	IsFavorite  bool      `json:"is_favorite"`

	// LivePhotoPeerID links the two halves of a live photo. On the image
	// it references the paired video; the live-pair resolver mirrors it
	// onto the video so display queries can filter the video out.
	LivePhotoPeerID ID `json:"live_photo_peer_id,omitempty"`

	// HasPreview reports whether the server can render a preview.
	HasPreview bool `json:"has_preview"`

	// Note is free-form remote annotation text.
	Note string `json:"note,omitempty"`

	// Width and Height are pixel dimensions, 0 if unknown.
	Width  int `json:"width"`
	Height int `json:"height"`

	SizeBytes int64  `json:"size_bytes"`
	Status    Status `json:"status"`
}

// IsLivePhotoVideo reports whether the record is the video half of a live
// photo pair. Paired videos are stored but excluded from display listings.
func (r *MediaRecord) IsLivePhotoVideo() bool {
	return r.Kind == KindVideo && r.LivePhotoPeerID != ""
}

// Before reports whether r sorts strictly before other in the canonical
// listing order: ModifiedAt descending, then FileName descending.
//
// Both pagination and reconciliation must use this exact order.
func (r *MediaRecord) Before(other *MediaRecord) bool {
	if !r.ModifiedAt.Equal(other.ModifiedAt) {
		return r.ModifiedAt.After(other.ModifiedAt)
	}
	return r.FileName > other.FileName
}

// SortCanonical sorts records in place by the canonical listing order.
func SortCanonical(records []MediaRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Before(&records[j])
	})
}

// TrackedFieldsDiffer reports whether any reconciliation-tracked field
// differs between the local and remote version of a record.
//
// The tracked fields are exactly: ETag, FileName, ModifiedAt, HasPreview,
// Note, and IsFavorite. The enumeration is deliberate: adding a field to
// MediaRecord does not silently widen the update set.
func TrackedFieldsDiffer(local, remote *MediaRecord) bool {
	return local.ETag != remote.ETag ||
		local.FileName != remote.FileName ||
		!local.ModifiedAt.Equal(remote.ModifiedAt) ||
		local.HasPreview != remote.HasPreview ||
		local.Note != remote.Note ||
		local.IsFavorite != remote.IsFavorite
}
