// Package remote declares the interfaces the sync core consumes from the
// network layer, plus the error taxonomy remote implementations surface.
//
// The protocol client itself (WebDAV/HTTP, authentication, retries) lives
// outside the core; the core only depends on these contracts. An
// S3-compatible implementation ships in pkg/remote/s3 for media roots
// hosted on object storage.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/mediasync/pkg/media"
)

// ErrArtifactNotFound is returned by artifact fetches when the remote has
// no thumbnail/original for the requested record.
var ErrArtifactNotFound = errors.New("artifact not found")

// ErrorCode categorizes remote failures.
type ErrorCode int

const (
	// NetworkUnavailable: no route to the server (offline, DNS, timeout).
	NetworkUnavailable ErrorCode = iota

	// AuthExpired: the session credentials were rejected.
	AuthExpired

	// ServerError: the server answered with a failure status.
	ServerError
)

// Error is a remote operation failure. Callers treat any remote error as
// "no change applied" and keep serving the last-known-good local replica.
type Error struct {
	Code ErrorCode

	// StatusCode is the protocol status for ServerError, 0 otherwise.
	StatusCode int

	Message string
}

func (e *Error) Error() string {
	if e.Code == ServerError && e.StatusCode != 0 {
		return fmt.Sprintf("remote server error (%d): %s", e.StatusCode, e.Message)
	}
	return e.Message
}

// ListingSource produces remote listings and applies favorite toggles.
type ListingSource interface {
	// Search returns all remote records for the scope (account + root
	// path + time window), up to limit. limit <= 0 means no limit.
	Search(ctx context.Context, scope media.Scope, limit int) ([]media.MediaRecord, error)

	// ListFavorites returns the full, unpaginated favorites listing for
	// the account. Favorites carry no time-window constraint.
	ListFavorites(ctx context.Context, account media.Account) ([]media.MediaRecord, error)

	// SetFavorite applies a favorite toggle remotely. Any error means the
	// toggle was not applied and local state must not change.
	SetFavorite(ctx context.Context, account media.Account, id media.ID, favorite bool) error
}

// ArtifactSource fetches derived artifact bytes for records.
type ArtifactSource interface {
	// FetchThumbnail returns thumbnail bytes for (id, etag), or
	// ErrArtifactNotFound.
	FetchThumbnail(ctx context.Context, id media.ID, etag string) ([]byte, error)

	// FetchOriginal returns the original file bytes, or ErrArtifactNotFound.
	FetchOriginal(ctx context.Context, id media.ID) ([]byte, error)
}
