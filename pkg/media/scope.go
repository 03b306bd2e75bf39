package media

import (
	"strings"
	"time"
)

// Scope restricts which records a query or reconciliation pass considers:
// one account, one root path, and an optional time window.
//
// A reconciliation pass must diff a remote listing only against the local
// records for the same scope, otherwise records outside the listing's
// window would be treated as deleted.
type Scope struct {
	// Account is the owning session. Required.
	Account Account

	// RootPath is the remote path prefix ("" means the whole account).
	RootPath string

	// From/To bound ModifiedAt. Zero values leave the bound open.
	From time.Time
	To   time.Time
}

// Contains reports whether a record falls inside the scope.
func (s Scope) Contains(r *MediaRecord) bool {
	if r.Account != s.Account {
		return false
	}
	if s.RootPath != "" && !strings.HasPrefix(r.ServerPath, s.RootPath) {
		return false
	}
	if !s.From.IsZero() && r.ModifiedAt.Before(s.From) {
		return false
	}
	if !s.To.IsZero() && r.ModifiedAt.After(s.To) {
		return false
	}
	return true
}
