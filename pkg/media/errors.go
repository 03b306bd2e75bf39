package media

// StoreError represents a domain error from record store operations.
//
// These are replica-level errors (record not found, write failed, etc.)
// as opposed to infrastructure errors from the network layer. Callers
// branch on Code; Message is for logs only.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// ID is the record id related to the error (if applicable)
	ID ID
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.ID != "" {
		return e.Message + ": " + string(e.ID)
	}
	return e.Message
}

// ErrorCode represents the category of a store error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested record doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrWriteFailed indicates a write transaction failed.
	// The store guarantees prior state is intact (no partial commits)
	// and does not auto-retry; the caller decides whether to re-invoke.
	ErrWriteFailed

	// ErrReadFailed indicates a read transaction failed
	ErrReadFailed

	// ErrInvalidArgument indicates invalid parameters were provided
	// Examples: empty account, empty record id
	ErrInvalidArgument
)

// IsNotFound reports whether err is a StoreError with ErrNotFound.
func IsNotFound(err error) bool {
	se, ok := err.(*StoreError)
	return ok && se.Code == ErrNotFound
}
