package badger

import (
	"github.com/marmos91/mediasync/pkg/media"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so we use prefixed keys to organize the
// record table into logical namespaces. This design:
//   - Prevents key collisions between data types
//   - Enables efficient range scans (all records of one account)
//   - Makes the database structure self-documenting
//   - Supports future extensions without schema changes
//
// Record Identification:
//
// Records are keyed by the remote server's opaque file id, which is
// globally unique and stable across renames. Keys are namespaced by
// account so that multiple sessions can share one database and a whole
// account can be dropped with a single prefix scan.
//
// Key Namespace Prefixes:
//
// Data Type        Prefix   Key Format                Value Type
// =================================================================
// Media Records    "r:"     r:<account>:<id>          MediaRecord (JSON)
// Schema Version   "v:"     v:schema                  uint32 (binary)
//
// Key Design Rationale:
//
// 1. Media Records (r:)
//    - One entry per logical remote file
//    - Point lookup by (account, id): O(1)
//    - Account scan: range over prefix "r:<account>:"
//    - Account names cannot contain ':' (enforced at session creation),
//      so the prefix is unambiguous
//    - Example: r:user@cloud.example.com:ocid00042 → record JSON
//
// 2. Schema Version (v:)
//    - Single entry recording the serialization schema version
//    - Checked at open so a future format change can migrate explicitly
//      instead of failing on decode

const (
	recordPrefix  = "r:"
	schemaKeyName = "v:schema"

	// currentSchemaVersion is bumped when the record JSON layout changes
	// incompatibly.
	currentSchemaVersion uint32 = 1
)

// keyRecord returns the key for a media record.
func keyRecord(account media.Account, id media.ID) []byte {
	return []byte(recordPrefix + string(account) + ":" + string(id))
}

// keyAccountPrefix returns the scan prefix covering all records of an account.
func keyAccountPrefix(account media.Account) []byte {
	return []byte(recordPrefix + string(account) + ":")
}

// keySchemaVersion returns the key holding the schema version.
func keySchemaVersion() []byte {
	return []byte(schemaKeyName)
}
