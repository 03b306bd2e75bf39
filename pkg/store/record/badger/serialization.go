package badger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/marmos91/mediasync/pkg/media"
)

// Serialization Strategy
// ======================
//
// BadgerDB stores raw bytes, so records are serialized before storing.
//
// 1. JSON Encoding (records)
//    - Human-readable, flexible schema evolution, easy debugging
//    - Record values are small (a few hundred bytes), so JSON overhead
//      is irrelevant next to badger's own write amplification
//
// 2. Binary Encoding (schema version)
//    - A single big-endian uint32; no reason to involve JSON

// encodeRecord serializes a media record for storage.
func encodeRecord(rec *media.MediaRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
	}
	return data, nil
}

// decodeRecord deserializes a media record from storage.
func decodeRecord(data []byte) (*media.MediaRecord, error) {
	var rec media.MediaRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &rec, nil
}

// encodeSchemaVersion serializes the schema version.
func encodeSchemaVersion(v uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return buf
}

// decodeSchemaVersion deserializes the schema version.
func decodeSchemaVersion(data []byte) (uint32, error) {
	if len(data) != 4 {
		return 0, fmt.Errorf("invalid schema version length: %d", len(data))
	}
	return binary.BigEndian.Uint32(data), nil
}
