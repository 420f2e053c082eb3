package badger

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/snapshelf/core"
	"github.com/poiesic/snapshelf/storage"
)

// Records are keyed by timestamp under this prefix, so keys sort by age.
const recordPrefix = "snap:"

// digestSize is the length of the BLAKE2b checksum leading each value.
const digestSize = 8

// makeRecordKey generates the key for a record timestamp.
// Format: prefix + timestamp
func makeRecordKey(timestamp string) []byte {
	return []byte(recordPrefix + timestamp)
}

// timestampFromKey returns the timestamp part of a record key.
func timestampFromKey(key []byte) string {
	return string(bytes.TrimPrefix(key, []byte(recordPrefix)))
}

// checksum computes the 64-bit BLAKE2b digest of data.
func checksum(data []byte) uint64 {
	h, _ := blake2b.New(digestSize, nil)
	h.Write(data)
	return binary.LittleEndian.Uint64(h.Sum(nil))
}

// encodeValue wraps the serialized record in a checksummed envelope.
// Format: digest (8 bytes, little endian) + MUS-encoded record
func encodeValue(record *core.Record) ([]byte, error) {
	if err := core.ValidateRecord(record); err != nil {
		return nil, err
	}
	data := storage.EncodeRecord(record)
	buf := make([]byte, digestSize+len(data))
	binary.LittleEndian.PutUint64(buf, checksum(data))
	copy(buf[digestSize:], data)
	return buf, nil
}

// decodeValue verifies and unwraps an envelope written by encodeValue.
// The returned record does not alias value.
func decodeValue(value []byte) (*core.Record, error) {
	if len(value) < digestSize {
		return nil, fmt.Errorf("%w: value too short (%d bytes)", storage.ErrSerializationFailed, len(value))
	}
	data := value[digestSize:]
	if binary.LittleEndian.Uint64(value) != checksum(data) {
		return nil, fmt.Errorf("%w: checksum mismatch", storage.ErrSerializationFailed)
	}
	record, err := storage.DecodeRecord(data)
	if err != nil {
		return nil, err
	}
	return record.Clone(), nil
}
