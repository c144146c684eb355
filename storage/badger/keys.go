package badger

import (
	"encoding/binary"
	"errors"

	"github.com/poiesic/dataprep/storage"
)

// Key prefixes for different data types
const (
	shardPrefix       = "shard:"
	shardDigestPrefix = "shardsum:"
	manifestKey       = "manifest"
)

var errMalformedKey = errors.New("malformed shard key")

// makeShardKey generates a key for a shard entry by index.
// Format: prefix:index, with the index BigEndian so keys sort by shard order.
func makeShardKey(index int) []byte {
	prefixBytes := []byte(shardPrefix)
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(index))
	return buf
}

// makeShardDigestKey generates the key holding a shard's stamp.
// It is stored beside the entry so MatchShard can avoid decoding vectors.
func makeShardDigestKey(index int) []byte {
	prefixBytes := []byte(shardDigestPrefix)
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(index))
	return buf
}

// makeShardStamp encodes a shard's content digest and vector width.
// Format: digest (8 bytes BigEndian) followed by the width as a uvarint.
func makeShardStamp(digest uint64, dim int) []byte {
	buf := binary.BigEndian.AppendUint64(make([]byte, 0, 8+binary.MaxVarintLen64), digest)
	return binary.AppendUvarint(buf, uint64(dim))
}

// parseShardStamp decodes a value written by makeShardStamp.
func parseShardStamp(val []byte) (uint64, int, error) {
	if len(val) < 9 {
		return 0, 0, storage.ErrTruncatedData
	}
	dim, n := binary.Uvarint(val[8:])
	if n <= 0 || 8+n != len(val) {
		return 0, 0, storage.ErrTruncatedData
	}
	return binary.BigEndian.Uint64(val), int(dim), nil
}

// parseShardKey extracts the shard index from a key built by makeShardKey.
func parseShardKey(key []byte) (int, error) {
	if len(key) != len(shardPrefix)+8 || string(key[:len(shardPrefix)]) != shardPrefix {
		return 0, errMalformedKey
	}
	return int(binary.BigEndian.Uint64(key[len(shardPrefix):])), nil
}

// makeManifestKey returns the key of the embed-phase manifest.
func makeManifestKey() []byte {
	return []byte(manifestKey)
}
