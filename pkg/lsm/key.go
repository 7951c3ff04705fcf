package lsm

import "encoding/binary"

// tag bytes prefixing an encoded value (spec §3: tombstone-bearing value).
const (
	tagDelete byte = 0
	tagPut    byte = 1
)

// versionLen is the width of the big-endian version suffix appended to
// every user key. Big-endian ordering is what makes newer versions of the
// same user key sort immediately after older ones (spec §3).
const versionLen = 8

// encodeKey appends an 8-byte big-endian version to userKey. Callers must
// preserve the invariant that no user key is a byte-prefix of another
// (spec §9) or point lookups can misfire.
func encodeKey(userKey []byte, version uint64) []byte {
	out := make([]byte, len(userKey)+versionLen)
	copy(out, userKey)
	binary.BigEndian.PutUint64(out[len(userKey):], version)
	return out
}

// decodeVersion extracts the trailing version suffix from an encoded key.
func decodeVersion(encoded []byte) uint64 {
	if len(encoded) < versionLen {
		return 0
	}
	return binary.BigEndian.Uint64(encoded[len(encoded)-versionLen:])
}

// encodeValue prepends the tombstone tag byte.
func encodeValue(tag byte, payload []byte) []byte {
	out := make([]byte, 1+len(payload))
	out[0] = tag
	copy(out[1:], payload)
	return out
}

// decodeValue splits a tagged value back into (tag, payload).
func decodeValue(v []byte) (byte, []byte) {
	if len(v) == 0 {
		return tagDelete, nil
	}
	return v[0], v[1:]
}
