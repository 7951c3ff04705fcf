package wal

import (
	"encoding/binary"
	"io"

	cockroacherrors "github.com/cockroachdb/errors"
)

// Op tags a WAL record as a put or a delete (spec §4.3).
type Op uint8

const (
	OpPut    Op = 1
	OpDelete Op = 2
)

// Record is one WAL entry: [u32 LE total_len][u8 op][u32 LE key_len][key]
// [u32 LE val_len][val]. If encryption is enabled, Key and Val already
// carry their own independent nonce prefix and KeyLen/ValLen are the
// encrypted sizes — the caller (Writer/Reader) is responsible for that
// transform; Record only knows about the framing.
type Record struct {
	Op  Op
	Key []byte
	Val []byte
}

// maxRecordLen guards against treating garbage as an absurd allocation
// request when reading a corrupted or truncated tail.
const maxRecordLen = 1 << 30

// encode serializes the record to the on-disk byte layout.
func (r Record) encode() []byte {
	totalLen := 1 + 4 + len(r.Key) + 4 + len(r.Val)
	buf := make([]byte, 4+totalLen)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(totalLen))
	buf[4] = byte(r.Op)
	binary.LittleEndian.PutUint32(buf[5:9], uint32(len(r.Key)))
	copy(buf[9:9+len(r.Key)], r.Key)
	off := 9 + len(r.Key)
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(r.Val)))
	copy(buf[off+4:], r.Val)
	return buf
}

// decodeRecord reads one framed record from r. It returns io.EOF when the
// stream ends cleanly on a record boundary, and io.ErrUnexpectedEOF when a
// partial tail record is encountered — callers treat the latter as "stop
// here, discard the rest" per spec §4.3's recovery contract.
func decodeRecord(r io.Reader) (Record, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, io.ErrUnexpectedEOF
	}
	totalLen := binary.LittleEndian.Uint32(lenBuf[:])
	if totalLen < 9 || totalLen > maxRecordLen {
		return Record{}, io.ErrUnexpectedEOF
	}

	body := make([]byte, totalLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return Record{}, io.ErrUnexpectedEOF
	}

	op := Op(body[0])
	keyLen := binary.LittleEndian.Uint32(body[1:5])
	if uint64(5)+uint64(keyLen)+4 > uint64(len(body)) {
		return Record{}, io.ErrUnexpectedEOF
	}
	key := body[5 : 5+keyLen]
	off := 5 + keyLen
	valLen := binary.LittleEndian.Uint32(body[off : off+4])
	if uint64(off)+4+uint64(valLen) != uint64(len(body)) {
		return Record{}, io.ErrUnexpectedEOF
	}
	val := body[off+4 : off+4+valLen]

	if op != OpPut && op != OpDelete {
		return Record{}, cockroacherrors.Newf("wal: unknown op byte %d", op)
	}

	return Record{Op: op, Key: key, Val: val}, nil
}
