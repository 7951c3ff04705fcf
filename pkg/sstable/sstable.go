package sstable

import (
	"bytes"
	"encoding/binary"
	"os"

	cockroacherrors "github.com/cockroachdb/errors"

	"github.com/bobboyms/shardsql/pkg/crypto"
	"github.com/bobboyms/shardsql/pkg/memtable"
)

// Write serializes entries as repeat([u32 LE key_len][key][u32 LE
// val_len][val]), optionally encrypts the whole payload as one unit, and
// writes it atomically (write-temp + rename, the teacher's
// CheckpointManager pattern) so a crash mid-flush never leaves a
// half-written run visible at the final path.
func Write(path string, entries []memtable.Entry, enc *crypto.Encryptor) error {
	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, e := range entries {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(e.Key)))
		buf.Write(lenBuf[:])
		buf.Write(e.Key)
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(e.Val)))
		buf.Write(lenBuf[:])
		buf.Write(e.Val)
	}

	payload := buf.Bytes()
	if enc != nil {
		var err error
		payload, err = enc.Encrypt(payload)
		if err != nil {
			return cockroacherrors.Wrap(err, "encrypt sorted run")
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0644); err != nil {
		return cockroacherrors.Wrap(err, "write sorted run temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return cockroacherrors.Wrap(err, "rename sorted run into place")
	}
	return nil
}

// Load reads path, decrypts the whole payload if enc is set, and decodes
// entries. A truncated tail is discarded defensively: decoding stops and
// returns what parsed cleanly (spec §4.5).
func Load(path string, enc *crypto.Encryptor) ([]memtable.Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, cockroacherrors.Wrap(err, "read sorted run")
	}

	payload := raw
	if enc != nil {
		payload, err = enc.Decrypt(raw)
		if err != nil {
			return nil, cockroacherrors.Wrap(err, "decrypt sorted run")
		}
	}

	var entries []memtable.Entry
	off := 0
	for off < len(payload) {
		if off+4 > len(payload) {
			break
		}
		keyLen := int(binary.LittleEndian.Uint32(payload[off : off+4]))
		off += 4
		if off+keyLen > len(payload) {
			break
		}
		key := payload[off : off+keyLen]
		off += keyLen

		if off+4 > len(payload) {
			break
		}
		valLen := int(binary.LittleEndian.Uint32(payload[off : off+4]))
		off += 4
		if off+valLen > len(payload) {
			break
		}
		val := payload[off : off+valLen]
		off += valLen

		entries = append(entries, memtable.Entry{Key: key, Val: val})
	}

	return entries, nil
}
