package wal

import (
	"io"
	"os"

	cockroacherrors "github.com/cockroachdb/errors"

	"github.com/bobboyms/shardsql/pkg/crypto"
)

// Entry is one decoded, decrypted WAL record returned from Replay.
type Entry struct {
	Op  Op
	Key []byte
	Val []byte
}

// Replay reads path from the start until EOF or a truncated record,
// returning the ordered list of (op,k,v). A truncated tail record is
// dropped silently rather than treated as an error (spec §4.3).
func Replay(path string, enc *crypto.Encryptor) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, cockroacherrors.Wrap(err, "open WAL for replay")
	}
	defer f.Close()

	var entries []Entry
	for {
		rec, err := decodeRecord(f)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, cockroacherrors.Wrap(err, "decode WAL record")
		}

		key, val := rec.Key, rec.Val
		if enc != nil {
			if key, err = enc.Decrypt(key); err != nil {
				break // corrupt tail under encryption: stop, keep the clean prefix
			}
			if val, err = enc.Decrypt(val); err != nil {
				break
			}
		}

		entries = append(entries, Entry{Op: rec.Op, Key: key, Val: val})
	}

	return entries, nil
}
