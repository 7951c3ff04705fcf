// Package lsm composes the write-ahead log, memtable and sorted runs into
// the durable, MVCC-versioned key-value engine described in spec §4.6. It
// is the generalisation of the teacher's pkg/storage Engine (WAL +
// in-memory index + CheckpointManager) to a log-structured-merge design:
// the teacher flushed a single B+Tree snapshot to one checkpoint file on
// demand; this engine flushes the memtable into an immutable, appended
// sorted run every time it crosses a size threshold, and later merges
// runs via Compact.
package lsm

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	cockroacherrors "github.com/cockroachdb/errors"

	"github.com/bobboyms/shardsql/pkg/crypto"
	"github.com/bobboyms/shardsql/pkg/memtable"
	"github.com/bobboyms/shardsql/pkg/sstable"
	"github.com/bobboyms/shardsql/pkg/wal"
)

// Options configures one Engine instance — one per shard replica.
type Options struct {
	Dir               string
	WALEnabled        bool
	MemtableByteLimit int64
	Encryptor         *crypto.Encryptor
}

// Engine is the LSM storage engine for one shard replica.
type Engine struct {
	dir        string
	walEnabled bool
	memLimit   int64
	enc        *crypto.Encryptor

	wal *wal.Writer
	mem *memtable.Memtable

	runsMu sync.RWMutex
	runs   []string // file paths, ascending arrival order (oldest first)
}

// Open implements the open protocol of spec §4.6: init encryptor (done by
// the caller, passed in via Options), open the WAL, replay it into the
// memtable, and enumerate existing sorted runs.
func Open(opts Options) (*Engine, error) {
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, cockroacherrors.Wrap(err, "create engine directory")
	}

	e := &Engine{
		dir:        opts.Dir,
		walEnabled: opts.WALEnabled,
		memLimit:   opts.MemtableByteLimit,
		enc:        opts.Encryptor,
		mem:        memtable.New(),
	}

	if e.walEnabled {
		walPath := filepath.Join(opts.Dir, "wal.log")
		w, err := wal.Open(walPath, wal.DefaultOptions(), opts.Encryptor)
		if err != nil {
			return nil, cockroacherrors.Wrap(err, "open WAL")
		}
		e.wal = w

		entries, err := wal.Replay(walPath, opts.Encryptor)
		if err != nil {
			return nil, cockroacherrors.Wrap(err, "replay WAL")
		}
		// Each record is put back into the memtable regardless of op:
		// the tombstone state already lives in the tagged value.
		for _, rec := range entries {
			e.mem.Put(rec.Key, rec.Val)
		}
	}

	matches, err := filepath.Glob(filepath.Join(opts.Dir, "sst-*.db"))
	if err != nil {
		return nil, cockroacherrors.Wrap(err, "enumerate sorted runs")
	}
	sort.Strings(matches)
	e.runs = matches

	return e, nil
}

// Put stores value under userKey at version. Triggers Flush when the
// memtable crosses MemtableByteLimit.
func (e *Engine) Put(userKey, value []byte, version uint64) error {
	if err := e.append(tagPut, userKey, value, version); err != nil {
		return err
	}
	if e.memLimit > 0 && e.mem.Size() >= e.memLimit {
		return e.Flush()
	}
	return nil
}

// Delete writes a tombstone for userKey at version. Unlike Put this never
// triggers an automatic flush — tombstones coalesce during compaction
// instead (spec §4.6, a deliberate asymmetry preserved from the spec).
func (e *Engine) Delete(userKey []byte, version uint64) error {
	return e.append(tagDelete, userKey, nil, version)
}

func (e *Engine) append(tag byte, userKey, value []byte, version uint64) error {
	key := encodeKey(userKey, version)
	val := encodeValue(tag, value)

	if e.walEnabled {
		op := wal.OpPut
		if tag == tagDelete {
			op = wal.OpDelete
		}
		if err := e.wal.Append(op, key, val); err != nil {
			return cockroacherrors.Wrap(err, "append WAL record")
		}
	}
	e.mem.Put(key, val)
	return nil
}

// Get implements the point-lookup algorithm of spec §4.6: first the
// memtable, then sorted runs newest-first, each searched for the latest
// version of userKey not exceeding snapshot.
func (e *Engine) Get(userKey []byte, snapshot uint64) ([]byte, bool, error) {
	upper := encodeKey(userKey, snapshot)

	if val, ok := latestMatch(e.mem.RangeUpTo(upper), userKey); ok {
		return resolveTombstone(val)
	}

	e.runsMu.RLock()
	runs := make([]string, len(e.runs))
	copy(runs, e.runs)
	e.runsMu.RUnlock()

	for i := len(runs) - 1; i >= 0; i-- {
		entries, err := sstable.Load(runs[i], e.enc)
		if err != nil {
			return nil, false, cockroacherrors.Wrap(err, "load sorted run")
		}
		if val, ok := latestMatchBounded(entries, userKey, snapshot); ok {
			return resolveTombstone(val)
		}
	}

	return nil, false, nil
}

func resolveTombstone(val []byte) ([]byte, bool, error) {
	tag, payload := decodeValue(val)
	if tag == tagDelete {
		return nil, false, nil
	}
	return payload, true, nil
}

// latestMatch walks entries (already bounded to <= snapshot key by
// RangeUpTo) backward and returns the value of the first one whose key
// starts with userKey — the highest version not exceeding the snapshot.
func latestMatch(entries []memtable.Entry, userKey []byte) ([]byte, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if bytes.HasPrefix(entries[i].Key, userKey) {
			return entries[i].Val, true
		}
	}
	return nil, false
}

// latestMatchBounded does the same over an unbounded sorted-run entry
// list, filtering by snapshot version explicitly.
func latestMatchBounded(entries []memtable.Entry, userKey []byte, snapshot uint64) ([]byte, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if bytes.HasPrefix(entries[i].Key, userKey) && decodeVersion(entries[i].Key) <= snapshot {
			return entries[i].Val, true
		}
	}
	return nil, false
}

// Flush atomically drains the memtable into a new sorted run, clears it,
// and resets the WAL. No-op when the memtable is empty.
func (e *Engine) Flush() error {
	entries := e.mem.All()
	if len(entries) == 0 {
		return nil
	}

	// Two flushes within one millisecond must not share a file name, or
	// the second would overwrite the first run.
	millis := time.Now().UnixMilli()
	path := filepath.Join(e.dir, fmt.Sprintf("sst-%d.db", millis))
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		millis++
		path = filepath.Join(e.dir, fmt.Sprintf("sst-%d.db", millis))
	}
	if err := sstable.Write(path, entries, e.enc); err != nil {
		return cockroacherrors.Wrap(err, "write sorted run")
	}

	e.runsMu.Lock()
	e.runs = append(e.runs, path)
	e.runsMu.Unlock()

	e.mem.Clear()

	if e.walEnabled {
		if err := e.wal.Reset(); err != nil {
			return cockroacherrors.Wrap(err, "reset WAL after flush")
		}
	}
	return nil
}

// Compact merges every sorted run into one, last-write-wins on exactly
// equal encoded keys (version suffix included, so distinct versions of
// the same user key both survive). No-op with fewer than two runs.
func (e *Engine) Compact() error {
	e.runsMu.Lock()
	runs := make([]string, len(e.runs))
	copy(runs, e.runs)
	e.runsMu.Unlock()

	if len(runs) < 2 {
		return nil
	}

	merged := make(map[string]memtable.Entry)
	for _, path := range runs {
		entries, err := sstable.Load(path, e.enc)
		if err != nil {
			return cockroacherrors.Wrap(err, "load sorted run for compaction")
		}
		for _, ent := range entries {
			merged[string(ent.Key)] = ent
		}
	}

	out := make([]memtable.Entry, 0, len(merged))
	for _, ent := range merged {
		out = append(out, ent)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Key, out[j].Key) < 0
	})

	newPath := filepath.Join(e.dir, fmt.Sprintf("sst-compacted-%d.db", time.Now().UnixMilli()))
	if err := sstable.Write(newPath, out, e.enc); err != nil {
		return cockroacherrors.Wrap(err, "write compacted run")
	}

	for _, path := range runs {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return cockroacherrors.Wrap(err, "remove superseded run")
		}
	}

	e.runsMu.Lock()
	e.runs = []string{newPath}
	e.runsMu.Unlock()
	return nil
}

// Close releases the WAL file handle. Sorted runs need no explicit close.
func (e *Engine) Close() error {
	if e.wal != nil {
		return e.wal.Close()
	}
	return nil
}
