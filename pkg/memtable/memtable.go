package memtable

import (
	"sync"

	"github.com/bobboyms/shardsql/pkg/btree"
	"github.com/bobboyms/shardsql/pkg/types"
)

// degree is the B+Tree's minimum degree (T). The teacher's own tables use
// small constants like 3; memtables are bounded by a byte-size flush
// threshold rather than key count, so a mid-sized node works well for
// typical batch sizes.
const degree = 32

// Entry is one (key,val) pair as stored raw — val already carries the
// tombstone tag byte the LSM engine prepends (spec §3).
type Entry struct {
	Key []byte
	Val []byte
}

// Memtable is the LSM engine's in-memory ordered buffer. It generalizes
// the teacher's concurrent B+Tree (pkg/btree) from typed int/varchar/
// float/bool/date keys to raw byte keys, which is what makes the
// versioned-key trick (spec §3) correct: ordering must be lexicographic
// on raw bytes, nothing else.
//
// Values live in an append-only in-memory arena addressed by the B+Tree's
// int64 data pointer, mirroring how the teacher's tree addressed
// heap-file offsets — except the "heap" here is just a slice in RAM.
type Memtable struct {
	mu    sync.RWMutex
	tree  *btree.BPlusTree
	arena [][]byte
	bytes int64
}

func New() *Memtable {
	return &Memtable{
		tree: btree.NewTree(degree),
	}
}

// Put replaces the value for key (duplicates are allowed by the
// underlying tree; Upsert rewrites in place).
func (m *Memtable) Put(key, val []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bytes += int64(len(key) + len(val))
	_ = m.tree.Upsert(types.ByteKey(key), func(oldIdx int64, exists bool) (int64, error) {
		if exists {
			m.bytes -= int64(len(m.arena[oldIdx]))
			m.arena[oldIdx] = val
			return oldIdx, nil
		}
		m.arena = append(m.arena, val)
		return int64(len(m.arena) - 1), nil
	})
}

// Get returns the raw value stored for key, if present.
func (m *Memtable) Get(key []byte) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.tree.Get(types.ByteKey(key))
	if !ok {
		return nil, false
	}
	return m.arena[idx], true
}

// RangeUpTo returns every entry whose key is <= upper, in ascending key
// order. The LSM engine's point-lookup algorithm walks this slice in
// reverse to find the newest visible version (spec §4.6).
func (m *Memtable) RangeUpTo(upper []byte) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	leaf, idx := m.tree.FindLeafLowerBound(nil)
	var out []Entry
	for leaf != nil {
		for j := idx; j < leaf.N; j++ {
			k := leaf.Keys[j].(types.ByteKey)
			if types.ByteKey(k).Compare(types.ByteKey(upper)) > 0 {
				leaf.RUnlock()
				return out
			}
			out = append(out, Entry{Key: []byte(k), Val: m.arena[leaf.DataPtrs[j]]})
		}
		next := leaf.Next
		next.RLock()
		leaf.RUnlock()
		leaf = next
		idx = 0
	}
	return out
}

// All returns every entry in ascending key order — used when flushing
// the whole memtable into a sorted run.
func (m *Memtable) All() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	leaf, idx := m.tree.FindLeafLowerBound(nil)
	var out []Entry
	for leaf != nil {
		for j := idx; j < leaf.N; j++ {
			k := leaf.Keys[j].(types.ByteKey)
			out = append(out, Entry{Key: []byte(k), Val: m.arena[leaf.DataPtrs[j]]})
		}
		next := leaf.Next
		next.RLock()
		leaf.RUnlock()
		leaf = next
		idx = 0
	}
	return out
}

// Clear drops every entry — called after a successful flush.
func (m *Memtable) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tree = btree.NewTree(degree)
	m.arena = nil
	m.bytes = 0
}

// Size is an approximate byte-size accessor used to decide when to flush.
func (m *Memtable) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bytes
}
