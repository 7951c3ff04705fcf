package shard

import "testing"

func TestHashTable_Deterministic(t *testing.T) {
	a := hashTable("orders")
	b := hashTable("orders")
	if a != b {
		t.Fatalf("hashTable not deterministic: %d != %d", a, b)
	}
}

func TestHashTable_RollingMultiplyBy31(t *testing.T) {
	var want uint64
	for _, b := range []byte("orders") {
		want = want*31 + uint64(b)
	}
	if got := hashTable("orders"); got != want {
		t.Fatalf("hashTable(%q) = %d, want %d", "orders", got, want)
	}
}

func TestShardFor_WithinRange(t *testing.T) {
	for _, name := range []string{"orders", "customers", "a", ""} {
		s := ShardFor(name, 4)
		if s < 0 || s >= 4 {
			t.Fatalf("ShardFor(%q, 4) = %d, out of range", name, s)
		}
	}
}

func TestShardFor_ZeroShardsFallsBackToZero(t *testing.T) {
	if got := ShardFor("orders", 0); got != 0 {
		t.Fatalf("ShardFor with 0 shards = %d, want 0", got)
	}
}
