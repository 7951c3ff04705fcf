package shard

// hashTable implements the exact routing hash spec §4.12 mandates: a
// plain multiply-by-31 rolling hash over the table name's bytes, not a
// general-purpose hash like FNV. Using anything else would route the
// same table name to a different shard than another node computing the
// same hash independently would expect.
func hashTable(name string) uint64 {
	var h uint64
	for i := 0; i < len(name); i++ {
		h = h*31 + uint64(name[i])
	}
	return h
}

// ShardFor returns the shard index a table's rows live on.
func ShardFor(table string, shardCount int) int {
	if shardCount <= 0 {
		return 0
	}
	return int(hashTable(table) % uint64(shardCount))
}
