package wal

import "time"

// SyncPolicy selects the durability/throughput tradeoff for fsync calls.
type SyncPolicy int

const (
	// SyncEveryWrite fsyncs after every append. Safest, slowest.
	SyncEveryWrite SyncPolicy = iota
	// SyncInterval fsyncs periodically from a background goroutine.
	SyncInterval
	// SyncBatch fsyncs once accumulated bytes since the last sync cross
	// SyncBatchBytes.
	SyncBatch
)

// Options configures a Writer.
type Options struct {
	BufferSize           int
	SyncPolicy           SyncPolicy
	SyncIntervalDuration time.Duration
	SyncBatchBytes       int64
}

func DefaultOptions() Options {
	return Options{
		BufferSize:           64 * 1024,
		SyncPolicy:           SyncEveryWrite,
		SyncIntervalDuration: 200 * time.Millisecond,
		SyncBatchBytes:       1 * 1024 * 1024,
	}
}
