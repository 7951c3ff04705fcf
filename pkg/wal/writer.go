package wal

import (
	"bufio"
	"os"
	"sync"
	"time"

	cockroacherrors "github.com/cockroachdb/errors"

	"github.com/bobboyms/shardsql/pkg/crypto"
)

// Writer is an append-only, framed record log (spec §4.3). Each append
// serializes a Record, writes it, and flushes per the configured
// SyncPolicy. Recovery contract: any record flushed before a crash is
// guaranteed to appear in Replay; partial tail records are dropped
// silently.
type Writer struct {
	mu         sync.Mutex
	path       string
	file       *os.File
	buf        *bufio.Writer
	options    Options
	encryptor  *crypto.Encryptor
	batchBytes int64
	done       chan struct{}
	ticker     *time.Ticker
	closed     bool
}

// Open opens (creating if necessary) the WAL file at path for append. enc
// may be nil when encryption is disabled.
func Open(path string, opts Options, enc *crypto.Encryptor) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, cockroacherrors.Wrap(err, "open WAL file")
	}

	w := &Writer{
		path:      path,
		file:      f,
		buf:       bufio.NewWriterSize(f, opts.BufferSize),
		options:   opts,
		encryptor: enc,
		done:      make(chan struct{}),
	}

	if opts.SyncPolicy == SyncInterval {
		w.ticker = time.NewTicker(opts.SyncIntervalDuration)
		go w.backgroundSync()
	}

	return w, nil
}

func (w *Writer) Path() string { return w.path }

// Append serializes (op,k,v), encrypting key and value independently
// first if an encryptor is configured, writes the framed record, and
// flushes per SyncPolicy. Failure propagates to the caller.
func (w *Writer) Append(op Op, key, val []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return cockroacherrors.New("wal: append on closed writer")
	}

	if w.encryptor != nil {
		var err error
		if key, err = w.encryptor.Encrypt(key); err != nil {
			return cockroacherrors.Wrap(err, "encrypt WAL key")
		}
		if val, err = w.encryptor.Encrypt(val); err != nil {
			return cockroacherrors.Wrap(err, "encrypt WAL value")
		}
	}

	data := Record{Op: op, Key: key, Val: val}.encode()
	n, err := w.buf.Write(data)
	if err != nil {
		return cockroacherrors.Wrap(err, "write WAL record")
	}

	w.batchBytes += int64(n)

	switch w.options.SyncPolicy {
	case SyncEveryWrite:
		return w.flushLocked()
	case SyncBatch:
		if w.batchBytes >= w.options.SyncBatchBytes {
			w.batchBytes = 0
			return w.flushLocked()
		}
		return nil
	default: // SyncInterval
		return w.buf.Flush()
	}
}

func (w *Writer) flushLocked() error {
	if err := w.buf.Flush(); err != nil {
		return cockroacherrors.Wrap(err, "flush WAL buffer")
	}
	return w.file.Sync()
}

func (w *Writer) backgroundSync() {
	for {
		select {
		case <-w.ticker.C:
			w.mu.Lock()
			if !w.closed {
				_ = w.flushLocked()
			}
			w.mu.Unlock()
		case <-w.done:
			return
		}
	}
}

// Reset truncates the WAL to zero length and rewinds — called after a
// successful flush of the memtable it backs.
func (w *Writer) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Reset(w.file)
	if err := w.file.Truncate(0); err != nil {
		return cockroacherrors.Wrap(err, "truncate WAL")
	}
	if _, err := w.file.Seek(0, 0); err != nil {
		return cockroacherrors.Wrap(err, "seek WAL")
	}
	w.batchBytes = 0
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.ticker != nil {
		w.ticker.Stop()
		close(w.done)
	}
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return cockroacherrors.Wrap(err, "flush WAL on close")
	}
	return w.file.Close()
}
