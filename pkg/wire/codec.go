// Package wire implements the PostgreSQL v3 frontend/backend framing
// (spec §4.10) on top of jackc/pgproto3, the same way the retrieval
// pack's mickamy-sql-tap proxy leans on a ready-made wire library instead
// of hand-rolling message framing. Unknown frontend type bytes are
// pgproto3's problem, not ours: Backend.Receive already reports them as
// an error, which Conn.Receive surfaces directly — the session loop
// treats any such error as a closed connection rather than dispatching
// it as a distinct message type.
package wire

import (
	"io"

	"github.com/jackc/pgproto3/v2"

	berrors "github.com/bobboyms/shardsql/pkg/errors"
)

// Conn wraps one connection's frontend/backend message stream.
type Conn struct {
	backend *pgproto3.Backend
	rw      io.ReadWriter
}

func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{
		backend: pgproto3.NewBackend(pgproto3.NewChunkReader(rw), rw),
		rw:      rw,
	}
}

// ReceiveStartup reads the initial Startup message (spec §4.11 step 1).
func (c *Conn) ReceiveStartup() (*pgproto3.StartupMessage, error) {
	msg, err := c.backend.ReceiveStartupMessage()
	if err != nil {
		return nil, berrors.NewKind(berrors.KindProtocol, "read startup message: %v", err)
	}
	return msg, nil
}

// Receive reads one frontend message after the startup handshake.
func (c *Conn) Receive() (pgproto3.FrontendMessage, error) {
	msg, err := c.backend.Receive()
	if err != nil {
		return nil, berrors.NewKind(berrors.KindProtocol, "read frontend message: %v", err)
	}
	return msg, nil
}

// Send queues one backend message; messages are flushed on the stream
// immediately (no cross-message buffering, matching Flush's no-op
// contract in spec §4.11).
func (c *Conn) Send(msg pgproto3.BackendMessage) error {
	c.backend.Send(msg)
	if err := c.backend.Flush(); err != nil {
		return berrors.NewKind(berrors.KindProtocol, "flush backend message: %v", err)
	}
	return nil
}

// SendBatch queues and flushes several backend messages as one write,
// cheaper than one Send per message for a multi-row DataRow burst.
func (c *Conn) SendBatch(msgs ...pgproto3.BackendMessage) error {
	for _, m := range msgs {
		c.backend.Send(m)
	}
	if err := c.backend.Flush(); err != nil {
		return berrors.NewKind(berrors.KindProtocol, "flush backend messages: %v", err)
	}
	return nil
}
