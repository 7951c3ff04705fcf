// Package session drives one client connection through the PostgreSQL
// v3 handshake, simple query protocol, and extended query protocol
// (spec §4.11), dispatching parsed statements to a Router (a shard
// coordinator in production, a stub in tests) and tracking the
// connection's transaction sub-state. It is grounded on the original
// Rust server's handle_client loop (crates/datacave-server/src/
// server.rs): same handshake order, same per-statement simple-query
// rules, generalized here to also cover the extended protocol and
// explicit BEGIN/COMMIT/ROLLBACK buffering the spec adds on top of the
// original's stateless simple-query-only loop.
package session

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgproto3/v2"

	"github.com/bobboyms/shardsql/pkg/auth"
	berrors "github.com/bobboyms/shardsql/pkg/errors"
	"github.com/bobboyms/shardsql/pkg/sql"
	"github.com/bobboyms/shardsql/pkg/wire"
)

// TxState is the transaction sub-state spec §4.11 tracks per connection.
type TxState int

const (
	TxIdle TxState = iota
	TxInTransaction
	TxFailed
)

func (s TxState) byte() byte {
	switch s {
	case TxInTransaction:
		return 'T'
	case TxFailed:
		return 'E'
	default:
		return 'I'
	}
}

// Router is what a Session routes parsed statements through — a shard
// coordinator in production.
type Router interface {
	Execute(ctx context.Context, stmt *sql.Statement, tenant string) (*sql.Result, error)
}

// Authenticator verifies a username/password pair and returns the
// resulting principal. Credential verification itself is an external
// collaborator's concern (spec §1); Session only calls this hook.
type Authenticator func(username, password string) (*auth.Principal, error)

// preparedStatement is what Parse registers under a name (spec §4.11).
type preparedStatement struct {
	sql       string
	paramOIDs []uint32
}

// portal is what Bind creates from a prepared statement plus bound
// parameter values.
type portal struct {
	templateSQL string
	paramValues [][]byte
}

// Deadliner is implemented by connections that support read deadlines,
// used to enforce the optional idle timeout (spec §5).
type Deadliner interface {
	SetReadDeadline(t time.Time) error
}

// Session is one connection's state machine.
type Session struct {
	conn   *wire.Conn
	rawRW  io.ReadWriter
	router Router

	authEnabled  bool
	authenticate Authenticator
	auditLog     func(username, tenant, sql string)
	idleTimeout  time.Duration
	principal    *auth.Principal
	tenant       string
	username     string

	tx       TxState
	txBuffer []*sql.Statement

	prepared map[string]*preparedStatement
	portals  map[string]*portal
}

// Options configures a new Session.
type Options struct {
	Router       Router
	AuthEnabled  bool
	Authenticate Authenticator
	AuditLog     func(username, tenant, sql string)
	IdleTimeout  time.Duration // 0 disables the idle timeout
}

func New(rw io.ReadWriter, opts Options) *Session {
	return &Session{
		conn:         wire.NewConn(rw),
		rawRW:        rw,
		router:       opts.Router,
		authEnabled:  opts.AuthEnabled,
		authenticate: opts.Authenticate,
		auditLog:     opts.AuditLog,
		idleTimeout:  opts.IdleTimeout,
		prepared:     make(map[string]*preparedStatement),
		portals:      make(map[string]*portal),
	}
}

// Run drives the connection to completion: handshake, then the
// cooperative read/dispatch/respond loop until Terminate, EOF, or an
// unrecoverable protocol error (spec §4.11).
func (s *Session) Run(ctx context.Context) error {
	if err := s.handshake(); err != nil {
		return err
	}

	for {
		msg, err := s.receive()
		if err != nil {
			return err
		}

		switch m := msg.(type) {
		case *pgproto3.Query:
			s.handleSimpleQuery(ctx, m.String)
		case *pgproto3.Parse:
			s.handleParse(m)
		case *pgproto3.Bind:
			s.handleBind(m)
		case *pgproto3.Describe:
			s.handleDescribe(ctx, m)
		case *pgproto3.Execute:
			s.handleExecute(ctx, m)
		case *pgproto3.Sync:
			s.send(wire.ReadyForQueryFor(s.tx.byte()))
		case *pgproto3.Flush:
			// no-op: the backend never buffers across messages.
		case *pgproto3.Close:
			s.handleClose(m)
		case *pgproto3.Terminate:
			return nil
		}
	}
}

// receive enforces the optional idle timeout around one Conn.Receive,
// matching spec §5's "an optional per-connection idle timeout wraps
// each read".
func (s *Session) receive() (pgproto3.FrontendMessage, error) {
	if s.idleTimeout > 0 {
		if d, ok := s.rawRW.(Deadliner); ok {
			_ = d.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
	}
	return s.conn.Receive()
}

func (s *Session) send(msg pgproto3.BackendMessage) {
	_ = s.conn.Send(msg)
}

// handshake implements spec §4.11's three-step protocol handshake.
func (s *Session) handshake() error {
	startup, err := s.conn.ReceiveStartup()
	if err != nil {
		return err
	}

	params := startup.Parameters
	s.tenant = params["tenant_id"]
	s.username = params["user"]
	if s.username == "" {
		s.username = params["username"]
	}

	if s.authEnabled {
		if err := s.authenticatePassword(); err != nil {
			return err
		}
	} else {
		s.principal = &auth.Principal{Username: s.username}
	}

	s.send(&pgproto3.AuthenticationOk{})
	s.send(&pgproto3.ParameterStatus{Name: "server_version", Value: "14.0"})
	s.send(wire.ReadyForQueryFor(TxIdle.byte()))
	return nil
}

func (s *Session) authenticatePassword() error {
	s.send(&pgproto3.AuthenticationCleartextPassword{})

	msg, err := s.conn.Receive()
	if err != nil {
		return err
	}
	pw, ok := msg.(*pgproto3.PasswordMessage)
	if !ok {
		s.send(wire.ErrorResponseFor(berrors.NewKind(berrors.KindProtocol, "expected password message")))
		return berrors.NewKind(berrors.KindProtocol, "expected password message")
	}

	principal, err := s.authenticate(s.username, pw.Password)
	if err != nil {
		s.send(wire.ErrorResponseFor(berrors.NewKind(berrors.KindAuthn, "%v", err)))
		return err
	}
	s.principal = principal
	return nil
}

func isMutation(stmt *sql.Statement) bool {
	return stmt.Insert != nil || stmt.Update != nil || stmt.Delete != nil || stmt.CreateTable != nil
}

func insertRowCount(stmt *sql.Statement) int {
	if stmt.Insert != nil {
		return len(stmt.Insert.Rows)
	}
	return 0
}

// handleSimpleQuery implements spec §4.11's simple query protocol.
func (s *Session) handleSimpleQuery(ctx context.Context, query string) {
	if s.auditLog != nil {
		s.auditLog(s.username, s.tenant, query)
	}

	stmts, err := sql.Parse(query)
	if err != nil {
		s.send(wire.ErrorResponseFor(err))
		if s.tx == TxInTransaction {
			s.tx = TxFailed
		}
		s.send(wire.ReadyForQueryFor(s.tx.byte()))
		return
	}

	for _, stmt := range stmts {
		s.execOneStatement(ctx, stmt, 0)
	}
	s.send(wire.ReadyForQueryFor(s.tx.byte()))
}

// execOneStatement runs the transaction/authorization/dispatch rules of
// spec §4.11 for a single parsed statement, reused by both the simple
// query loop and the extended protocol's Execute step. maxRows truncates
// the rows sent for a direct (non-buffered) result; 0 means unlimited.
func (s *Session) execOneStatement(ctx context.Context, stmt *sql.Statement, maxRows int) {
	if s.tx == TxFailed {
		if stmt.Commit != nil || stmt.Rollback != nil {
			s.txBuffer = nil
			s.tx = TxIdle
			s.send(wire.CommandCompleteTag(commitRollbackLiteral(stmt), 0))
			return
		}
		s.send(wire.ErrorResponseFor(berrors.NewKind(berrors.KindSql, "current transaction is aborted")))
		return
	}

	if err := auth.Authorize(s.principal, stmt, s.authEnabled); err != nil {
		s.send(wire.ErrorResponseFor(err))
		if s.tx == TxInTransaction {
			s.tx = TxFailed
		}
		return
	}

	switch {
	case stmt.Begin != nil:
		s.tx = TxInTransaction
		s.txBuffer = nil
		s.send(wire.CommandCompleteTag("BEGIN", 0))

	case s.tx == TxInTransaction && isMutation(stmt):
		s.txBuffer = append(s.txBuffer, stmt)
		s.send(wire.CommandCompleteTag("", insertRowCount(stmt)))

	case stmt.Commit != nil:
		for _, buffered := range s.txBuffer {
			if _, err := s.router.Execute(ctx, buffered, s.tenant); err != nil {
				s.tx = TxFailed
				s.txBuffer = nil
				s.send(wire.ErrorResponseFor(err))
				return
			}
		}
		s.txBuffer = nil
		s.tx = TxIdle
		s.send(wire.CommandCompleteTag("COMMIT", 0))

	case stmt.Rollback != nil:
		s.txBuffer = nil
		s.tx = TxIdle
		s.send(wire.CommandCompleteTag("ROLLBACK", 0))

	default:
		res, err := s.router.Execute(ctx, stmt, s.tenant)
		if err != nil {
			s.send(wire.ErrorResponseFor(err))
			if s.tx == TxInTransaction {
				s.tx = TxFailed
			}
			return
		}
		rows := res.Rows
		if maxRows > 0 && len(rows) > maxRows {
			rows = rows[:maxRows]
		}
		if len(res.Columns) > 0 {
			s.send(wire.RowDescriptionFor(res.Columns))
			for _, row := range rows {
				s.send(wire.DataRowFor(row))
			}
		}
		s.send(wire.CommandCompleteTag("", res.RowsAffected))
	}
}

func commitRollbackLiteral(stmt *sql.Statement) string {
	if stmt.Commit != nil {
		return "COMMIT"
	}
	return "ROLLBACK"
}

func isSelectSQL(src string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(src)), "SELECT")
}
