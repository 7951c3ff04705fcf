package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgproto3/v2"

	"github.com/bobboyms/shardsql/pkg/sql"
	"github.com/bobboyms/shardsql/pkg/types"
)

// stubRouter is a canned Router used to exercise the session state
// machine without a real shard coordinator.
type stubRouter struct {
	result *sql.Result
	err    error
	calls  []*sql.Statement
}

func (r *stubRouter) Execute(_ context.Context, stmt *sql.Statement, _ string) (*sql.Result, error) {
	r.calls = append(r.calls, stmt)
	if r.err != nil {
		return nil, r.err
	}
	if r.result != nil {
		return r.result, nil
	}
	return &sql.Result{}, nil
}

func newTestPair(t *testing.T, router Router) (*pgproto3.Frontend, func()) {
	t.Helper()
	serverConn, clientConn := net.Pipe()

	sess := New(serverConn, Options{Router: router})
	done := make(chan struct{})
	go func() {
		_ = sess.Run(context.Background())
		close(done)
	}()

	startup := (&pgproto3.StartupMessage{
		ProtocolVersion: pgproto3.ProtocolVersionNumber,
		Parameters:      map[string]string{"user": "alice"},
	}).Encode(nil)
	if _, err := clientConn.Write(startup); err != nil {
		t.Fatalf("write startup: %v", err)
	}

	fe := pgproto3.NewFrontend(pgproto3.NewChunkReader(clientConn), clientConn)
	cleanup := func() {
		clientConn.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
	return fe, cleanup
}

func expectReadyForQuery(t *testing.T, fe *pgproto3.Frontend, want byte) {
	t.Helper()
	for {
		msg, err := fe.Receive()
		if err != nil {
			t.Fatalf("receive: %v", err)
		}
		if rfq, ok := msg.(*pgproto3.ReadyForQuery); ok {
			if rfq.TxStatus != want {
				t.Fatalf("ReadyForQuery byte = %c, want %c", rfq.TxStatus, want)
			}
			return
		}
	}
}

func TestSession_Handshake(t *testing.T) {
	fe, cleanup := newTestPair(t, &stubRouter{})
	defer cleanup()

	msg, err := fe.Receive()
	if err != nil {
		t.Fatalf("receive AuthenticationOk: %v", err)
	}
	if _, ok := msg.(*pgproto3.AuthenticationOk); !ok {
		t.Fatalf("first message = %T, want AuthenticationOk", msg)
	}

	expectReadyForQuery(t, fe, 'I')
}

func TestSession_SimpleQuery_SelectReturnsRows(t *testing.T) {
	cols := []types.Column{{Name: "id", DataType: "BIGINT"}}
	router := &stubRouter{result: &sql.Result{
		Columns: cols,
		Rows:    []types.DataRow{{types.Int64Value(1)}},
	}}
	fe, cleanup := newTestPair(t, router)
	defer cleanup()

	drainHandshake(t, fe)

	fe.Send(&pgproto3.Query{String: "SELECT * FROM t"})
	if err := fe.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	sawRowDescription, sawDataRow, sawCommandComplete := false, false, false
	for {
		msg, err := fe.Receive()
		if err != nil {
			t.Fatalf("receive: %v", err)
		}
		switch msg.(type) {
		case *pgproto3.RowDescription:
			sawRowDescription = true
		case *pgproto3.DataRow:
			sawDataRow = true
		case *pgproto3.CommandComplete:
			sawCommandComplete = true
		case *pgproto3.ReadyForQuery:
			goto done
		}
	}
done:
	if !sawRowDescription || !sawDataRow || !sawCommandComplete {
		t.Fatalf("missing messages: RowDescription=%v DataRow=%v CommandComplete=%v", sawRowDescription, sawDataRow, sawCommandComplete)
	}
}

func TestSession_Transaction_BeginBufferCommit(t *testing.T) {
	router := &stubRouter{}
	fe, cleanup := newTestPair(t, router)
	defer cleanup()
	drainHandshake(t, fe)

	fe.Send(&pgproto3.Query{String: "BEGIN; INSERT INTO t (id) VALUES (1); COMMIT;"})
	if err := fe.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	expectReadyForQuery(t, fe, 'I')

	if len(router.calls) != 1 {
		t.Fatalf("router.calls = %d, want 1 (only the buffered INSERT, executed at COMMIT)", len(router.calls))
	}
}

func TestSession_Transaction_ErrorEntersFailedState(t *testing.T) {
	fe, cleanup := newTestPair(t, &stubRouter{})
	defer cleanup()
	drainHandshake(t, fe)

	fe.Send(&pgproto3.Query{String: "BEGIN;"})
	if err := fe.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	expectReadyForQuery(t, fe, 'T')

	// A batch that fails to parse while InTransaction flips the
	// connection into Failed state (spec §4.11).
	fe.Send(&pgproto3.Query{String: "SELECT * FROM ((("})
	if err := fe.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	expectReadyForQuery(t, fe, 'E')
}

func drainHandshake(t *testing.T, fe *pgproto3.Frontend) {
	t.Helper()
	expectReadyForQuery(t, fe, 'I')
}
