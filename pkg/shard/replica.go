// Package shard implements the shard router and quorum-replicated actor
// model of spec §4.12: table-level hash routing, a bounded FIFO inbox
// per shard replica, and ack-counted quorum writes across a replica
// group, with a failover table to skip down nodes when choosing a
// shard's leader.
package shard

import (
	"context"
	"sync"

	"github.com/bobboyms/shardsql/pkg/catalog"
	berrors "github.com/bobboyms/shardsql/pkg/errors"
	"github.com/bobboyms/shardsql/pkg/lsm"
	"github.com/bobboyms/shardsql/pkg/mvcc"
	"github.com/bobboyms/shardsql/pkg/sql"
)

// request is one unit of work an actor processes off its inbox.
type request struct {
	ctx    context.Context
	stmt   *sql.Statement
	tenant string
	result chan response
}

type response struct {
	res *sql.Result
	err error
}

// Replica is one node's copy of one shard: its own LSM engine, catalog
// and MVCC manager, driven by a single goroutine draining a bounded
// inbox — the actor model of spec §4.12, grounded on the teacher's WAL
// Writer background-goroutine-plus-channel shape (pkg/wal/writer.go),
// generalized from a ticker-driven flush loop to a work-queue loop.
type Replica struct {
	NodeID  string
	ShardID int

	eng *lsm.Engine
	ex  *sql.Executor

	inbox chan *request
	done  chan struct{}

	closeOnce sync.Once
}

// NewReplica opens the replica's storage and starts its actor goroutine.
// inboxSize bounds how many in-flight requests may queue before Submit
// blocks, giving the shard natural backpressure under overload.
func NewReplica(nodeID string, shardID int, engineOpts lsm.Options, inboxSize int) (*Replica, error) {
	eng, err := lsm.Open(engineOpts)
	if err != nil {
		return nil, err
	}

	r := &Replica{
		NodeID:  nodeID,
		ShardID: shardID,
		eng:     eng,
		ex:      sql.New(catalog.New(), eng, mvcc.NewManager()),
		inbox:   make(chan *request, inboxSize),
		done:    make(chan struct{}),
	}
	go r.run()
	return r, nil
}

func (r *Replica) run() {
	for req := range r.inbox {
		res, err := r.ex.Execute(req.stmt, req.tenant)
		select {
		case req.result <- response{res: res, err: err}:
		case <-req.ctx.Done():
		}
	}
	close(r.done)
}

// Submit enqueues stmt and blocks until the actor processes it or ctx is
// cancelled, whichever comes first.
func (r *Replica) Submit(ctx context.Context, stmt *sql.Statement, tenant string) (*sql.Result, error) {
	req := &request{ctx: ctx, stmt: stmt, tenant: tenant, result: make(chan response, 1)}

	select {
	case r.inbox <- req:
	case <-ctx.Done():
		return nil, berrors.NewKind(berrors.KindStorage, "submit to shard %d: %v", r.ShardID, ctx.Err())
	}

	select {
	case resp := <-req.result:
		return resp.res, resp.err
	case <-ctx.Done():
		return nil, berrors.NewKind(berrors.KindStorage, "await shard %d: %v", r.ShardID, ctx.Err())
	}
}

// Compact triggers the replica's engine to merge its sorted runs. Safe to
// call concurrently with Submit: it only touches the engine's run list,
// never the inbox.
func (r *Replica) Compact() error {
	return r.eng.Compact()
}

// Close stops accepting work and waits for the actor goroutine to drain.
func (r *Replica) Close() error {
	r.closeOnce.Do(func() {
		close(r.inbox)
	})
	<-r.done
	return r.eng.Close()
}
