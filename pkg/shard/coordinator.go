package shard

import (
	"context"
	"sync"

	berrors "github.com/bobboyms/shardsql/pkg/errors"
	"github.com/bobboyms/shardsql/pkg/sql"
)

// Coordinator is the cluster-facing entry point: route one statement to
// its shard(s), replicate writes to quorum, and fold the per-shard
// results back together (spec §4.12).
type Coordinator struct {
	router            *Router
	groups            []*ReplicaGroup // indexed by shard id
	failover          *FailoverTable
	replicationFactor int
}

func NewCoordinator(shardCount, replicationFactor int, groups []*ReplicaGroup, failover *FailoverTable) *Coordinator {
	return &Coordinator{
		router:            NewRouter(shardCount),
		groups:            groups,
		failover:          failover,
		replicationFactor: replicationFactor,
	}
}

// Quorum is the minimum ack count a replicated write needs: floor(RF/2)+1.
func Quorum(replicationFactor int) int {
	return replicationFactor/2 + 1
}

// Execute routes stmt, replicates writes to quorum, fans reads out to
// every shard, and aggregates the results.
func (c *Coordinator) Execute(ctx context.Context, stmt *sql.Statement, tenant string) (*sql.Result, error) {
	plans := c.router.RoutePlan(stmt)

	if isReadOnly(stmt) {
		results, err := c.fanOutReads(ctx, plans, tenant)
		if err != nil {
			return nil, err
		}
		return c.router.Aggregate(stmt, results), nil
	}

	res, err := c.replicateWrite(ctx, plans[0], tenant)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Coordinator) fanOutReads(ctx context.Context, plans []Plan, tenant string) ([]*sql.Result, error) {
	results := make([]*sql.Result, len(plans))
	errs := make([]error, len(plans))

	var wg sync.WaitGroup
	for i, plan := range plans {
		wg.Add(1)
		go func(i int, plan Plan) {
			defer wg.Done()
			group := c.groups[plan.ShardID]
			leader := group.Leader(c.failover)
			if leader == nil {
				errs[i] = berrors.NewKind(berrors.KindQuorum, "shard %d has no reachable replica", plan.ShardID)
				return
			}
			res, err := leader.Submit(ctx, plan.Stmt, tenant)
			results[i], errs[i] = res, err
		}(i, plan)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// replicateWrite runs plan's statement on the shard's leader first, then
// fans it out to the remaining healthy replicas and requires
// floor(RF/2)+1 total acknowledgements, leader included — the same
// leader-then-followers order the original server's execute_plan uses
// (crates/datacave-server/src/server.rs). A leader failure fails the
// whole call immediately rather than counting toward quorum; a follower
// failure marks that node unhealthy and is tolerated as long as quorum
// is still met.
func (c *Coordinator) replicateWrite(ctx context.Context, plan Plan, tenant string) (*sql.Result, error) {
	group := c.groups[plan.ShardID]
	leader := group.Leader(c.failover)
	if leader == nil {
		return nil, berrors.NewKind(berrors.KindQuorum, "shard %d has no reachable replica", plan.ShardID)
	}

	leaderResult, err := leader.Submit(ctx, plan.Stmt, tenant)
	if err != nil {
		return nil, err
	}

	needed := Quorum(c.replicationFactor)
	acked := 1 // the leader

	var followers []*Replica
	for _, r := range group.Replicas {
		if r != leader && c.failover.IsHealthy(r.NodeID) {
			followers = append(followers, r)
		}
	}

	acks := make([]bool, len(followers))
	var wg sync.WaitGroup
	for i, r := range followers {
		wg.Add(1)
		go func(i int, r *Replica) {
			defer wg.Done()
			if _, err := r.Submit(ctx, plan.Stmt, tenant); err != nil {
				c.failover.MarkUnhealthy(r.NodeID)
				return
			}
			acks[i] = true
		}(i, r)
	}
	wg.Wait()

	for _, ok := range acks {
		if ok {
			acked++
		}
	}

	if acked < needed {
		return nil, &berrors.QuorumError{Shard: plan.ShardID, Needed: needed, Received: acked}
	}
	return leaderResult, nil
}
