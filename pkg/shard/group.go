package shard

import "sync"

// ReplicaGroup is every replica holding one shard's data, one per node
// in the cluster's replication factor.
type ReplicaGroup struct {
	ShardID  int
	Replicas []*Replica

	mu        sync.Mutex
	leaderIdx int
	leaderSet bool
}

func NewReplicaGroup(shardID int, replicas []*Replica) *ReplicaGroup {
	return &ReplicaGroup{ShardID: shardID, Replicas: replicas}
}

// Leader picks the replica that reads and writes go to first: the remembered
// leader if it's still healthy, else the first healthy replica, else
// replica 0 as a last resort (spec §4.12).
func (g *ReplicaGroup) Leader(failover *FailoverTable) *Replica {
	g.mu.Lock()
	idx := g.leaderIdx
	set := g.leaderSet
	g.mu.Unlock()

	if set && idx < len(g.Replicas) && failover.IsHealthy(g.Replicas[idx].NodeID) {
		return g.Replicas[idx]
	}

	for i, r := range g.Replicas {
		if failover.IsHealthy(r.NodeID) {
			g.SetLeader(i)
			return r
		}
	}

	if len(g.Replicas) == 0 {
		return nil
	}
	return g.Replicas[0]
}

// SetLeader records idx as the shard's current leader replica, used both
// by Leader's own promotion and by an external failover decision.
func (g *ReplicaGroup) SetLeader(idx int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.leaderIdx = idx
	g.leaderSet = true
}
