package shard

import "github.com/bobboyms/shardsql/pkg/sql"

// Plan is one shard's share of a statement — every write routes to
// exactly one shard, every read fans out to all of them (spec §4.12).
type Plan struct {
	ShardID int
	Stmt    *sql.Statement
}

// Router turns one parsed statement into the set of shard Plans it must
// run against, and folds their individual Results back into one. It is
// a direct port of the original server's Coordinator::route_plan /
// aggregate (crates/datacave-server/src/coordinator.rs), carrying over
// its "reads fan out to every shard, writes route to exactly one" rule
// verbatim.
type Router struct {
	ShardCount int
}

func NewRouter(shardCount int) *Router {
	return &Router{ShardCount: shardCount}
}

// RoutePlan returns every shard a statement must be sent to.
func (r *Router) RoutePlan(stmt *sql.Statement) []Plan {
	if isReadOnly(stmt) {
		plans := make([]Plan, r.ShardCount)
		for i := 0; i < r.ShardCount; i++ {
			plans[i] = Plan{ShardID: i, Stmt: stmt}
		}
		return plans
	}

	shardID := 0
	if name, ok := tableName(stmt); ok {
		shardID = ShardFor(name, r.ShardCount)
	}
	return []Plan{{ShardID: shardID, Stmt: stmt}}
}

func isReadOnly(stmt *sql.Statement) bool {
	return stmt.Select != nil
}

func tableName(stmt *sql.Statement) (string, bool) {
	switch {
	case stmt.CreateTable != nil:
		return stmt.CreateTable.Table, true
	case stmt.Insert != nil:
		return stmt.Insert.Table, true
	case stmt.Update != nil:
		return stmt.Update.Table, true
	case stmt.Delete != nil:
		return stmt.Delete.Table, true
	case stmt.Select != nil:
		return stmt.Select.Table, true
	default:
		return "", false
	}
}

// Aggregate folds per-shard results back into one, matching the
// original's read/write split: reads concatenate rows under the first
// shard's column list and sum rows affected; writes only sum rows
// affected, since a write's shard-local result carries no rows.
func (r *Router) Aggregate(stmt *sql.Statement, results []*sql.Result) *sql.Result {
	if len(results) == 0 {
		return &sql.Result{}
	}

	if !isReadOnly(stmt) {
		total := 0
		for _, res := range results {
			total += res.RowsAffected
		}
		return &sql.Result{RowsAffected: total}
	}

	combined := &sql.Result{Columns: results[0].Columns}
	for _, res := range results {
		combined.RowsAffected += res.RowsAffected
		combined.Rows = append(combined.Rows, res.Rows...)
	}
	return combined
}
