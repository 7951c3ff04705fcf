package shard

import (
	"testing"

	"github.com/bobboyms/shardsql/pkg/sql"
	"github.com/bobboyms/shardsql/pkg/types"
)

func TestRouter_RoutePlan_SelectFansOutToEveryShard(t *testing.T) {
	r := NewRouter(4)
	stmt := &sql.Statement{Select: &sql.SelectStmt{Table: "orders"}}

	plans := r.RoutePlan(stmt)
	if len(plans) != 4 {
		t.Fatalf("len(plans) = %d, want 4", len(plans))
	}
	seen := map[int]bool{}
	for _, p := range plans {
		seen[p.ShardID] = true
	}
	for i := 0; i < 4; i++ {
		if !seen[i] {
			t.Fatalf("shard %d missing from read fan-out", i)
		}
	}
}

func TestRouter_RoutePlan_WriteRoutesToHashedShard(t *testing.T) {
	r := NewRouter(4)
	stmt := &sql.Statement{Insert: &sql.InsertStmt{Table: "orders"}}

	plans := r.RoutePlan(stmt)
	if len(plans) != 1 {
		t.Fatalf("len(plans) = %d, want 1", len(plans))
	}
	want := ShardFor("orders", 4)
	if plans[0].ShardID != want {
		t.Fatalf("routed shard = %d, want %d", plans[0].ShardID, want)
	}
}

func TestRouter_RoutePlan_CreateTableHashesSameAsInsert(t *testing.T) {
	r := NewRouter(4)
	create := r.RoutePlan(&sql.Statement{CreateTable: &sql.CreateTableStmt{Table: "orders"}})
	insert := r.RoutePlan(&sql.Statement{Insert: &sql.InsertStmt{Table: "orders"}})

	if create[0].ShardID != insert[0].ShardID {
		t.Fatalf("CREATE TABLE and INSERT routed to different shards for the same table")
	}
}

func TestRouter_Aggregate_ReadsConcatenateRows(t *testing.T) {
	r := NewRouter(2)
	stmt := &sql.Statement{Select: &sql.SelectStmt{Table: "orders"}}
	cols := []types.Column{{Name: "id", DataType: "BIGINT"}}

	results := []*sql.Result{
		{Columns: cols, Rows: []types.DataRow{{types.Int64Value(1)}}},
		{Columns: cols, Rows: []types.DataRow{{types.Int64Value(2)}, {types.Int64Value(3)}}},
	}

	out := r.Aggregate(stmt, results)
	if len(out.Rows) != 3 {
		t.Fatalf("len(out.Rows) = %d, want 3", len(out.Rows))
	}
	if len(out.Columns) != 1 || out.Columns[0].Name != "id" {
		t.Fatalf("Aggregate dropped columns: %+v", out.Columns)
	}
}

func TestRouter_Aggregate_WritesSumRowsAffected(t *testing.T) {
	r := NewRouter(2)
	stmt := &sql.Statement{Insert: &sql.InsertStmt{Table: "orders"}}

	results := []*sql.Result{{RowsAffected: 2}}
	out := r.Aggregate(stmt, results)
	if out.RowsAffected != 2 {
		t.Fatalf("RowsAffected = %d, want 2", out.RowsAffected)
	}
	if out.Rows != nil {
		t.Fatalf("write aggregation should carry no rows, got %v", out.Rows)
	}
}
