package sql

import (
	"testing"

	"github.com/bobboyms/shardsql/pkg/catalog"
	"github.com/bobboyms/shardsql/pkg/lsm"
	"github.com/bobboyms/shardsql/pkg/mvcc"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	eng, err := lsm.Open(lsm.Options{Dir: t.TempDir(), WALEnabled: true})
	if err != nil {
		t.Fatalf("lsm.Open: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return New(catalog.New(), eng, mvcc.NewManager())
}

func mustParse(t *testing.T, src string) []*Statement {
	t.Helper()
	stmts, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return stmts
}

func execAll(t *testing.T, ex *Executor, tenant, src string) *Result {
	t.Helper()
	var last *Result
	for _, stmt := range mustParse(t, src) {
		res, err := ex.Execute(stmt, tenant)
		if err != nil {
			t.Fatalf("Execute(%q): %v", src, err)
		}
		last = res
	}
	return last
}

func TestExecutor_CreateInsertSelect(t *testing.T) {
	ex := newTestExecutor(t)
	execAll(t, ex, "", "CREATE TABLE t (id BIGINT, name TEXT)")
	execAll(t, ex, "", "INSERT INTO t (id, name) VALUES (1, 'alice')")
	execAll(t, ex, "", "INSERT INTO t (id, name) VALUES (2, 'bob')")

	res := execAll(t, ex, "", "SELECT * FROM t")
	if len(res.Rows) != 2 {
		t.Fatalf("SELECT returned %d rows, want 2", len(res.Rows))
	}
}

func TestExecutor_SelectWithWhereFiltersRows(t *testing.T) {
	ex := newTestExecutor(t)
	execAll(t, ex, "", "CREATE TABLE t (id BIGINT, name TEXT)")
	execAll(t, ex, "", "INSERT INTO t (id, name) VALUES (1, 'alice')")
	execAll(t, ex, "", "INSERT INTO t (id, name) VALUES (2, 'bob')")

	res := execAll(t, ex, "", "SELECT * FROM t WHERE id = 2")
	if len(res.Rows) != 1 {
		t.Fatalf("SELECT ... WHERE id = 2 returned %d rows, want 1", len(res.Rows))
	}
	if res.Rows[0][1].S != "bob" {
		t.Fatalf("filtered row name = %q, want bob", res.Rows[0][1].S)
	}
}

func TestExecutor_UpdateMutatesVisibleRow(t *testing.T) {
	ex := newTestExecutor(t)
	execAll(t, ex, "", "CREATE TABLE t (id BIGINT, name TEXT)")
	execAll(t, ex, "", "INSERT INTO t (id, name) VALUES (1, 'alice')")

	res := execAll(t, ex, "", "UPDATE t SET name = 'alicia' WHERE id = 1")
	if res.RowsAffected != 1 {
		t.Fatalf("UPDATE RowsAffected = %d, want 1", res.RowsAffected)
	}

	sel := execAll(t, ex, "", "SELECT * FROM t WHERE id = 1")
	if sel.Rows[0][1].S != "alicia" {
		t.Fatalf("name after UPDATE = %q, want alicia", sel.Rows[0][1].S)
	}
}

func TestExecutor_DeleteTombstonesRow(t *testing.T) {
	ex := newTestExecutor(t)
	execAll(t, ex, "", "CREATE TABLE t (id BIGINT, name TEXT)")
	execAll(t, ex, "", "INSERT INTO t (id, name) VALUES (1, 'alice')")

	res := execAll(t, ex, "", "DELETE FROM t WHERE id = 1")
	if res.RowsAffected != 1 {
		t.Fatalf("DELETE RowsAffected = %d, want 1", res.RowsAffected)
	}

	sel := execAll(t, ex, "", "SELECT * FROM t")
	if len(sel.Rows) != 0 {
		t.Fatalf("SELECT after DELETE returned %d rows, want 0", len(sel.Rows))
	}
}

func TestExecutor_TenantsAreIsolated(t *testing.T) {
	ex := newTestExecutor(t)
	execAll(t, ex, "tenant-a", "CREATE TABLE t (id BIGINT)")
	execAll(t, ex, "tenant-a", "INSERT INTO t (id) VALUES (1)")

	res := execAll(t, ex, "tenant-b", "SELECT * FROM t")
	if len(res.Rows) != 0 {
		t.Fatalf("tenant-b saw %d rows written under tenant-a, want 0", len(res.Rows))
	}
}
