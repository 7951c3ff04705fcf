package auth

import (
	"testing"

	"github.com/bobboyms/shardsql/pkg/sql"
)

func stmt(t *testing.T, src string) *sql.Statement {
	t.Helper()
	stmts, err := sql.Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return stmts[0]
}

func TestClassOf(t *testing.T) {
	cases := []struct {
		src  string
		want Class
	}{
		{"SELECT * FROM t", ClassRead},
		{"INSERT INTO t (id) VALUES (1)", ClassWrite},
		{"UPDATE t SET id = 1", ClassWrite},
		{"DELETE FROM t", ClassWrite},
		{"CREATE TABLE t (id BIGINT)", ClassAdmin},
	}
	for _, c := range cases {
		if got := ClassOf(stmt(t, c.src)); got != c.want {
			t.Fatalf("ClassOf(%q) = %v, want %v", c.src, got, c.want)
		}
	}
}

func TestAuthorize_DisabledAllowsEverything(t *testing.T) {
	if err := Authorize(nil, stmt(t, "CREATE TABLE t (id BIGINT)"), false); err != nil {
		t.Fatalf("Authorize with auth disabled: %v", err)
	}
}

func TestAuthorize_EnforcesPerClassFlags(t *testing.T) {
	reader := &Principal{Username: "r", CanRead: true}
	if err := Authorize(reader, stmt(t, "SELECT * FROM t"), true); err != nil {
		t.Fatalf("reader SELECT: %v", err)
	}
	if err := Authorize(reader, stmt(t, "INSERT INTO t (id) VALUES (1)"), true); err == nil {
		t.Fatalf("reader should be denied INSERT")
	}

	admin := &Principal{Username: "a", IsAdmin: true}
	if err := Authorize(admin, stmt(t, "CREATE TABLE t (id BIGINT)"), true); err != nil {
		t.Fatalf("admin CREATE TABLE: %v", err)
	}
}

func TestPrincipal_HasRole(t *testing.T) {
	p := &Principal{Roles: []string{"Analyst", "Writer"}}
	if !p.HasRole("analyst") {
		t.Fatalf("HasRole is case-insensitive, expected a match for \"analyst\"")
	}
	if p.HasRole("admin") {
		t.Fatalf("HasRole matched a role the principal does not have")
	}
}
