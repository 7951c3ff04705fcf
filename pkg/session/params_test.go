package session

import "testing"

func TestSubstituteParams_DollarAndQMarkIndependent(t *testing.T) {
	out, err := substituteParams("SELECT * FROM t WHERE a = $1 AND b = ?", [][]byte{[]byte("5")})
	if err != nil {
		t.Fatalf("substituteParams: %v", err)
	}
	want := "SELECT * FROM t WHERE a = 5 AND b = 5"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestSubstituteParams_NullValue(t *testing.T) {
	out, err := substituteParams("UPDATE t SET a = $1", [][]byte{nil})
	if err != nil {
		t.Fatalf("substituteParams: %v", err)
	}
	if out != "UPDATE t SET a = NULL" {
		t.Fatalf("got %q", out)
	}
}

func TestSubstituteParams_StringLiteralQuoting(t *testing.T) {
	out, err := substituteParams("INSERT INTO t (name) VALUES ($1)", [][]byte{[]byte("o'brien")})
	if err != nil {
		t.Fatalf("substituteParams: %v", err)
	}
	if out != "INSERT INTO t (name) VALUES ('o''brien')" {
		t.Fatalf("got %q", out)
	}
}

func TestSubstituteParams_BooleanAndFloat(t *testing.T) {
	out, err := substituteParams("SELECT $1, $2", [][]byte{[]byte("true"), []byte("3.14")})
	if err != nil {
		t.Fatalf("substituteParams: %v", err)
	}
	if out != "SELECT true, 3.14" {
		t.Fatalf("got %q", out)
	}
}

func TestSubstituteParams_SkipsTokensInsideStringLiterals(t *testing.T) {
	out, err := substituteParams("SELECT '$1 is not a param' WHERE a = $1", [][]byte{[]byte("7")})
	if err != nil {
		t.Fatalf("substituteParams: %v", err)
	}
	if out != "SELECT '$1 is not a param' WHERE a = 7" {
		t.Fatalf("got %q", out)
	}
}

func TestSubstituteParams_OutOfRangeDollarErrors(t *testing.T) {
	if _, err := substituteParams("SELECT $2", [][]byte{[]byte("1")}); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}

func TestRenderParam_LiteralNullWord(t *testing.T) {
	out, err := renderParam([]byte("NULL"))
	if err != nil {
		t.Fatalf("renderParam: %v", err)
	}
	if out != "NULL" {
		t.Fatalf("got %q, want NULL", out)
	}
}
