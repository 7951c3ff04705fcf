package wire

import (
	"errors"
	"testing"

	"github.com/bobboyms/shardsql/pkg/types"
)

func TestRowDescriptionFor_MapsDataTypeOIDs(t *testing.T) {
	desc := RowDescriptionFor([]types.Column{{Name: "id", DataType: "BIGINT"}, {Name: "name", DataType: "TEXT"}})
	if len(desc.Fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(desc.Fields))
	}
	if desc.Fields[0].DataTypeOID != 20 {
		t.Fatalf("BIGINT OID = %d, want 20", desc.Fields[0].DataTypeOID)
	}
	if desc.Fields[1].DataTypeOID != 25 {
		t.Fatalf("TEXT OID = %d, want 25", desc.Fields[1].DataTypeOID)
	}
}

func TestDataRowFor_NullRendersAsNilValue(t *testing.T) {
	row := types.DataRow{types.Int64Value(5), types.Null()}
	dr := DataRowFor(row)
	if string(dr.Values[0]) != "5" {
		t.Fatalf("Values[0] = %q, want \"5\"", dr.Values[0])
	}
	if dr.Values[1] != nil {
		t.Fatalf("Values[1] = %q, want nil for NULL", dr.Values[1])
	}
}

func TestCommandCompleteTag(t *testing.T) {
	if tag := string(CommandCompleteTag("BEGIN", 0).CommandTag); tag != "BEGIN" {
		t.Fatalf("literal tag = %q, want BEGIN", tag)
	}
	if tag := string(CommandCompleteTag("", 3).CommandTag); tag != "OK 3" {
		t.Fatalf("rows-affected tag = %q, want \"OK 3\"", tag)
	}
	if tag := string(CommandCompleteTag("", 0).CommandTag); tag != "OK" {
		t.Fatalf("bare tag = %q, want OK", tag)
	}
}

func TestErrorResponseFor(t *testing.T) {
	resp := ErrorResponseFor(errors.New("boom"))
	if resp.Message != "boom" {
		t.Fatalf("Message = %q, want boom", resp.Message)
	}
	if resp.Severity != "ERROR" {
		t.Fatalf("Severity = %q, want ERROR", resp.Severity)
	}
}

func TestReadyForQueryFor(t *testing.T) {
	if got := ReadyForQueryFor('T').TxStatus; got != 'T' {
		t.Fatalf("TxStatus = %c, want T", got)
	}
}
