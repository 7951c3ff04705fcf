package wire

import (
	"fmt"

	"github.com/jackc/pgproto3/v2"

	"github.com/bobboyms/shardsql/pkg/types"
)

// RowDescriptionFor builds the RowDescription backend message for cols,
// deriving each field's type OID from spec §3's fixed table, size -1 and
// format code 0 (text) as spec §4.10 mandates.
func RowDescriptionFor(cols []types.Column) *pgproto3.RowDescription {
	fields := make([]pgproto3.FieldDescription, len(cols))
	for i, c := range cols {
		fields[i] = pgproto3.FieldDescription{
			Name:                 []byte(c.Name),
			TableOID:             0,
			TableAttributeNumber: 0,
			DataTypeOID:          uint32(types.TypeOID(c.DataType)),
			DataTypeSize:         -1,
			TypeModifier:         -1,
			Format:               0,
		}
	}
	return &pgproto3.RowDescription{Fields: fields}
}

// DataRowFor renders one row in text format (spec §6): Null -> -1
// length, everything else -> its Text() rendering as UTF-8 bytes.
func DataRowFor(row types.DataRow) *pgproto3.DataRow {
	values := make([][]byte, len(row))
	for i, v := range row {
		text, isNull := v.Text()
		if isNull {
			values[i] = nil
			continue
		}
		values[i] = []byte(text)
	}
	return &pgproto3.DataRow{Values: values}
}

// CommandCompleteTag implements spec §6's tag rule: literal BEGIN/COMMIT/
// ROLLBACK for transaction control, else "OK N" when rows were affected,
// else bare "OK".
func CommandCompleteTag(literal string, rowsAffected int) *pgproto3.CommandComplete {
	if literal != "" {
		return &pgproto3.CommandComplete{CommandTag: []byte(literal)}
	}
	if rowsAffected > 0 {
		return &pgproto3.CommandComplete{CommandTag: []byte(fmt.Sprintf("OK %d", rowsAffected))}
	}
	return &pgproto3.CommandComplete{CommandTag: []byte("OK")}
}

// ErrorResponseFor renders any error as a single ErrorResponse with a
// human-readable M field (spec §7).
func ErrorResponseFor(err error) *pgproto3.ErrorResponse {
	return &pgproto3.ErrorResponse{
		Severity: "ERROR",
		Code:     "XX000",
		Message:  err.Error(),
	}
}

// ReadyForQueryFor maps the session's tx sub-state byte (I/T/E) to the
// ReadyForQuery message (spec §4.11).
func ReadyForQueryFor(txStatus byte) *pgproto3.ReadyForQuery {
	return &pgproto3.ReadyForQuery{TxStatus: txStatus}
}
