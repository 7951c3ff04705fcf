package types

import (
	"fmt"
	"strings"
)

// ValueKind tags a DataValue's dynamic type.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInt64
	KindFloat64
	KindBool
	KindString
	KindBytes
)

// DataValue is the tagged variant every row cell, literal, and parameter
// binding is lowered to. Equality is value-wise; ordering rules live in
// pkg/sql (spec §4.7).
type DataValue struct {
	Kind ValueKind
	I    int64
	F    float64
	B    bool
	S    string
	Bin  []byte
}

func Null() DataValue                  { return DataValue{Kind: KindNull} }
func Int64Value(v int64) DataValue     { return DataValue{Kind: KindInt64, I: v} }
func Float64Value(v float64) DataValue { return DataValue{Kind: KindFloat64, F: v} }
func BoolValue(v bool) DataValue       { return DataValue{Kind: KindBool, B: v} }
func StringValue(v string) DataValue   { return DataValue{Kind: KindString, S: v} }
func BytesValue(v []byte) DataValue    { return DataValue{Kind: KindBytes, Bin: v} }

func (v DataValue) IsNull() bool { return v.Kind == KindNull }

// Numeric reports whether the value can participate in Sum/Avg/Min/Max
// numeric folding, returning it widened to float64.
func (v DataValue) Numeric() (float64, bool) {
	switch v.Kind {
	case KindInt64:
		return float64(v.I), true
	case KindFloat64:
		return v.F, true
	default:
		return 0, false
	}
}

// Equal implements the value-wise equality spec §3 requires. Cross-kind
// comparisons between numerics widen to float64; everything else must
// match kind and value exactly.
func (v DataValue) Equal(o DataValue) bool {
	if v.Kind == KindNull || o.Kind == KindNull {
		return v.Kind == KindNull && o.Kind == KindNull
	}
	if vf, ok := v.Numeric(); ok {
		if of, ok := o.Numeric(); ok {
			return vf == of
		}
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.B == o.B
	case KindString:
		return v.S == o.S
	case KindBytes:
		return string(v.Bin) == string(o.Bin)
	default:
		return false
	}
}

// Text renders the value the way the wire codec's text format code (0)
// requires: decimal/true-false/UTF-8/raw, per spec §6.
func (v DataValue) Text() (s string, isNull bool) {
	switch v.Kind {
	case KindNull:
		return "", true
	case KindInt64:
		return fmt.Sprintf("%d", v.I), false
	case KindFloat64:
		return formatFloat(v.F), false
	case KindBool:
		if v.B {
			return "true", false
		}
		return "false", false
	case KindString:
		return v.S, false
	case KindBytes:
		return string(v.Bin), false
	default:
		return "", true
	}
}

func formatFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Column is (name, data_type); name MAY be qualified as table.col after a
// join (spec §3).
type Column struct {
	Name     string
	DataType string
}

// Qualified returns a copy of the column whose name is prefixed with
// table, as "table.col".
func (c Column) Qualified(table string) Column {
	return Column{Name: table + "." + c.Name, DataType: c.DataType}
}

// TypeOID maps the free-form upper-cased data_type token to its wire OID
// (spec §3's fixed table). Unknown types default to TEXT's OID.
func TypeOID(dataType string) int32 {
	switch strings.ToUpper(dataType) {
	case "INT", "INT4", "INTEGER":
		return 23
	case "BIGINT", "INT8":
		return 20
	case "TEXT", "VARCHAR", "CHAR":
		return 25
	case "BOOLEAN", "BOOL":
		return 16
	case "REAL", "FLOAT", "FLOAT4":
		return 700
	case "DOUBLE", "FLOAT8":
		return 701
	case "BYTEA":
		return 17
	default:
		return 25
	}
}

// TableSchema is (name, columns, primary_key?). Created once; never
// mutated after creation (spec §3).
type TableSchema struct {
	Name       string
	Columns    []Column
	PrimaryKey string // empty if none
}

func (t *TableSchema) ColumnIndex(name string) int {
	lower := strings.ToLower(name)
	for i, c := range t.Columns {
		if strings.ToLower(c.Name) == lower {
			return i
		}
	}
	return -1
}

// DataRow is an ordered sequence of DataValue matching a schema's column
// order.
type DataRow []DataValue
