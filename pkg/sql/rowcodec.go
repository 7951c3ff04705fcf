package sql

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/bobboyms/shardsql/pkg/types"
)

// Row serialization uses bson.D the same way the teacher's pkg/storage
// (bson.go) encodes index values: a self-describing document that
// round-trips Go's native numeric/bool/string/binary kinds without a
// hand-rolled tag byte per field.

func encodeRow(row types.DataRow, schema *types.TableSchema) ([]byte, error) {
	doc := make(bson.D, 0, len(row))
	for i, v := range row {
		name := schema.Columns[i].Name
		var bv interface{}
		switch v.Kind {
		case types.KindNull:
			bv = nil
		case types.KindInt64:
			bv = v.I
		case types.KindFloat64:
			bv = v.F
		case types.KindBool:
			bv = v.B
		case types.KindString:
			bv = v.S
		case types.KindBytes:
			bv = v.Bin
		}
		doc = append(doc, bson.E{Key: name, Value: bv})
	}
	return bson.Marshal(doc)
}

func decodeRow(data []byte, schema *types.TableSchema) (types.DataRow, error) {
	var doc bson.D
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}

	row := make(types.DataRow, len(schema.Columns))
	for i := range row {
		row[i] = types.Null()
	}
	for _, e := range doc {
		idx := schema.ColumnIndex(e.Key)
		if idx < 0 {
			continue
		}
		row[idx] = valueFromBson(e.Value)
	}
	return row, nil
}

func valueFromBson(v interface{}) types.DataValue {
	switch val := v.(type) {
	case nil:
		return types.Null()
	case int:
		return types.Int64Value(int64(val))
	case int32:
		return types.Int64Value(int64(val))
	case int64:
		return types.Int64Value(val)
	case float32:
		return types.Float64Value(float64(val))
	case float64:
		return types.Float64Value(val)
	case bool:
		return types.BoolValue(val)
	case string:
		return types.StringValue(val)
	case []byte:
		return types.BytesValue(val)
	default:
		return types.StringValue(fmt.Sprintf("%v", val))
	}
}
