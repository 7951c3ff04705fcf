package sql

import "github.com/bobboyms/shardsql/pkg/types"

// execJoins implements spec §4.9's "SELECT with joins" algorithm: start
// from the base table's qualified rows/columns, then for each join fetch
// the right table and widen every left row by its matches (or a
// null-padded row for LeftOuterJoin misses).
func (ex *Executor) execJoins(stmt *SelectStmt, tenant string, snapshot uint64) ([]types.DataRow, []types.Column, error) {
	schema, err := ex.cat.GetTable(stmt.Table)
	if err != nil {
		return nil, nil, err
	}
	rows, err := ex.fetchAllRows(tenant, stmt.Table, schema, snapshot)
	if err != nil {
		return nil, nil, err
	}
	cols := qualify(schema.Columns, stmt.Table)

	for _, j := range stmt.Joins {
		rightSchema, err := ex.cat.GetTable(j.RightTable)
		if err != nil {
			return nil, nil, err
		}
		rightRows, err := ex.fetchAllRows(tenant, j.RightTable, rightSchema, snapshot)
		if err != nil {
			return nil, nil, err
		}
		rightCols := qualify(rightSchema.Columns, j.RightTable)

		leftNames := namesOf(cols)
		rightNames := namesOf(rightCols)
		leftIdx := resolveColumn(leftNames, j.LeftColumn)
		rightIdx := resolveColumn(rightNames, j.RightColumn)

		var joined []types.DataRow
		for _, lr := range rows {
			matched := false
			if leftIdx >= 0 && rightIdx >= 0 {
				for _, rr := range rightRows {
					if valuesEqual(lr[leftIdx], rr[rightIdx]) {
						matched = true
						joined = append(joined, combineRows(lr, rr))
					}
				}
			}
			if !matched && j.Kind == LeftOuterJoin {
				pad := make(types.DataRow, len(rightCols))
				for i := range pad {
					pad[i] = types.Null()
				}
				joined = append(joined, combineRows(lr, pad))
			}
		}

		rows = joined
		cols = append(append([]types.Column{}, cols...), rightCols...)
	}

	return rows, cols, nil
}

func combineRows(a, b types.DataRow) types.DataRow {
	out := make(types.DataRow, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
