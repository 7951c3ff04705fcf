package sql

import (
	"fmt"
	"strings"

	"github.com/bobboyms/shardsql/pkg/types"
)

// buildProjectedResult dispatches between the plain-projection path and
// the grouped/aggregate path, then applies ORDER BY, OFFSET and LIMIT
// uniformly (spec §4.9).
func buildProjectedResult(stmt *SelectStmt, rows []types.DataRow, cols []types.Column, colNames []string) (*Result, error) {
	hasAgg := false
	for _, p := range stmt.Projection {
		if p.IsAgg {
			hasAgg = true
			break
		}
	}

	var outCols []types.Column
	var outRows []types.DataRow

	if hasAgg {
		groups := groupRows(rows, stmt.GroupBy, colNames)
		var surviving [][]types.DataRow
		for _, g := range groups {
			if stmt.Having == nil || evalHavingCondition(stmt.Having, g, colNames) {
				surviving = append(surviving, g)
			}
		}
		outCols, outRows = buildAggregateOutput(stmt.Projection, surviving, colNames)
	} else {
		outCols, outRows = applyProjection(stmt.Projection, rows, cols, colNames)
	}

	applyOrderBy(outRows, outCols, stmt.OrderBy)
	outRows = applyOffsetLimit(outRows, stmt.Offset, stmt.Limit)

	return &Result{Columns: outCols, Rows: outRows}, nil
}

// applyProjection resolves "*" / empty to every column; otherwise each
// Column(name) item by the same three-step resolution rule (spec §4.9).
func applyProjection(items []ProjectionItem, rows []types.DataRow, cols []types.Column, colNames []string) ([]types.Column, []types.DataRow) {
	if len(items) == 0 || (len(items) == 1 && items[0].AllColumns) {
		outRows := make([]types.DataRow, len(rows))
		copy(outRows, rows)
		return cols, outRows
	}

	outCols := make([]types.Column, 0, len(items))
	idxs := make([]int, 0, len(items))
	for _, item := range items {
		if item.AllColumns {
			for i, c := range cols {
				outCols = append(outCols, c)
				idxs = append(idxs, i)
			}
			continue
		}
		idx := resolveColumn(colNames, item.Column)
		name := item.Column
		if item.Alias != "" {
			name = item.Alias
		}
		dt := "TEXT"
		if idx >= 0 {
			dt = cols[idx].DataType
		}
		outCols = append(outCols, types.Column{Name: name, DataType: dt})
		idxs = append(idxs, idx)
	}

	outRows := make([]types.DataRow, len(rows))
	for r, row := range rows {
		newRow := make(types.DataRow, len(idxs))
		for i, idx := range idxs {
			if idx < 0 {
				newRow[i] = types.Null()
			} else {
				newRow[i] = row[idx]
			}
		}
		outRows[r] = newRow
	}
	return outCols, outRows
}

// groupRows partitions rows by the tuple of GROUP BY column values,
// serialised as bytes for a stable key (spec §4.9), preserving
// first-seen group order. An empty GROUP BY list folds every row into
// one implicit group.
func groupRows(rows []types.DataRow, groupBy []string, colNames []string) [][]types.DataRow {
	if len(groupBy) == 0 {
		return [][]types.DataRow{rows}
	}

	idxs := make([]int, len(groupBy))
	for i, c := range groupBy {
		idxs[i] = resolveColumn(colNames, c)
	}

	var order []string
	groups := make(map[string][]types.DataRow)
	for _, row := range rows {
		var key strings.Builder
		for _, idx := range idxs {
			if idx < 0 {
				key.WriteByte(0)
				continue
			}
			text, isNull := row[idx].Text()
			key.WriteByte(byte(row[idx].Kind))
			if !isNull {
				key.WriteString(text)
			}
			key.WriteByte('\x1f')
		}
		k := key.String()
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], row)
	}

	out := make([][]types.DataRow, len(order))
	for i, k := range order {
		out[i] = groups[k]
	}
	return out
}

// buildAggregateOutput computes one output row per surviving group. Plain
// Column projection items reuse the group's first row (grouped columns
// are invariant within a group); aggregate items fold over the group.
func buildAggregateOutput(items []ProjectionItem, groups [][]types.DataRow, colNames []string) ([]types.Column, []types.DataRow) {
	outCols := make([]types.Column, len(items))
	for i, item := range items {
		if item.IsAgg {
			name := item.Alias
			if name == "" {
				name = aggDisplayName(item.Agg, item.AggArg)
			}
			outCols[i] = types.Column{Name: name, DataType: "DOUBLE"}
		} else {
			name := item.Column
			if item.Alias != "" {
				name = item.Alias
			}
			outCols[i] = types.Column{Name: name, DataType: "TEXT"}
		}
	}

	outRows := make([]types.DataRow, len(groups))
	for g, group := range groups {
		row := make(types.DataRow, len(items))
		for i, item := range items {
			if item.IsAgg {
				row[i] = computeAggregate(item.Agg, item.AggArg, group, colNames)
			} else if len(group) > 0 {
				idx := resolveColumn(colNames, item.Column)
				if idx >= 0 {
					row[i] = group[0][idx]
				} else {
					row[i] = types.Null()
				}
			} else {
				row[i] = types.Null()
			}
		}
		outRows[g] = row
	}
	return outCols, outRows
}

func aggDisplayName(fn AggFunc, arg string) string {
	a := arg
	if a == "" {
		a = "*"
	}
	return fmt.Sprintf("%s(%s)", aggFuncName(fn), a)
}

func aggFuncName(fn AggFunc) string {
	switch fn {
	case AggCount:
		return "COUNT"
	case AggSum:
		return "SUM"
	case AggAvg:
		return "AVG"
	case AggMin:
		return "MIN"
	case AggMax:
		return "MAX"
	default:
		return "AGG"
	}
}

// computeAggregate implements the per-function semantics of spec §4.9.
func computeAggregate(fn AggFunc, arg string, rows []types.DataRow, colNames []string) types.DataValue {
	switch fn {
	case AggCount:
		if arg == "" {
			return types.Int64Value(int64(len(rows)))
		}
		idx := resolveColumn(colNames, arg)
		if idx < 0 {
			return types.Int64Value(0)
		}
		n := 0
		for _, r := range rows {
			if !r[idx].IsNull() {
				n++
			}
		}
		return types.Int64Value(int64(n))
	case AggSum, AggAvg:
		idx := resolveColumn(colNames, arg)
		var sum float64
		count := 0
		if idx >= 0 {
			for _, r := range rows {
				if f, ok := r[idx].Numeric(); ok {
					sum += f
					count++
				}
			}
		}
		if fn == AggSum {
			return types.Float64Value(sum)
		}
		if count == 0 {
			return types.Float64Value(0.0)
		}
		return types.Float64Value(sum / float64(count))
	case AggMin, AggMax:
		idx := resolveColumn(colNames, arg)
		if idx < 0 {
			return types.Null()
		}
		var best float64
		found := false
		for _, r := range rows {
			f, ok := r[idx].Numeric()
			if !ok {
				continue
			}
			if !found {
				best, found = f, true
				continue
			}
			if fn == AggMin && f < best {
				best = f
			}
			if fn == AggMax && f > best {
				best = f
			}
		}
		if !found {
			return types.Null()
		}
		return types.Float64Value(best)
	default:
		return types.Null()
	}
}

// evalHavingCondition implements the HAVING grammar: operands may be
// columns (resolved against the group's invariant first row), literals,
// or aggregates re-computed over the group's raw rows (spec §4.8).
func evalHavingCondition(cond *Condition, group []types.DataRow, colNames []string) bool {
	if cond == nil {
		return true
	}
	if cond.IsAnd {
		return evalHavingCondition(cond.LHS, group, colNames) && evalHavingCondition(cond.RHS, group, colNames)
	}
	left := havingOperandValue(cond.Left, group, colNames)
	right := havingOperandValue(cond.Right, group, colNames)
	return applyCmp(cond.Op, left, right)
}

func havingOperandValue(op Operand, group []types.DataRow, colNames []string) types.DataValue {
	if op.IsAgg {
		return computeAggregate(op.Agg, op.AggArg, group, colNames)
	}
	if op.IsColumn {
		idx := resolveColumn(colNames, op.Column)
		if idx < 0 || len(group) == 0 {
			return types.Null()
		}
		return group[0][idx]
	}
	return op.Literal
}
