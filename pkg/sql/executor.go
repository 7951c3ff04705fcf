// Executor dispatch, row storage, and the non-aggregate query path. It is
// grounded on the teacher's transaction/scan machinery in spirit (one
// entry point dispatching on statement shape, rows addressed by an
// allocated integer id) but rebuilt against the LSM engine's versioned
// key space instead of the teacher's per-table B+Tree heap.
package sql

import (
	"sort"
	"sync"

	"github.com/bobboyms/shardsql/pkg/catalog"
	berrors "github.com/bobboyms/shardsql/pkg/errors"
	"github.com/bobboyms/shardsql/pkg/lsm"
	"github.com/bobboyms/shardsql/pkg/mvcc"
	"github.com/bobboyms/shardsql/pkg/types"
)

// Executor is the single entry point statements run through (spec §4.9).
// One Executor is owned by exactly one shard actor; no external locking
// is required beyond what Catalog, Engine, and the row-id counters
// already provide.
type Executor struct {
	cat  *catalog.Catalog
	eng  *lsm.Engine
	mvcc *mvcc.Manager

	countersMu sync.Mutex
	counters   map[string]uint64 // "tenant|table" -> next row id
}

func New(cat *catalog.Catalog, eng *lsm.Engine, mv *mvcc.Manager) *Executor {
	return &Executor{cat: cat, eng: eng, mvcc: mv, counters: make(map[string]uint64)}
}

// Execute runs stmt for tenant (may be "") and returns its Result.
func (ex *Executor) Execute(stmt *Statement, tenant string) (*Result, error) {
	switch {
	case stmt.CreateTable != nil:
		return ex.execCreateTable(stmt.CreateTable)
	case stmt.Insert != nil:
		return ex.execInsert(stmt.Insert, tenant)
	case stmt.Select != nil:
		return ex.execSelect(stmt.Select, tenant)
	case stmt.Update != nil:
		return ex.execUpdate(stmt.Update, tenant)
	case stmt.Delete != nil:
		return ex.execDelete(stmt.Delete, tenant)
	case stmt.Begin != nil, stmt.Commit != nil, stmt.Rollback != nil:
		// Transaction control is owned by the session state machine
		// (spec §4.11); a bare Execute call is a harmless no-op.
		return &Result{}, nil
	default:
		return nil, &berrors.SqlError{Msg: "empty statement"}
	}
}

func (ex *Executor) execCreateTable(stmt *CreateTableStmt) (*Result, error) {
	schema := &types.TableSchema{Name: stmt.Table, Columns: stmt.Columns, PrimaryKey: stmt.PrimaryKey}
	if err := ex.cat.CreateTable(schema); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

func (ex *Executor) execInsert(stmt *InsertStmt, tenant string) (*Result, error) {
	schema, err := ex.cat.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}

	for _, src := range stmt.Rows {
		row := reorderInsertRow(schema, stmt.Columns, src)
		id, err := ex.nextRowID(tenant, stmt.Table)
		if err != nil {
			return nil, err
		}
		data, err := encodeRow(row, schema)
		if err != nil {
			return nil, berrors.NewKind(berrors.KindStorage, "encode row: %v", err)
		}
		version := ex.mvcc.NextVersion()
		if err := ex.eng.Put(rowKey(tenant, stmt.Table, id), data, version); err != nil {
			return nil, berrors.NewKind(berrors.KindStorage, "put row: %v", err)
		}
	}

	return &Result{RowsAffected: len(stmt.Rows)}, nil
}

func reorderInsertRow(schema *types.TableSchema, cols []string, vals []types.DataValue) types.DataRow {
	out := make(types.DataRow, len(schema.Columns))
	for i := range out {
		out[i] = types.Null()
	}
	if len(cols) == 0 {
		for i, v := range vals {
			if i < len(out) {
				out[i] = v
			}
		}
		return out
	}
	for i, c := range cols {
		if i >= len(vals) {
			break
		}
		if idx := schema.ColumnIndex(c); idx >= 0 {
			out[idx] = vals[i]
		}
	}
	return out
}

// nextRowID allocates the next row id for (tenant,table), recovering the
// counter from the engine on first use and persisting the new value
// under the reserved counter key so it survives a restart (spec §9).
func (ex *Executor) nextRowID(tenant, table string) (uint64, error) {
	ex.countersMu.Lock()
	defer ex.countersMu.Unlock()

	mapKey := tenant + "|" + table
	if _, ok := ex.counters[mapKey]; !ok {
		n, err := ex.loadPersistedCounter(tenant, table)
		if err != nil {
			return 0, err
		}
		ex.counters[mapKey] = n
	}

	id := ex.counters[mapKey]
	ex.counters[mapKey] = id + 1

	version := ex.mvcc.NextVersion()
	if err := ex.eng.Put(counterKey(tenant, table), encodeCounter(ex.counters[mapKey]), version); err != nil {
		return 0, berrors.NewKind(berrors.KindStorage, "persist row counter: %v", err)
	}
	return id, nil
}

func (ex *Executor) loadPersistedCounter(tenant, table string) (uint64, error) {
	val, ok, err := ex.eng.Get(counterKey(tenant, table), ex.mvcc.Current())
	if err != nil {
		return 0, berrors.NewKind(berrors.KindStorage, "load row counter: %v", err)
	}
	if !ok {
		return 0, nil
	}
	return decodeCounter(val), nil
}

func (ex *Executor) currentCounter(tenant, table string) (uint64, error) {
	ex.countersMu.Lock()
	defer ex.countersMu.Unlock()

	mapKey := tenant + "|" + table
	if n, ok := ex.counters[mapKey]; ok {
		return n, nil
	}
	n, err := ex.loadPersistedCounter(tenant, table)
	if err != nil {
		return 0, err
	}
	ex.counters[mapKey] = n
	return n, nil
}

// fetchAllRows implements the counter-bounded scan of spec §3/§9: rows
// are addressed `for row_id in 0..counter`, skipping ids whose latest
// visible value is a tombstone or was never written.
func (ex *Executor) fetchAllRows(tenant, table string, schema *types.TableSchema, snapshot uint64) ([]types.DataRow, error) {
	counter, err := ex.currentCounter(tenant, table)
	if err != nil {
		return nil, err
	}

	var rows []types.DataRow
	for id := uint64(0); id < counter; id++ {
		val, ok, err := ex.eng.Get(rowKey(tenant, table, id), snapshot)
		if err != nil {
			return nil, berrors.NewKind(berrors.KindStorage, "get row: %v", err)
		}
		if !ok {
			continue
		}
		row, err := decodeRow(val, schema)
		if err != nil {
			return nil, berrors.NewKind(berrors.KindStorage, "decode row: %v", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (ex *Executor) execUpdate(stmt *UpdateStmt, tenant string) (*Result, error) {
	schema, err := ex.cat.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}

	snapshot := ex.mvcc.Current()
	counter, err := ex.currentCounter(tenant, stmt.Table)
	if err != nil {
		return nil, err
	}
	colNames := namesOf(schema.Columns)

	affected := 0
	for id := uint64(0); id < counter; id++ {
		key := rowKey(tenant, stmt.Table, id)
		val, ok, err := ex.eng.Get(key, snapshot)
		if err != nil {
			return nil, berrors.NewKind(berrors.KindStorage, "get row: %v", err)
		}
		if !ok {
			continue
		}
		row, err := decodeRow(val, schema)
		if err != nil {
			return nil, berrors.NewKind(berrors.KindStorage, "decode row: %v", err)
		}
		if !evalWhereCondition(stmt.Where, row, colNames) {
			continue
		}
		for _, a := range stmt.Assignments {
			if idx := schema.ColumnIndex(a.Column); idx >= 0 {
				row[idx] = a.Literal
			}
		}
		data, err := encodeRow(row, schema)
		if err != nil {
			return nil, berrors.NewKind(berrors.KindStorage, "encode row: %v", err)
		}
		version := ex.mvcc.NextVersion()
		if err := ex.eng.Put(key, data, version); err != nil {
			return nil, berrors.NewKind(berrors.KindStorage, "put row: %v", err)
		}
		affected++
	}

	return &Result{RowsAffected: affected}, nil
}

func (ex *Executor) execDelete(stmt *DeleteStmt, tenant string) (*Result, error) {
	schema, err := ex.cat.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}

	snapshot := ex.mvcc.Current()
	counter, err := ex.currentCounter(tenant, stmt.Table)
	if err != nil {
		return nil, err
	}
	colNames := namesOf(schema.Columns)

	affected := 0
	for id := uint64(0); id < counter; id++ {
		key := rowKey(tenant, stmt.Table, id)
		val, ok, err := ex.eng.Get(key, snapshot)
		if err != nil {
			return nil, berrors.NewKind(berrors.KindStorage, "get row: %v", err)
		}
		if !ok {
			continue
		}
		row, err := decodeRow(val, schema)
		if err != nil {
			return nil, berrors.NewKind(berrors.KindStorage, "decode row: %v", err)
		}
		if !evalWhereCondition(stmt.Where, row, colNames) {
			continue
		}
		version := ex.mvcc.NextVersion()
		if err := ex.eng.Delete(key, version); err != nil {
			return nil, berrors.NewKind(berrors.KindStorage, "delete row: %v", err)
		}
		affected++
	}

	return &Result{RowsAffected: affected}, nil
}

func (ex *Executor) execSelect(stmt *SelectStmt, tenant string) (*Result, error) {
	snapshot := ex.mvcc.Current()

	var rows []types.DataRow
	var cols []types.Column

	if len(stmt.Joins) == 0 {
		schema, err := ex.cat.GetTable(stmt.Table)
		if err != nil {
			return nil, err
		}
		rows, err = ex.fetchAllRows(tenant, stmt.Table, schema, snapshot)
		if err != nil {
			return nil, err
		}
		cols = schema.Columns
	} else {
		var err error
		rows, cols, err = ex.execJoins(stmt, tenant, snapshot)
		if err != nil {
			return nil, err
		}
	}

	colNames := namesOf(cols)
	rows = filterRows(rows, stmt.Where, colNames)

	return buildProjectedResult(stmt, rows, cols, colNames)
}

func filterRows(rows []types.DataRow, cond *Condition, colNames []string) []types.DataRow {
	if cond == nil {
		return rows
	}
	var out []types.DataRow
	for _, r := range rows {
		if evalWhereCondition(cond, r, colNames) {
			out = append(out, r)
		}
	}
	return out
}

func evalWhereCondition(cond *Condition, row types.DataRow, colNames []string) bool {
	if cond == nil {
		return true
	}
	switch {
	case cond.IsAnd:
		return evalWhereCondition(cond.LHS, row, colNames) && evalWhereCondition(cond.RHS, row, colNames)
	case cond.IsOr:
		return evalWhereCondition(cond.LHS, row, colNames) || evalWhereCondition(cond.RHS, row, colNames)
	default:
		left := operandValue(cond.Left, row, colNames)
		right := operandValue(cond.Right, row, colNames)
		return applyCmp(cond.Op, left, right)
	}
}

func operandValue(op Operand, row types.DataRow, colNames []string) types.DataValue {
	if op.IsColumn {
		idx := resolveColumn(colNames, op.Column)
		if idx < 0 {
			return types.Null()
		}
		return row[idx]
	}
	return op.Literal
}

func applyCmp(op CmpOp, a, b types.DataValue) bool {
	c := compareValues(a, b)
	switch op {
	case OpEq:
		return c == 0
	case OpNeq:
		return c != 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	default:
		return false
	}
}

func applyOrderBy(rows []types.DataRow, cols []types.Column, specs []OrderSpec) {
	if len(specs) == 0 {
		return
	}
	names := namesOf(cols)
	sort.SliceStable(rows, func(i, j int) bool {
		for _, spec := range specs {
			idx := -1
			if spec.Position > 0 && spec.Position <= len(cols) {
				idx = spec.Position - 1
			} else {
				idx = resolveColumn(names, spec.Name)
			}
			if idx < 0 {
				continue
			}
			c := compareValues(rows[i][idx], rows[j][idx])
			if c == 0 {
				continue
			}
			if spec.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func applyOffsetLimit(rows []types.DataRow, offset, limit *int) []types.DataRow {
	if offset != nil {
		if *offset >= len(rows) {
			return nil
		}
		rows = rows[*offset:]
	}
	if limit != nil && *limit < len(rows) {
		if *limit < 0 {
			return nil
		}
		rows = rows[:*limit]
	}
	return rows
}
