package sql

import "github.com/bobboyms/shardsql/pkg/types"

// Result is the executor's single output shape (spec §4.9). Read
// statements populate Columns/Rows and leave RowsAffected at zero;
// mutating statements do the reverse.
type Result struct {
	Columns      []types.Column
	Rows         []types.DataRow
	RowsAffected int
}

func namesOf(cols []types.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func qualify(cols []types.Column, table string) []types.Column {
	out := make([]types.Column, len(cols))
	for i, c := range cols {
		out[i] = c.Qualified(table)
	}
	return out
}
