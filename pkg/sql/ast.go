// Package sql hand-rolls a small recursive-descent lexer and parser for
// the statement shapes spec §4.8 enumerates, plus the planner and
// executor that turn them into results against the LSM engine. No
// off-the-shelf SQL parser in the retrieval pack produces the tightly
// typed Plan variants this design needs directly, so this package is
// grounded on the teacher's own dispatch style (tagged structs, a
// switch on a discriminant) rather than on a borrowed parser — see
// DESIGN.md for the justification this requires.
package sql

import "github.com/bobboyms/shardsql/pkg/types"

// JoinKind distinguishes INNER from LEFT OUTER joins.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftOuterJoin
)

// Join describes one join clause lowered from ON or USING.
type Join struct {
	Kind        JoinKind
	RightTable  string
	LeftColumn  string
	RightColumn string
}

// AggFunc enumerates supported aggregate functions.
type AggFunc int

const (
	AggCount AggFunc = iota
	AggSum
	AggAvg
	AggMin
	AggMax
)

// ProjectionItem is one entry in a SELECT's projection list.
type ProjectionItem struct {
	AllColumns bool
	Column     string // for Column items; empty otherwise
	Alias      string
	IsAgg      bool
	Agg        AggFunc
	AggArg     string // column name, empty for COUNT(*)
}

// CmpOp enumerates WHERE/HAVING comparison operators.
type CmpOp int

const (
	OpEq CmpOp = iota
	OpNeq
	OpGt
	OpGte
	OpLt
	OpLte
)

// Operand is either a column reference or a literal value in a
// predicate; exactly one side of a Predicate must be a column (spec
// §4.8).
type Operand struct {
	IsColumn bool
	Column   string
	Literal  types.DataValue
	IsAgg    bool // HAVING operand referencing an aggregate
	Agg      AggFunc
	AggArg   string
}

// Condition is the recursive WHERE/HAVING grammar: a leaf Predicate or an
// And/Or combination of two sub-conditions.
type Condition struct {
	IsPredicate bool
	Left        Operand
	Op          CmpOp
	Right       Operand

	IsAnd bool
	IsOr  bool
	LHS   *Condition
	RHS   *Condition
}

// OrderSpec is one ORDER BY entry: either a name or a 1-based position.
type OrderSpec struct {
	Name       string
	Position   int // 0 means "use Name"
	Descending bool
}

// Assignment is one SET clause entry in an UPDATE statement.
type Assignment struct {
	Column  string
	Literal types.DataValue
}

// Statement is the parser's output: exactly one of the embedded pointers
// is non-nil, mirroring the teacher's tagged-struct dispatch idiom.
type Statement struct {
	CreateTable *CreateTableStmt
	Insert      *InsertStmt
	Select      *SelectStmt
	Update      *UpdateStmt
	Delete      *DeleteStmt
	Begin       *struct{}
	Commit      *struct{}
	Rollback    *struct{}
}

type CreateTableStmt struct {
	Table      string
	Columns    []types.Column
	PrimaryKey string
}

type InsertStmt struct {
	Table   string
	Columns []string // may be empty: positional insert
	Rows    [][]types.DataValue
}

type SelectStmt struct {
	Table      string
	Joins      []Join
	Projection []ProjectionItem
	Where      *Condition
	GroupBy    []string
	Having     *Condition
	OrderBy    []OrderSpec
	Limit      *int
	Offset     *int
}

type UpdateStmt struct {
	Table       string
	Assignments []Assignment
	Where       *Condition
}

type DeleteStmt struct {
	Table string
	Where *Condition
}
