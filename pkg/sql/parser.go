package sql

import (
	"strconv"
	"strings"

	berrors "github.com/bobboyms/shardsql/pkg/errors"
	"github.com/bobboyms/shardsql/pkg/types"
)

// Parse splits src on top-level ';' boundaries and parses each piece into
// a Statement, matching the session loop's need to run a batch in order
// (spec §4.11).
func Parse(src string) ([]*Statement, error) {
	l := newLexer(src)
	toks, err := l.tokenize()
	if err != nil {
		return nil, err
	}

	var batches [][]token
	var cur []token
	for _, t := range toks {
		if t.kind == tokPunct && t.text == ";" {
			if len(cur) > 0 {
				batches = append(batches, cur)
			}
			cur = nil
			continue
		}
		if t.kind == tokEOF {
			break
		}
		cur = append(cur, t)
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}

	var stmts []*Statement
	for _, b := range batches {
		b = append(b, token{kind: tokEOF})
		p := &parser{toks: b}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) isKeyword(kw string) bool {
	t := p.cur()
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func (p *parser) eatKeyword(kw string) error {
	if !p.isKeyword(kw) {
		return &berrors.SqlError{Msg: "expected keyword " + kw + ", got " + p.cur().text}
	}
	p.advance()
	return nil
}

func (p *parser) eatPunct(s string) error {
	t := p.cur()
	if t.kind != tokPunct || t.text != s {
		return &berrors.SqlError{Msg: "expected '" + s + "', got " + t.text}
	}
	p.advance()
	return nil
}

func (p *parser) expectIdent() (string, error) {
	t := p.cur()
	if t.kind != tokIdent {
		return "", &berrors.SqlError{Msg: "expected identifier, got " + t.text}
	}
	p.advance()
	return t.text, nil
}

func (p *parser) parseStatement() (*Statement, error) {
	switch {
	case p.isKeyword("CREATE"):
		return p.parseCreateTable()
	case p.isKeyword("INSERT"):
		return p.parseInsert()
	case p.isKeyword("SELECT"):
		return p.parseSelect()
	case p.isKeyword("UPDATE"):
		return p.parseUpdate()
	case p.isKeyword("DELETE"):
		return p.parseDelete()
	case p.isKeyword("BEGIN"):
		p.advance()
		return &Statement{Begin: &struct{}{}}, nil
	case p.isKeyword("START"):
		p.advance()
		if err := p.eatKeyword("TRANSACTION"); err != nil {
			return nil, err
		}
		return &Statement{Begin: &struct{}{}}, nil
	case p.isKeyword("COMMIT"):
		p.advance()
		return &Statement{Commit: &struct{}{}}, nil
	case p.isKeyword("ROLLBACK"):
		p.advance()
		return &Statement{Rollback: &struct{}{}}, nil
	default:
		return nil, &berrors.SqlError{Msg: "unsupported SQL statement starting at " + p.cur().text}
	}
}

func (p *parser) parseCreateTable() (*Statement, error) {
	p.advance() // CREATE
	if err := p.eatKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.eatPunct("("); err != nil {
		return nil, err
	}

	var cols []types.Column
	var pk string
	for {
		if p.isKeyword("PRIMARY") {
			p.advance()
			if err := p.eatKeyword("KEY"); err != nil {
				return nil, err
			}
			if err := p.eatPunct("("); err != nil {
				return nil, err
			}
			col, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			pk = col
			// swallow remaining columns in a composite PK list; only the
			// first is kept, per spec §4.8.
			for p.cur().kind == tokPunct && p.cur().text == "," {
				p.advance()
				if _, err := p.expectIdent(); err != nil {
					return nil, err
				}
			}
			if err := p.eatPunct(")"); err != nil {
				return nil, err
			}
		} else {
			colName, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			dataType, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			cols = append(cols, types.Column{Name: colName, DataType: strings.ToUpper(dataType)})
			if p.isKeyword("PRIMARY") {
				p.advance()
				if err := p.eatKeyword("KEY"); err != nil {
					return nil, err
				}
				if pk == "" {
					pk = colName
				}
			}
		}

		if p.cur().kind == tokPunct && p.cur().text == "," {
			p.advance()
			continue
		}
		break
	}

	if err := p.eatPunct(")"); err != nil {
		return nil, err
	}

	return &Statement{CreateTable: &CreateTableStmt{Table: name, Columns: cols, PrimaryKey: pk}}, nil
}

func (p *parser) parseInsert() (*Statement, error) {
	p.advance() // INSERT
	if err := p.eatKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	var cols []string
	if p.cur().kind == tokPunct && p.cur().text == "(" {
		p.advance()
		for {
			c, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			cols = append(cols, c)
			if p.cur().kind == tokPunct && p.cur().text == "," {
				p.advance()
				continue
			}
			break
		}
		if err := p.eatPunct(")"); err != nil {
			return nil, err
		}
	}

	if err := p.eatKeyword("VALUES"); err != nil {
		return nil, err
	}

	var rows [][]types.DataValue
	for {
		if err := p.eatPunct("("); err != nil {
			return nil, err
		}
		var row []types.DataValue
		for {
			v, err := p.parseLiteral()
			if err != nil {
				return nil, err
			}
			row = append(row, v)
			if p.cur().kind == tokPunct && p.cur().text == "," {
				p.advance()
				continue
			}
			break
		}
		if err := p.eatPunct(")"); err != nil {
			return nil, err
		}
		rows = append(rows, row)

		if p.cur().kind == tokPunct && p.cur().text == "," {
			p.advance()
			continue
		}
		break
	}

	return &Statement{Insert: &InsertStmt{Table: table, Columns: cols, Rows: rows}}, nil
}

// parseLiteral lowers one literal token by the fixed rule in spec §4.8:
// integer -> Int64, other numeric -> Float64, quoted string -> String,
// boolean keyword -> Bool, NULL -> Null, otherwise -> Null. It also
// accepts $N / ? placeholders so textual parameter substitution (spec
// §4.11) can feed rendered literals back through this same parser.
func (p *parser) parseLiteral() (types.DataValue, error) {
	t := p.cur()
	switch t.kind {
	case tokNumber:
		p.advance()
		if strings.Contains(t.text, ".") {
			f, err := strconv.ParseFloat(t.text, 64)
			if err != nil {
				return types.Null(), &berrors.SqlError{Msg: "invalid numeric literal: " + t.text}
			}
			return types.Float64Value(f), nil
		}
		i, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return types.Null(), &berrors.SqlError{Msg: "invalid integer literal: " + t.text}
		}
		return types.Int64Value(i), nil
	case tokString:
		p.advance()
		return types.StringValue(t.text), nil
	case tokIdent:
		switch strings.ToUpper(t.text) {
		case "TRUE":
			p.advance()
			return types.BoolValue(true), nil
		case "FALSE":
			p.advance()
			return types.BoolValue(false), nil
		case "NULL":
			p.advance()
			return types.Null(), nil
		}
		return types.Null(), &berrors.SqlError{Msg: "expected literal, got identifier " + t.text}
	default:
		return types.Null(), &berrors.SqlError{Msg: "expected literal, got " + t.text}
	}
}

func (p *parser) parseSelect() (*Statement, error) {
	p.advance() // SELECT
	proj, err := p.parseProjection()
	if err != nil {
		return nil, err
	}
	if err := p.eatKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	stmt := &SelectStmt{Table: table, Projection: proj}

	for p.isKeyword("JOIN") || p.isKeyword("INNER") || p.isKeyword("LEFT") {
		join, err := p.parseJoin()
		if err != nil {
			return nil, err
		}
		stmt.Joins = append(stmt.Joins, *join)
	}

	if p.isKeyword("WHERE") {
		p.advance()
		cond, err := p.parseOrExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = cond
	}

	if p.isKeyword("GROUP") {
		p.advance()
		if err := p.eatKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			c, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			stmt.GroupBy = append(stmt.GroupBy, c)
			if p.cur().kind == tokPunct && p.cur().text == "," {
				p.advance()
				continue
			}
			break
		}
	}

	if p.isKeyword("HAVING") {
		p.advance()
		cond, err := p.parseHavingAnd()
		if err != nil {
			return nil, err
		}
		stmt.Having = cond
	}

	if p.isKeyword("ORDER") {
		p.advance()
		if err := p.eatKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			spec, err := p.parseOrderSpec()
			if err != nil {
				return nil, err
			}
			stmt.OrderBy = append(stmt.OrderBy, *spec)
			if p.cur().kind == tokPunct && p.cur().text == "," {
				p.advance()
				continue
			}
			break
		}
	}

	if p.isKeyword("LIMIT") {
		p.advance()
		n, err := p.expectInt()
		if err != nil {
			return nil, err
		}
		stmt.Limit = &n
	}

	if p.isKeyword("OFFSET") {
		p.advance()
		n, err := p.expectInt()
		if err != nil {
			return nil, err
		}
		stmt.Offset = &n
	}

	return &Statement{Select: stmt}, nil
}

func (p *parser) expectInt() (int, error) {
	t := p.cur()
	if t.kind != tokNumber {
		return 0, &berrors.SqlError{Msg: "expected integer, got " + t.text}
	}
	p.advance()
	n, err := strconv.Atoi(t.text)
	if err != nil {
		return 0, &berrors.SqlError{Msg: "invalid integer: " + t.text}
	}
	return n, nil
}

func (p *parser) parseProjection() ([]ProjectionItem, error) {
	var items []ProjectionItem
	for {
		if p.cur().kind == tokPunct && p.cur().text == "*" {
			p.advance()
			items = append(items, ProjectionItem{AllColumns: true})
		} else if agg, ok := p.peekAggFunc(); ok {
			p.advance() // function name
			p.advance() // (
			var arg string
			if p.cur().kind == tokPunct && p.cur().text == "*" {
				p.advance()
			} else {
				a, err := p.expectIdent()
				if err != nil {
					return nil, err
				}
				arg = a
			}
			if err := p.eatPunct(")"); err != nil {
				return nil, err
			}
			item := ProjectionItem{IsAgg: true, Agg: agg, AggArg: arg}
			if alias, ok := p.maybeAlias(); ok {
				item.Alias = alias
			}
			items = append(items, item)
		} else {
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			item := ProjectionItem{Column: name}
			if alias, ok := p.maybeAlias(); ok {
				item.Alias = alias
			}
			items = append(items, item)
		}

		if p.cur().kind == tokPunct && p.cur().text == "," {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *parser) peekAggFunc() (AggFunc, bool) {
	t := p.cur()
	if t.kind != tokIdent {
		return 0, false
	}
	next := p.toks[p.pos+1]
	if next.kind != tokPunct || next.text != "(" {
		return 0, false
	}
	switch strings.ToUpper(t.text) {
	case "COUNT":
		return AggCount, true
	case "SUM":
		return AggSum, true
	case "AVG":
		return AggAvg, true
	case "MIN":
		return AggMin, true
	case "MAX":
		return AggMax, true
	}
	return 0, false
}

func (p *parser) maybeAlias() (string, bool) {
	if p.isKeyword("AS") {
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return "", false
		}
		return name, true
	}
	if p.cur().kind == tokIdent && !p.isReservedWord(p.cur().text) {
		name := p.cur().text
		p.advance()
		return name, true
	}
	return "", false
}

func (p *parser) isReservedWord(s string) bool {
	switch strings.ToUpper(s) {
	case "FROM", "WHERE", "GROUP", "HAVING", "ORDER", "LIMIT", "OFFSET", "JOIN", "INNER", "LEFT", "OUTER", "ON", "USING":
		return true
	}
	return false
}

func (p *parser) parseJoin() (*Join, error) {
	kind := InnerJoin
	if p.isKeyword("LEFT") {
		kind = LeftOuterJoin
		p.advance()
		if p.isKeyword("OUTER") {
			p.advance()
		}
	} else if p.isKeyword("INNER") {
		p.advance()
	}
	if err := p.eatKeyword("JOIN"); err != nil {
		return nil, err
	}
	rightTable, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	j := &Join{Kind: kind, RightTable: rightTable}

	if p.isKeyword("ON") {
		p.advance()
		left, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.eatPunct("="); err != nil {
			return nil, err
		}
		right, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		j.LeftColumn = left
		j.RightColumn = right
	} else if p.isKeyword("USING") {
		p.advance()
		if err := p.eatPunct("("); err != nil {
			return nil, err
		}
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.eatPunct(")"); err != nil {
			return nil, err
		}
		j.LeftColumn = col
		j.RightColumn = col
	} else {
		return nil, &berrors.SqlError{Msg: "join requires ON or USING"}
	}

	return j, nil
}

func (p *parser) parseOrderSpec() (*OrderSpec, error) {
	spec := &OrderSpec{}
	t := p.cur()
	if t.kind == tokNumber {
		p.advance()
		n, err := strconv.Atoi(t.text)
		if err != nil {
			return nil, &berrors.SqlError{Msg: "invalid ORDER BY position: " + t.text}
		}
		spec.Position = n
	} else {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		spec.Name = name
	}
	if p.isKeyword("ASC") {
		p.advance()
	} else if p.isKeyword("DESC") {
		p.advance()
		spec.Descending = true
	}
	return spec, nil
}

// parseOrExpr / parseAndExpr implement "AND binds tighter than OR" (spec
// §4.8) with classic precedence-climbing recursive descent.
func (p *parser) parseOrExpr() (*Condition, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		p.advance()
		right, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		left = &Condition{IsOr: true, LHS: left, RHS: right}
	}
	return left, nil
}

func (p *parser) parseAndExpr() (*Condition, error) {
	left, err := p.parsePrimaryCondition()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		p.advance()
		right, err := p.parsePrimaryCondition()
		if err != nil {
			return nil, err
		}
		left = &Condition{IsAnd: true, LHS: left, RHS: right}
	}
	return left, nil
}

func (p *parser) parsePrimaryCondition() (*Condition, error) {
	if p.cur().kind == tokPunct && p.cur().text == "(" {
		p.advance()
		cond, err := p.parseOrExpr()
		if err != nil {
			return nil, err
		}
		if err := p.eatPunct(")"); err != nil {
			return nil, err
		}
		return cond, nil
	}
	return p.parsePredicate()
}

func (p *parser) parsePredicate() (*Condition, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	op, err := p.parseCmpOp()
	if err != nil {
		return nil, err
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &Condition{IsPredicate: true, Left: left, Op: op, Right: right}, nil
}

// parseHavingAnd implements the HAVING grammar: same operators, operands
// may additionally be aggregates, combined by AND only (spec §4.8).
func (p *parser) parseHavingAnd() (*Condition, error) {
	left, err := p.parseHavingPredicate()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		p.advance()
		right, err := p.parseHavingPredicate()
		if err != nil {
			return nil, err
		}
		left = &Condition{IsAnd: true, LHS: left, RHS: right}
	}
	return left, nil
}

func (p *parser) parseHavingPredicate() (*Condition, error) {
	left, err := p.parseHavingOperand()
	if err != nil {
		return nil, err
	}
	op, err := p.parseCmpOp()
	if err != nil {
		return nil, err
	}
	right, err := p.parseHavingOperand()
	if err != nil {
		return nil, err
	}
	return &Condition{IsPredicate: true, Left: left, Op: op, Right: right}, nil
}

func (p *parser) parseHavingOperand() (Operand, error) {
	if agg, ok := p.peekAggFunc(); ok {
		p.advance()
		p.advance() // (
		var arg string
		if p.cur().kind == tokPunct && p.cur().text == "*" {
			p.advance()
		} else {
			a, err := p.expectIdent()
			if err != nil {
				return Operand{}, err
			}
			arg = a
		}
		if err := p.eatPunct(")"); err != nil {
			return Operand{}, err
		}
		return Operand{IsAgg: true, Agg: agg, AggArg: arg}, nil
	}
	return p.parseOperand()
}

func (p *parser) parseOperand() (Operand, error) {
	t := p.cur()
	if t.kind == tokIdent && !isLiteralKeyword(t.text) {
		p.advance()
		return Operand{IsColumn: true, Column: t.text}, nil
	}
	v, err := p.parseLiteral()
	if err != nil {
		return Operand{}, err
	}
	return Operand{Literal: v}, nil
}

func isLiteralKeyword(s string) bool {
	switch strings.ToUpper(s) {
	case "TRUE", "FALSE", "NULL":
		return true
	}
	return false
}

func (p *parser) parseCmpOp() (CmpOp, error) {
	t := p.cur()
	if t.kind != tokPunct {
		return 0, &berrors.SqlError{Msg: "expected comparison operator, got " + t.text}
	}
	p.advance()
	switch t.text {
	case "=":
		return OpEq, nil
	case "<>":
		return OpNeq, nil
	case ">":
		return OpGt, nil
	case ">=":
		return OpGte, nil
	case "<":
		return OpLt, nil
	case "<=":
		return OpLte, nil
	default:
		return 0, &berrors.SqlError{Msg: "unknown comparison operator " + t.text}
	}
}

func (p *parser) parseUpdate() (*Statement, error) {
	p.advance() // UPDATE
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.eatKeyword("SET"); err != nil {
		return nil, err
	}

	var assigns []Assignment
	for {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.eatPunct("="); err != nil {
			return nil, err
		}
		val, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		assigns = append(assigns, Assignment{Column: col, Literal: val})

		if p.cur().kind == tokPunct && p.cur().text == "," {
			p.advance()
			continue
		}
		break
	}

	stmt := &UpdateStmt{Table: table, Assignments: assigns}
	if p.isKeyword("WHERE") {
		p.advance()
		cond, err := p.parseOrExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = cond
	}

	return &Statement{Update: stmt}, nil
}

func (p *parser) parseDelete() (*Statement, error) {
	p.advance() // DELETE
	if err := p.eatKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	stmt := &DeleteStmt{Table: table}
	if p.isKeyword("WHERE") {
		p.advance()
		cond, err := p.parseOrExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = cond
	}

	return &Statement{Delete: stmt}, nil
}
