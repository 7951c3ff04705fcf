package session

import (
	"context"

	"github.com/jackc/pgproto3/v2"

	berrors "github.com/bobboyms/shardsql/pkg/errors"
	"github.com/bobboyms/shardsql/pkg/sql"
	"github.com/bobboyms/shardsql/pkg/wire"
)

// textOID is the OID the wire protocol uses for an unconstrained text
// parameter (spec §4.11: "default each to OID 25 (text)").
const textOID = 25

func (s *Session) handleParse(m *pgproto3.Parse) {
	oids := m.ParameterOIDs
	if len(oids) == 0 {
		n := sql.CountPlaceholders(m.Query)
		oids = make([]uint32, n)
		for i := range oids {
			oids[i] = textOID
		}
	}
	s.prepared[m.Name] = &preparedStatement{sql: m.Query, paramOIDs: oids}
	s.send(&pgproto3.ParseComplete{})
}

func (s *Session) handleBind(m *pgproto3.Bind) {
	stmt, ok := s.prepared[m.PreparedStatement]
	if !ok {
		s.send(wire.ErrorResponseFor(berrors.NewKind(berrors.KindProtocol, "unknown prepared statement %q", m.PreparedStatement)))
		return
	}
	s.portals[m.DestinationPortal] = &portal{templateSQL: stmt.sql, paramValues: m.Parameters}
	s.send(&pgproto3.BindComplete{})
}

func (s *Session) handleDescribe(ctx context.Context, m *pgproto3.Describe) {
	switch m.ObjectType {
	case 'S':
		stmt, ok := s.prepared[m.Name]
		if !ok {
			s.send(wire.ErrorResponseFor(berrors.NewKind(berrors.KindProtocol, "unknown prepared statement %q", m.Name)))
			return
		}
		if len(stmt.paramOIDs) > 0 {
			s.send(&pgproto3.ParameterDescription{ParameterOIDs: stmt.paramOIDs})
		}
		s.describeSelect(ctx, stmt.sql, make([][]byte, len(stmt.paramOIDs)))

	case 'P':
		p, ok := s.portals[m.Name]
		if !ok {
			s.send(wire.ErrorResponseFor(berrors.NewKind(berrors.KindProtocol, "unknown portal %q", m.Name)))
			return
		}
		s.describeSelect(ctx, p.templateSQL, p.paramValues)

	default:
		s.send(wire.ErrorResponseFor(berrors.NewKind(berrors.KindProtocol, "unknown describe target %c", m.ObjectType)))
	}
}

// describeSelect implements the "attempt to parse the SQL and if it is
// a single SELECT, execute it into RowDescription" rule (spec §4.11).
// Unbound parameters (the statement-target case) render as NULL so the
// shape can still be probed before Bind supplies real values.
func (s *Session) describeSelect(ctx context.Context, sqlTemplate string, paramValues [][]byte) {
	if !isSelectSQL(sqlTemplate) {
		s.send(&pgproto3.NoData{})
		return
	}

	rendered, err := substituteParams(sqlTemplate, paramValues)
	if err != nil {
		s.send(&pgproto3.NoData{})
		return
	}
	stmts, err := sql.Parse(rendered)
	if err != nil || len(stmts) != 1 || stmts[0].Select == nil {
		s.send(&pgproto3.NoData{})
		return
	}

	res, err := s.router.Execute(ctx, stmts[0], s.tenant)
	if err != nil {
		s.send(&pgproto3.NoData{})
		return
	}
	s.send(wire.RowDescriptionFor(res.Columns))
}

func (s *Session) handleExecute(ctx context.Context, m *pgproto3.Execute) {
	p, ok := s.portals[m.Portal]
	if !ok {
		s.send(wire.ErrorResponseFor(berrors.NewKind(berrors.KindProtocol, "unknown portal %q", m.Portal)))
		return
	}

	rendered, err := substituteParams(p.templateSQL, p.paramValues)
	if err != nil {
		s.send(wire.ErrorResponseFor(err))
		return
	}
	stmts, err := sql.Parse(rendered)
	if err != nil {
		s.send(wire.ErrorResponseFor(err))
		return
	}
	if len(stmts) != 1 {
		s.send(wire.ErrorResponseFor(berrors.NewKind(berrors.KindProtocol, "portal must bind exactly one statement, got %d", len(stmts))))
		return
	}

	s.execOneStatement(ctx, stmts[0], int(m.MaxRows))
}

func (s *Session) handleClose(m *pgproto3.Close) {
	switch m.ObjectType {
	case 'S':
		delete(s.prepared, m.Name)
	case 'P':
		delete(s.portals, m.Name)
	}
	s.send(&pgproto3.CloseComplete{})
}
