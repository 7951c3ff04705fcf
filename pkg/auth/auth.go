// Package auth carries the authenticated principal and the role-flag
// authorization check the core performs before executing a statement
// (spec §6). Credential verification itself — password hashing, user
// directory lookup — is an external collaborator's job (spec §1); this
// package only consumes the already-authenticated result, mirroring how
// the original Rust AuthManager separates UserContext (kept here) from
// Argon2 verification (not carried over).
package auth

import (
	"strings"

	berrors "github.com/bobboyms/shardsql/pkg/errors"
	"github.com/bobboyms/shardsql/pkg/sql"
)

// Principal is the authenticated caller of one session (spec §6).
type Principal struct {
	Username string
	Roles    []string
	CanRead  bool
	CanWrite bool
	IsAdmin  bool
}

// Class is the access class a statement requires.
type Class int

const (
	ClassRead Class = iota
	ClassWrite
	ClassAdmin
)

// ClassOf derives the required access class from a parsed statement
// (spec §6): SELECT -> read, INSERT/UPDATE/DELETE -> write, anything else
// (CREATE TABLE and transaction control included) -> admin.
func ClassOf(stmt *sql.Statement) Class {
	switch {
	case stmt.Select != nil:
		return ClassRead
	case stmt.Insert != nil, stmt.Update != nil, stmt.Delete != nil:
		return ClassWrite
	default:
		return ClassAdmin
	}
}

// Authorize enforces spec §6's rule. enabled is false when the external
// collaborator reports auth is disabled for this server, in which case
// every statement is allowed regardless of principal.
func Authorize(p *Principal, stmt *sql.Statement, enabled bool) error {
	if !enabled {
		return nil
	}

	switch ClassOf(stmt) {
	case ClassRead:
		if !p.CanRead && !p.IsAdmin {
			return &berrors.AuthorizationError{Msg: "principal " + p.Username + " lacks read privilege"}
		}
	case ClassWrite:
		if !p.CanWrite && !p.IsAdmin {
			return &berrors.AuthorizationError{Msg: "principal " + p.Username + " lacks write privilege"}
		}
	case ClassAdmin:
		if !p.IsAdmin {
			return &berrors.AuthorizationError{Msg: "principal " + p.Username + " lacks admin privilege"}
		}
	}
	return nil
}

// HasRole reports whether p carries the named role, case-insensitively.
func (p *Principal) HasRole(name string) bool {
	for _, r := range p.Roles {
		if strings.EqualFold(r, name) {
			return true
		}
	}
	return false
}
