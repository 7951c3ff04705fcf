package errors

import (
	"fmt"
)

type TableAlreadyExistsError struct {
	Name string
}

func (e *TableAlreadyExistsError) Error() string {
	return fmt.Sprintf("table %q already exists", e.Name)
}

type TableNotFoundError struct {
	Name string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %q not found", e.Name)
}

type TwoPrimarykeysError struct {
	Total int
}

func (e *TwoPrimarykeysError) Error() string {
	return fmt.Sprintf("You have defined a total of %d primary keys. Only one primary key is allowed.", e.Total)
}

type PrimarykeyNotDefinedError struct {
	TableName string
}

func (e *PrimarykeyNotDefinedError) Error() string {
	return fmt.Sprintf("Primary key not defined. Table name: %q", e.TableName)
}

type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key violation: key %q already exists in unique index", e.Key)
}

type IndexNotFoundError struct {
	Name string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("index %q not found", e.Name)
}

type InvalidKeyTypeError struct {
	Name     string
	TypeName string
}

func (e *InvalidKeyTypeError) Error() string {
	return fmt.Sprintf("invalid key type for index %q: %s", e.Name, e.TypeName)
}

// Kind classifies an error the session loop can surface as a single
// ErrorResponse. See spec §7.
type Kind int

const (
	KindCatalog Kind = iota
	KindStorage
	KindSql
	KindProtocol
	KindNotSupported
	KindAuthn
	KindAuthz
	KindQuorum
)

func (k Kind) String() string {
	switch k {
	case KindCatalog:
		return "catalog"
	case KindStorage:
		return "storage"
	case KindSql:
		return "sql"
	case KindProtocol:
		return "protocol"
	case KindNotSupported:
		return "not_supported"
	case KindAuthn:
		return "authentication"
	case KindAuthz:
		return "authorization"
	case KindQuorum:
		return "quorum"
	default:
		return "unknown"
	}
}

// KindError wraps a message with one of the §7 classifications so the
// session loop can render a human-readable ErrorResponse without needing
// to re-derive what went wrong from the error's dynamic type.
type KindError struct {
	K   Kind
	Msg string
}

func (e *KindError) Error() string {
	return e.Msg
}

func NewKind(k Kind, format string, args ...any) *KindError {
	return &KindError{K: k, Msg: fmt.Sprintf(format, args...)}
}

// SqlError reports an unsupported SQL shape, unresolved column reference,
// or a GROUP BY reference that cannot be found.
type SqlError struct {
	Msg string
}

func (e *SqlError) Error() string { return e.Msg }

// ProtocolError reports a short frame, bad type byte, or unexpected
// message ordering on the wire.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return e.Msg }

// NotSupportedError reports an intentionally unimplemented feature.
type NotSupportedError struct {
	Feature string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("not supported: %s", e.Feature)
}

// AuthenticationError reports a failed credential check.
type AuthenticationError struct {
	Msg string
}

func (e *AuthenticationError) Error() string { return e.Msg }

// AuthorizationError reports a principal lacking the required role flag.
type AuthorizationError struct {
	Msg string
}

func (e *AuthorizationError) Error() string { return e.Msg }

// QuorumError reports a replicated write that failed to collect
// floor(RF/2)+1 acknowledgements.
type QuorumError struct {
	Shard    int
	Needed   int
	Received int
}

func (e *QuorumError) Error() string {
	return fmt.Sprintf("quorum not reached on shard %d: got %d acks, needed %d", e.Shard, e.Received, e.Needed)
}
