// Package catalog tracks table schemas. It generalizes the teacher's
// TableMetaData (pkg/storage/table.go): same mutex-guarded name->entry
// map and create-once-fail-on-duplicate shape, but an entry here is a
// plain types.TableSchema instead of a map of per-column B+Tree indices,
// since indexing now lives one level down in the LSM engine via encoded
// row keys (spec §4.7).
package catalog

import (
	"strings"
	"sync"

	berrors "github.com/bobboyms/shardsql/pkg/errors"
	"github.com/bobboyms/shardsql/pkg/types"
)

// Catalog is not persisted (spec §4.7, §9): schema is lost on restart.
// This is an acknowledged, deliberate limitation, not an oversight.
type Catalog struct {
	mu     sync.RWMutex
	tables map[string]*types.TableSchema
}

func New() *Catalog {
	return &Catalog{tables: make(map[string]*types.TableSchema)}
}

// CreateTable registers schema under its own name. Table names are
// case-preserving but compared case-insensitively for uniqueness, the
// same convention the teacher's executor-facing lookups use elsewhere.
func (c *Catalog) CreateTable(schema *types.TableSchema) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := strings.ToLower(schema.Name)
	if _, exists := c.tables[key]; exists {
		return &berrors.TableAlreadyExistsError{Name: schema.Name}
	}
	c.tables[key] = schema
	return nil
}

// GetTable returns the schema registered under name.
func (c *Catalog) GetTable(name string) (*types.TableSchema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.tables[strings.ToLower(name)]
	if !ok {
		return nil, &berrors.TableNotFoundError{Name: name}
	}
	return t, nil
}

// ListTables returns every registered schema in no particular order.
func (c *Catalog) ListTables() []*types.TableSchema {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*types.TableSchema, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t)
	}
	return out
}
