package naming

import (
	"github.com/koustreak/relarchive/internal/document"
	"github.com/koustreak/relarchive/internal/errs"
	"github.com/koustreak/relarchive/internal/schema"
)

// Mappings supplies the explicit per-table names, keyed by "schema.table"
// and then by column. config.Tables implements it.
type Mappings interface {
	MappedEntities(table string) map[string]string
}

// Resolver names embedded entities from explicit mappings, falling back to
// a default Func. Results are not memoized.
type Resolver struct {
	mappings Mappings
	fallback Func
}

// NewResolver returns a Resolver. fallback may be nil.
func NewResolver(mappings Mappings, fallback Func) *Resolver {
	return &Resolver{mappings: mappings, fallback: fallback}
}

// Resolve returns the name under which the document referenced by column
// is embedded in row. It fails with ErrKindMapping when no rule applies,
// when the name equals the column itself, or when row already has a field
// of that name.
func (r *Resolver) Resolve(table schema.TableID, column string, row *document.Row) (string, error) {
	var name string
	mapped, ok := "", false
	if r.mappings != nil {
		mapped, ok = r.mappings.MappedEntities(table.String())[column]
	}

	switch {
	case ok:
		name = mapped
	case r.fallback != nil:
		var err error
		if name, err = r.fallback(column); err != nil {
			return "", err
		}
	default:
		return "", errs.Newf(errs.ErrKindMapping, "no mapping for column %s in table %s", column, table)
	}

	if name == "" {
		return "", errs.Newf(errs.ErrKindMapping, "mapping for %s.%s is empty", table, column)
	}
	if name == column {
		return "", errs.Newf(errs.ErrKindMapping, "mapping for %s.%s collides with source column name", table, column)
	}
	if row.Has(name) {
		return "", errs.Newf(errs.ErrKindMapping, "mapped entity %q for %s.%s already exists as a field", name, table, column)
	}
	return name, nil
}
