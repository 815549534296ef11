package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/relarchive/internal/config"
	"github.com/koustreak/relarchive/internal/errs"
	"github.com/koustreak/relarchive/internal/logger"
)

// TypeSupport reports whether values of a lower-cased column type must be
// decoded before they can be embedded in a document.
type TypeSupport interface {
	Supports(typ string) bool
}

// Catalog combines database introspection with the foreign keys declared
// in configuration. It does not cache; see Cache.
type Catalog struct {
	in     Introspector
	tables config.Tables
	types  TypeSupport
	log    *logger.Logger
}

// NewCatalog returns a Catalog. A nil types flags no column for treatment
// and a nil log discards output.
func NewCatalog(in Introspector, tables config.Tables, types TypeSupport, log *logger.Logger) *Catalog {
	if log == nil {
		log = logger.Nop()
	}
	return &Catalog{in: in, tables: tables, types: types, log: log}
}

// ForeignKeysOf returns the foreign keys of table keyed by column. Keys
// declared under additionalForeignKeys are merged last and replace a
// catalog key on the same column.
func (c *Catalog) ForeignKeysOf(ctx context.Context, table TableID) (map[string]ForeignKey, error) {
	found, err := c.in.ForeignKeys(ctx, table)
	if err != nil {
		return nil, err
	}

	fks := make(map[string]ForeignKey, len(found))
	for _, fk := range found {
		fks[fk.Column] = fk
	}

	for column, target := range c.tables.AdditionalForeignKeys(table.String()) {
		refSchema, refTable, refColumn, err := config.SplitTarget(target)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput,
				fmt.Sprintf("additional foreign key %s.%s", table, column), err)
		}

		if prev, ok := fks[column]; ok {
			c.log.DebugWith("virtual foreign key overrides catalog constraint", map[string]interface{}{
				"table":    table.String(),
				"column":   column,
				"catalog":  fmt.Sprintf("%s.%s.%s", prev.RefSchema, prev.RefTable, prev.RefColumn),
				"declared": target,
			})
		}

		fks[column] = ForeignKey{
			Column:    column,
			RefSchema: refSchema,
			RefTable:  refTable,
			RefColumn: refColumn,
			Virtual:   true,
		}
	}

	return fks, nil
}

// ColumnsOf returns the columns of table in ordinal order with lower-cased
// types and the treatment flag set.
func (c *Catalog) ColumnsOf(ctx context.Context, table TableID) ([]Column, error) {
	cols, err := c.in.Columns(ctx, table)
	if err != nil {
		return nil, err
	}

	for i := range cols {
		cols[i].Type = strings.ToLower(cols[i].Type)
		cols[i].NeedsTreatment = c.types != nil && c.types.Supports(cols[i].Type)
	}
	return cols, nil
}
