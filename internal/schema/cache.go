package schema

import (
	"context"
)

// Cache memoizes TableMetadata per table for one archive run. It is not
// safe for concurrent use; create one per run.
type Cache struct {
	catalog *Catalog
	tables  map[TableID]*TableMetadata
}

// NewCache returns an empty cache over catalog.
func NewCache(catalog *Catalog) *Cache {
	return &Cache{catalog: catalog, tables: make(map[TableID]*TableMetadata)}
}

// MetadataOf returns the metadata of table, querying the catalog only the
// first time a table is requested.
func (c *Cache) MetadataOf(ctx context.Context, table TableID) (*TableMetadata, error) {
	if m, ok := c.tables[table]; ok {
		return m, nil
	}

	fks, err := c.catalog.ForeignKeysOf(ctx, table)
	if err != nil {
		return nil, err
	}
	cols, err := c.catalog.ColumnsOf(ctx, table)
	if err != nil {
		return nil, err
	}

	m := NewTableMetadata(table, cols, fks)
	c.tables[table] = m

	c.catalog.log.DebugWith("table metadata loaded", map[string]interface{}{
		"table":        table.String(),
		"columns":      len(cols),
		"foreign_keys": len(fks),
	})
	return m, nil
}

// Len returns the number of tables cached so far.
func (c *Cache) Len() int {
	return len(c.tables)
}
