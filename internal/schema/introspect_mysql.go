package schema

import (
	"context"

	"github.com/koustreak/relarchive/internal/database"
)

// MySQLIntrospector implements Introspector for MySQL using information_schema.
// In MySQL a schema is a database.
type MySQLIntrospector struct {
	db database.DB
}

// NewMySQLIntrospector creates a new MySQL schema introspector.
func NewMySQLIntrospector(db database.DB) *MySQLIntrospector {
	return &MySQLIntrospector{db: db}
}

// ForeignKeys reads KEY_COLUMN_USAGE, which also carries the referenced
// side of each constraint column.
func (m *MySQLIntrospector) ForeignKeys(ctx context.Context, table TableID) ([]ForeignKey, error) {
	const q = `
		SELECT
			COLUMN_NAME,
			REFERENCED_TABLE_SCHEMA,
			REFERENCED_TABLE_NAME,
			REFERENCED_COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_NAME = ?
		  AND REFERENCED_TABLE_NAME IS NOT NULL
		  AND TABLE_SCHEMA = ?
		ORDER BY ORDINAL_POSITION`

	return scanForeignKeys(ctx, m.db, table, q)
}

// Columns describes table. COLUMN_TYPE is the same text DESCRIBE prints.
func (m *MySQLIntrospector) Columns(ctx context.Context, table TableID) ([]Column, error) {
	const q = `
		SELECT COLUMN_NAME, COLUMN_TYPE
		FROM information_schema.COLUMNS
		WHERE TABLE_NAME = ?
		  AND TABLE_SCHEMA = ?
		ORDER BY ORDINAL_POSITION`

	return scanColumns(ctx, m.db, table, q)
}
