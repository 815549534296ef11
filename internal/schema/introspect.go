package schema

import (
	"context"
	"fmt"

	"github.com/koustreak/relarchive/internal/database"
	"github.com/koustreak/relarchive/internal/errs"
)

// Introspector reads table structure from the database catalog.
type Introspector interface {
	// ForeignKeys returns the foreign-key constraints declared on table.
	ForeignKeys(ctx context.Context, table TableID) ([]ForeignKey, error)

	// Columns returns the columns of table in ordinal order. Types are
	// returned as declared; NeedsTreatment is left unset.
	Columns(ctx context.Context, table TableID) ([]Column, error)
}

// NewIntrospector returns the introspector matching db's dialect.
func NewIntrospector(db database.DB) Introspector {
	if db.Dialect() == database.DialectMySQL {
		return NewMySQLIntrospector(db)
	}
	return NewPgIntrospector(db)
}

// PgIntrospector implements Introspector for PostgreSQL using information_schema.
type PgIntrospector struct {
	db database.DB
}

// NewPgIntrospector creates a new PostgreSQL schema introspector.
func NewPgIntrospector(db database.DB) *PgIntrospector {
	return &PgIntrospector{db: db}
}

// ForeignKeys returns one entry per referencing column of table. It reads
// pg_constraint rather than information_schema because conkey and confkey
// pair the columns of a composite key by position, which
// constraint_column_usage does not.
func (p *PgIntrospector) ForeignKeys(ctx context.Context, table TableID) ([]ForeignKey, error) {
	const q = `
		SELECT
			a.attname::text   AS column_name,
			rn.nspname::text  AS ref_schema,
			rt.relname::text  AS ref_table,
			ra.attname::text  AS ref_column
		FROM pg_catalog.pg_constraint c
		JOIN pg_catalog.pg_class t      ON t.oid = c.conrelid
		JOIN pg_catalog.pg_namespace n  ON n.oid = t.relnamespace
		JOIN pg_catalog.pg_class rt     ON rt.oid = c.confrelid
		JOIN pg_catalog.pg_namespace rn ON rn.oid = rt.relnamespace
		CROSS JOIN LATERAL unnest(c.conkey, c.confkey) WITH ORDINALITY AS k(attnum, refattnum, pos)
		JOIN pg_catalog.pg_attribute a  ON a.attrelid = c.conrelid AND a.attnum = k.attnum
		JOIN pg_catalog.pg_attribute ra ON ra.attrelid = c.confrelid AND ra.attnum = k.refattnum
		WHERE c.contype = 'f'
		  AND t.relname = $1
		  AND n.nspname = $2
		ORDER BY c.conname, k.pos`

	return scanForeignKeys(ctx, p.db, table, q)
}

// Columns describes table using udt_name, which names the concrete type
// (point, int4, ...) where data_type would say USER-DEFINED.
func (p *PgIntrospector) Columns(ctx context.Context, table TableID) ([]Column, error) {
	const q = `
		SELECT c.column_name, c.udt_name
		FROM information_schema.columns c
		WHERE c.table_name   = $1
		  AND c.table_schema = $2
		ORDER BY c.ordinal_position`

	return scanColumns(ctx, p.db, table, q)
}

func scanForeignKeys(ctx context.Context, db database.DB, table TableID, q string) ([]ForeignKey, error) {
	rows, err := db.Query(ctx, q, table.Name, table.Schema)
	if err != nil {
		return nil, errs.Wrap(errs.KindOr(err, errs.ErrKindQueryFailed), fmt.Sprintf("obtain foreign keys of table %s", table), err)
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Column, &fk.RefSchema, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "scan foreign key", err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindOr(err, errs.ErrKindQueryFailed), fmt.Sprintf("obtain foreign keys of table %s", table), err)
	}
	return fks, nil
}

func scanColumns(ctx context.Context, db database.DB, table TableID, q string) ([]Column, error) {
	rows, err := db.Query(ctx, q, table.Name, table.Schema)
	if err != nil {
		return nil, errs.Wrap(errs.KindOr(err, errs.ErrKindQueryFailed), fmt.Sprintf("obtain description of table %s", table), err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "scan column", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindOr(err, errs.ErrKindQueryFailed), fmt.Sprintf("obtain description of table %s", table), err)
	}
	if len(cols) == 0 {
		return nil, errs.Newf(errs.ErrKindNotFound, "table %s not found or has no columns", table)
	}
	return cols, nil
}
