// Package archive turns relational rows into nested documents by following
// foreign keys recursively and embedding the referenced rows in place of
// their key columns.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/koustreak/relarchive/internal/config"
	"github.com/koustreak/relarchive/internal/database"
	"github.com/koustreak/relarchive/internal/document"
	"github.com/koustreak/relarchive/internal/errs"
	"github.com/koustreak/relarchive/internal/logger"
	"github.com/koustreak/relarchive/internal/naming"
	"github.com/koustreak/relarchive/internal/schema"
	"github.com/koustreak/relarchive/internal/treatment"
)

// Archiver expands rows into documents. It holds only read-only state and
// may be shared by goroutines; every Archive call gets its own metadata
// cache and traversal path.
type Archiver struct {
	db       database.DB
	tables   config.Tables
	resolver *naming.Resolver
	registry *treatment.Registry
	catalog  *schema.Catalog
	guard    Guard
	maxDepth int
	log      *logger.Logger
}

// New returns an Archiver reading from db and introspecting through in.
func New(db database.DB, in schema.Introspector, cfg Config, opts ...Option) *Archiver {
	a := &Archiver{
		db:       db,
		tables:   cfg.Tables,
		resolver: naming.NewResolver(cfg.Tables, cfg.DefaultNaming),
		registry: treatment.Default(),
		maxDepth: cfg.MaxDepth,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.maxDepth <= 0 {
		a.maxDepth = config.DefaultMaxDepth
	}
	a.catalog = schema.NewCatalog(in, a.tables, a.registry, a.log.Component("catalog"))
	return a
}

// Archive selects the rows of schemaName.table matching where, bound
// positionally to params through ? markers, and returns them fully
// expanded. An empty where selects every row. Any failure aborts the whole
// call; no partial result is returned.
func (a *Archiver) Archive(ctx context.Context, schemaName, table, where string, params ...any) ([]*document.Row, error) {
	if where == "" && len(params) > 0 {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "%d parameter(s) given without a where condition", len(params))
	}
	if where != "" && a.guard != nil {
		if err := a.guard.Validate(where, len(params)); err != nil {
			return nil, err
		}
	}

	return a.start(ctx, schema.TableID{Schema: schemaName, Name: table}, func(b *database.SelectBuilder) {
		if where != "" {
			b.WhereRaw(where, params...)
		}
	})
}

// ArchiveBy archives the rows of table whose column equals value.
func (a *Archiver) ArchiveBy(ctx context.Context, table schema.TableID, column string, value any) ([]*document.Row, error) {
	if column == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "column is empty")
	}
	return a.start(ctx, table, func(b *database.SelectBuilder) {
		b.Where(column, "=", value)
	})
}

func (a *Archiver) start(ctx context.Context, table schema.TableID, filter func(*database.SelectBuilder)) ([]*document.Row, error) {
	if table.Schema == "" || table.Name == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "schema and table are required")
	}

	// A request-scoped logger carried in ctx wins over the archiver's own.
	r := &run{
		Archiver: a,
		cache:    schema.NewCache(a.catalog),
		log: logger.FromContextOr(ctx, a.log).With().
			Str("run_id", uuid.NewString()).
			Str("root", table.String()).
			Logger(),
	}

	started := time.Now()
	rows, err := r.expand(ctx, table, 0, filter)
	if err != nil {
		r.log.ErrorWith("archive failed", err, map[string]interface{}{"queries": r.queries})
		return nil, err
	}

	r.log.InfoWith("archive complete", map[string]interface{}{
		"rows":        len(rows),
		"queries":     r.queries,
		"tables":      r.cache.Len(),
		"duration_ms": time.Since(started).Milliseconds(),
	})
	return rows, nil
}

// run is the state of one Archive call.
type run struct {
	*Archiver
	cache   *schema.Cache
	path    []frame
	queries int
	log     *logger.Logger
}

// frame is a row on the current expansion path, with its values as they
// were before any foreign key was embedded.
type frame struct {
	table  schema.TableID
	values map[string]any
}

func (r *run) expand(ctx context.Context, table schema.TableID, depth int, filter func(*database.SelectBuilder)) ([]*document.Row, error) {
	if depth > r.maxDepth {
		return nil, errs.Newf(errs.ErrKindDepthExceeded, "reference chain reaches %s deeper than %d levels", table, r.maxDepth)
	}

	b := database.SelectFrom(table.Schema, table.Name, r.db.Dialect())
	filter(b)
	q, args, err := b.Build()
	if err != nil {
		return nil, err
	}

	r.queries++
	res, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindOr(err, errs.ErrKindQueryFailed), fmt.Sprintf("select from %s", table), err)
	}
	rows, err := database.ScanRows(res)
	if err != nil {
		return nil, errs.Wrap(errs.KindOr(err, errs.ErrKindQueryFailed), fmt.Sprintf("select from %s", table), err)
	}

	meta, err := r.cache.MetadataOf(ctx, table)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if err := r.registry.Treat(row, meta.Treated()); err != nil {
			return nil, errs.Wrap(errs.KindOr(err, errs.ErrKindUnsupportedType), fmt.Sprintf("treat row of %s", table), err)
		}
		bytesToStrings(row)

		if err := r.embedAll(ctx, table, meta, row, depth); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// embedAll replaces every foreign-key column of row with the documents it
// references.
func (r *run) embedAll(ctx context.Context, table schema.TableID, meta *schema.TableMetadata, row *document.Row, depth int) error {
	fks := meta.ForeignKeys()
	if len(fks) == 0 {
		return nil
	}

	r.path = append(r.path, frame{table: table, values: snapshot(row)})
	defer func() { r.path = r.path[:len(r.path)-1] }()

	for _, fk := range fks {
		name, err := r.resolver.Resolve(table, fk.Column, row)
		if err != nil {
			return err
		}

		value, _ := row.Get(fk.Column)
		embedded, err := r.embed(ctx, fk, value, depth)
		if err != nil {
			return err
		}
		row.Replace(fk.Column, name, embedded)
	}
	return nil
}

// embed returns what replaces one foreign-key value: an empty sequence for
// NULL, a BackRef when the referenced row is already being expanded
// further up the path, else the expanded referenced rows.
func (r *run) embed(ctx context.Context, fk schema.ForeignKey, value any, depth int) (any, error) {
	if value == nil {
		return []*document.Row{}, nil
	}

	target := fk.Target()
	if r.onPath(target, fk.RefColumn, value) {
		r.log.DebugWith("reference cycle cut", map[string]interface{}{
			"table":  target.String(),
			"column": fk.RefColumn,
			"value":  value,
		})
		return document.BackRef{Table: target.String(), Column: fk.RefColumn, Value: value}, nil
	}

	return r.expand(ctx, target, depth+1, func(b *database.SelectBuilder) {
		b.Where(fk.RefColumn, "=", value)
	})
}

// onPath reports whether a row of table with column equal to value is an
// ancestor of the row being expanded. Values are compared in their printed
// form because drivers may return the same key as int64 or as text.
func (r *run) onPath(table schema.TableID, column string, value any) bool {
	want := fmt.Sprint(value)
	for i := len(r.path) - 1; i >= 0; i-- {
		f := r.path[i]
		if f.table != table {
			continue
		}
		if v, ok := f.values[column]; ok && v != nil && fmt.Sprint(v) == want {
			return true
		}
	}
	return false
}

func snapshot(row *document.Row) map[string]any {
	keys := row.Keys()
	values := make(map[string]any, len(keys))
	for _, k := range keys {
		values[k], _ = row.Get(k)
	}
	return values
}

// bytesToStrings converts raw []byte values, which database/sql returns
// for text columns, to strings so they encode as text rather than base64.
func bytesToStrings(row *document.Row) {
	for _, k := range row.Keys() {
		if v, _ := row.Get(k); v != nil {
			if b, ok := v.([]byte); ok {
				row.Set(k, string(b))
			}
		}
	}
}
