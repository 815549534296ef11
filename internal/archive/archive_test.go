package archive

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/relarchive/internal/config"
	"github.com/koustreak/relarchive/internal/database"
	"github.com/koustreak/relarchive/internal/database/mysql"
	"github.com/koustreak/relarchive/internal/document"
	"github.com/koustreak/relarchive/internal/errs"
	"github.com/koustreak/relarchive/internal/naming"
	"github.com/koustreak/relarchive/internal/schema"
	"github.com/koustreak/relarchive/internal/treatment"
	"github.com/koustreak/relarchive/internal/whereguard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fk struct{ column, refSchema, refTable, refColumn string }

func newArchiver(t *testing.T, cfg Config, opts ...Option) (*Archiver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	d := mysql.Wrap(db)
	return New(d, schema.NewIntrospector(d), cfg, opts...), mock
}

// expectSelect expects the data query of table with the given condition.
func expectSelect(mock sqlmock.Sqlmock, table, cond string, args []driver.Value, rows *sqlmock.Rows) {
	q := "SELECT * FROM `db`.`" + table + "`"
	if cond != "" {
		q += " WHERE " + cond
	}
	mock.ExpectQuery("^" + regexp.QuoteMeta(q) + "$").WithArgs(args...).WillReturnRows(rows)
}

// expectMeta expects the two catalog queries issued on the first visit of
// table. cols alternates column name and type.
func expectMeta(mock sqlmock.Sqlmock, table string, fks []fk, cols ...string) {
	fkRows := sqlmock.NewRows([]string{"COLUMN_NAME", "REFERENCED_TABLE_SCHEMA", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME"})
	for _, k := range fks {
		fkRows.AddRow(k.column, k.refSchema, k.refTable, k.refColumn)
	}
	mock.ExpectQuery("KEY_COLUMN_USAGE").WithArgs(table, "db").WillReturnRows(fkRows)

	colRows := sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE"})
	for i := 0; i+1 < len(cols); i += 2 {
		colRows.AddRow(cols[i], cols[i+1])
	}
	mock.ExpectQuery("information_schema.COLUMNS").WithArgs(table, "db").WillReturnRows(colRows)
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func stripID() Config {
	return Config{Tables: config.Tables{}, DefaultNaming: naming.StripSuffix("_id")}
}

func TestArchive_EmbedsReferencedRow(t *testing.T) {
	a, mock := newArchiver(t, stripID())

	expectSelect(mock, "orders", "(id = ?)", []driver.Value{int64(1)},
		sqlmock.NewRows([]string{"id", "customer_id"}).AddRow(int64(1), int64(42)))
	expectMeta(mock, "orders", []fk{{"customer_id", "db", "customers", "id"}},
		"id", "int", "customer_id", "int")
	expectSelect(mock, "customers", "`id` = ?", []driver.Value{int64(42)},
		sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(42), []byte("Ada")))
	expectMeta(mock, "customers", nil, "id", "int", "name", "varchar(64)")

	rows, err := a.Archive(context.Background(), "db", "orders", "id = ?", 1)
	require.NoError(t, err)

	assert.Equal(t, `[{"id":1,"customer":[{"id":42,"name":"Ada"}]}]`, toJSON(t, rows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchive_RowWithoutForeignKeysIsUnchanged(t *testing.T) {
	a, mock := newArchiver(t, Config{})

	expectSelect(mock, "tags", "", nil,
		sqlmock.NewRows([]string{"id", "label"}).AddRow(int64(7), "red").AddRow(int64(8), "blue"))
	expectMeta(mock, "tags", nil, "id", "int", "label", "text")

	rows, err := a.Archive(context.Background(), "db", "tags", "")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":7,"label":"red"},{"id":8,"label":"blue"}]`, toJSON(t, rows))
}

func TestArchive_NoMatchReturnsEmpty(t *testing.T) {
	a, mock := newArchiver(t, Config{})

	expectSelect(mock, "tags", "(id = ?)", []driver.Value{int64(99)}, sqlmock.NewRows([]string{"id"}))
	expectMeta(mock, "tags", nil, "id", "int")

	rows, err := a.Archive(context.Background(), "db", "tags", "id = ?", 99)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestArchive_NullForeignKeyEmbedsEmptySequence(t *testing.T) {
	a, mock := newArchiver(t, stripID())

	expectSelect(mock, "orders", "(id = ?)", []driver.Value{int64(2)},
		sqlmock.NewRows([]string{"id", "customer_id"}).AddRow(int64(2), nil))
	expectMeta(mock, "orders", []fk{{"customer_id", "db", "customers", "id"}},
		"id", "int", "customer_id", "int")

	rows, err := a.Archive(context.Background(), "db", "orders", "id = ?", 2)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":2,"customer":[]}]`, toJSON(t, rows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchive_VirtualForeignKey(t *testing.T) {
	cfg := Config{Tables: config.Tables{
		"db.orders": {
			AdditionalForeignKeys: map[string]string{"legacy_ref": "db.legacy.code"},
			MappedEntities:        map[string]string{"legacy_ref": "legacy"},
		},
	}}
	a, mock := newArchiver(t, cfg)

	expectSelect(mock, "orders", "(id = ?)", []driver.Value{int64(1)},
		sqlmock.NewRows([]string{"id", "legacy_ref", "total"}).AddRow(int64(1), "L-9", 10.5))
	expectMeta(mock, "orders", nil, "id", "int", "legacy_ref", "varchar(8)", "total", "decimal(10,2)")
	expectSelect(mock, "legacy", "`code` = ?", []driver.Value{"L-9"},
		sqlmock.NewRows([]string{"code", "note"}).AddRow("L-9", "imported"))
	expectMeta(mock, "legacy", nil, "code", "varchar(8)", "note", "text")

	rows, err := a.Archive(context.Background(), "db", "orders", "id = ?", 1)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1,"legacy":[{"code":"L-9","note":"imported"}],"total":10.5}]`, toJSON(t, rows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchive_MetadataLoadedOncePerTable(t *testing.T) {
	a, mock := newArchiver(t, stripID())

	expectSelect(mock, "orders", "", nil,
		sqlmock.NewRows([]string{"id", "country_id"}).
			AddRow(int64(1), "DE").
			AddRow(int64(2), "FR").
			AddRow(int64(3), "DE"))
	expectMeta(mock, "orders", []fk{{"country_id", "db", "countries", "code"}}, "id", "int", "country_id", "char(2)")

	expectSelect(mock, "countries", "`code` = ?", []driver.Value{"DE"},
		sqlmock.NewRows([]string{"code"}).AddRow("DE"))
	expectMeta(mock, "countries", nil, "code", "char(2)")
	expectSelect(mock, "countries", "`code` = ?", []driver.Value{"FR"},
		sqlmock.NewRows([]string{"code"}).AddRow("FR"))
	expectSelect(mock, "countries", "`code` = ?", []driver.Value{"DE"},
		sqlmock.NewRows([]string{"code"}).AddRow("DE"))

	rows, err := a.Archive(context.Background(), "db", "orders", "")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchive_OneToMany(t *testing.T) {
	cfg := Config{Tables: config.Tables{"db.customers": {
		AdditionalForeignKeys: map[string]string{"id": "db.orders.customer"},
		MappedEntities:        map[string]string{"id": "orders"},
	}}}
	a, mock := newArchiver(t, cfg)

	expectSelect(mock, "customers", "(id = ?)", []driver.Value{int64(42)},
		sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(42), "Ada"))
	expectMeta(mock, "customers", nil, "id", "int", "name", "text")
	expectSelect(mock, "orders", "`customer` = ?", []driver.Value{int64(42)},
		sqlmock.NewRows([]string{"id", "customer"}).AddRow(int64(1), int64(42)).AddRow(int64(2), int64(42)))
	expectMeta(mock, "orders", nil, "id", "int", "customer", "int")

	rows, err := a.Archive(context.Background(), "db", "customers", "id = ?", 42)
	require.NoError(t, err)
	assert.Equal(t, `[{"orders":[{"id":1,"customer":42},{"id":2,"customer":42}],"name":"Ada"}]`, toJSON(t, rows))
}

func TestArchive_MappingErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		columns []string
		message string
	}{
		{
			name:    "no naming rule",
			cfg:     Config{},
			columns: []string{"id", "customer_id"},
			message: "no mapping for column customer_id in table db.orders",
		},
		{
			name:    "collides with existing field",
			cfg:     stripID(),
			columns: []string{"id", "customer_id", "customer"},
			message: "already exists as a field",
		},
		{
			name: "mapping equals column",
			cfg: Config{Tables: config.Tables{
				"db.orders": {MappedEntities: map[string]string{"customer_id": "customer_id"}},
			}},
			columns: []string{"id", "customer_id"},
			message: "collides with source column name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, mock := newArchiver(t, tt.cfg)

			values := make([]driver.Value, len(tt.columns))
			var meta []string
			for i, c := range tt.columns {
				values[i] = int64(i + 1)
				meta = append(meta, c, "int")
			}
			expectSelect(mock, "orders", "(id = ?)", []driver.Value{int64(1)},
				sqlmock.NewRows(tt.columns).AddRow(values...))
			expectMeta(mock, "orders", []fk{{"customer_id", "db", "customers", "id"}}, meta...)

			rows, err := a.Archive(context.Background(), "db", "orders", "id = ?", 1)
			require.Error(t, err)
			assert.Nil(t, rows)
			assert.True(t, errs.IsMapping(err))
			assert.Contains(t, err.Error(), tt.message)
			// The customers table is never queried.
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestArchive_ExplicitMappingNeverCallsDefault(t *testing.T) {
	calls := 0
	cfg := Config{
		Tables: config.Tables{"db.orders": {MappedEntities: map[string]string{"customer_id": "buyer"}}},
		DefaultNaming: func(c string) (string, error) {
			calls++
			return "x", nil
		},
	}
	a, mock := newArchiver(t, cfg)

	expectSelect(mock, "orders", "(id = ?)", []driver.Value{int64(1)},
		sqlmock.NewRows([]string{"id", "customer_id"}).AddRow(int64(1), nil))
	expectMeta(mock, "orders", []fk{{"customer_id", "db", "customers", "id"}}, "id", "int", "customer_id", "int")

	rows, err := a.Archive(context.Background(), "db", "orders", "id = ?", 1)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1,"buyer":[]}]`, toJSON(t, rows))
	assert.Zero(t, calls)
}

func TestArchive_SelfReferenceCycle(t *testing.T) {
	a, mock := newArchiver(t, stripID())
	self := []fk{{"manager_id", "db", "employees", "id"}}

	expectSelect(mock, "employees", "(id = ?)", []driver.Value{int64(1)},
		sqlmock.NewRows([]string{"id", "manager_id"}).AddRow(int64(1), int64(2)))
	expectMeta(mock, "employees", self, "id", "int", "manager_id", "int")
	expectSelect(mock, "employees", "`id` = ?", []driver.Value{int64(2)},
		sqlmock.NewRows([]string{"id", "manager_id"}).AddRow(int64(2), int64(1)))

	rows, err := a.Archive(context.Background(), "db", "employees", "id = ?", 1)
	require.NoError(t, err)
	assert.Equal(t,
		`[{"id":1,"manager":[{"id":2,"manager":{"$ref":"db.employees","column":"id","value":1}}]}]`,
		toJSON(t, rows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchive_RowReferencingItself(t *testing.T) {
	a, mock := newArchiver(t, stripID())

	expectSelect(mock, "employees", "(id = ?)", []driver.Value{int64(1)},
		sqlmock.NewRows([]string{"id", "manager_id"}).AddRow(int64(1), int64(1)))
	expectMeta(mock, "employees", []fk{{"manager_id", "db", "employees", "id"}}, "id", "int", "manager_id", "int")

	rows, err := a.Archive(context.Background(), "db", "employees", "id = ?", 1)
	require.NoError(t, err)

	manager, _ := rows[0].Get("manager")
	assert.Equal(t, document.BackRef{Table: "db.employees", Column: "id", Value: int64(1)}, manager)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchive_MutualReferenceCycle(t *testing.T) {
	a, mock := newArchiver(t, stripID())

	expectSelect(mock, "a", "(id = ?)", []driver.Value{int64(1)},
		sqlmock.NewRows([]string{"id", "b_id"}).AddRow(int64(1), int64(5)))
	expectMeta(mock, "a", []fk{{"b_id", "db", "b", "id"}}, "id", "int", "b_id", "int")
	expectSelect(mock, "b", "`id` = ?", []driver.Value{int64(5)},
		sqlmock.NewRows([]string{"id", "a_id"}).AddRow(int64(5), "1"))
	expectMeta(mock, "b", []fk{{"a_id", "db", "a", "id"}}, "id", "int", "a_id", "varchar(8)")

	rows, err := a.Archive(context.Background(), "db", "a", "id = ?", 1)
	require.NoError(t, err)
	assert.Equal(t,
		`[{"id":1,"b":[{"id":5,"a":{"$ref":"db.a","column":"id","value":"1"}}]}]`,
		toJSON(t, rows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchive_DepthLimit(t *testing.T) {
	a, mock := newArchiver(t, stripID(), WithMaxDepth(1))

	expectSelect(mock, "orders", "(id = ?)", []driver.Value{int64(1)},
		sqlmock.NewRows([]string{"id", "customer_id"}).AddRow(int64(1), int64(42)))
	expectMeta(mock, "orders", []fk{{"customer_id", "db", "customers", "id"}}, "id", "int", "customer_id", "int")
	expectSelect(mock, "customers", "`id` = ?", []driver.Value{int64(42)},
		sqlmock.NewRows([]string{"id", "country_id"}).AddRow(int64(42), "DE"))
	expectMeta(mock, "customers", []fk{{"country_id", "db", "countries", "code"}}, "id", "int", "country_id", "char(2)")

	_, err := a.Archive(context.Background(), "db", "orders", "id = ?", 1)
	require.Error(t, err)
	assert.True(t, errs.IsDepthExceeded(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchive_QueryError(t *testing.T) {
	a, mock := newArchiver(t, stripID())

	mock.ExpectQuery("SELECT").WillReturnError(&gomysql.MySQLError{Number: 1064, Message: "You have an error in your SQL syntax"})

	rows, err := a.Archive(context.Background(), "db", "orders", "id = ?", 1)
	require.Error(t, err)
	assert.Nil(t, rows)
	assert.True(t, errs.IsQueryFailed(err))
	assert.Contains(t, err.Error(), "db.orders")
}

func TestArchive_NestedQueryErrorAbortsRun(t *testing.T) {
	a, mock := newArchiver(t, stripID())

	expectSelect(mock, "orders", "(id = ?)", []driver.Value{int64(1)},
		sqlmock.NewRows([]string{"id", "customer_id"}).AddRow(int64(1), int64(42)))
	expectMeta(mock, "orders", []fk{{"customer_id", "db", "customers", "id"}}, "id", "int", "customer_id", "int")
	mock.ExpectQuery("customers").WillReturnError(&gomysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"})

	rows, err := a.Archive(context.Background(), "db", "orders", "id = ?", 1)
	assert.Nil(t, rows)
	assert.True(t, errs.IsQueryFailed(err))
}

func TestArchive_DriverKindSurvives(t *testing.T) {
	tests := []struct {
		name string
		err  error
		is   func(error) bool
	}{
		{"missing table", &gomysql.MySQLError{Number: 1146, Message: "Table 'db.orders' doesn't exist"}, errs.IsNotFound},
		{"deadline", context.DeadlineExceeded, errs.IsTimeout},
		{"table grant", &gomysql.MySQLError{Number: 1142, Message: "SELECT command denied"}, errs.IsPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, mock := newArchiver(t, stripID())
			mock.ExpectQuery("SELECT").WillReturnError(tt.err)

			_, err := a.Archive(context.Background(), "db", "orders", "id = ?", 1)
			require.Error(t, err)
			assert.True(t, tt.is(err), err.Error())
			assert.Contains(t, err.Error(), "select from db.orders")
		})
	}
}

func TestArchive_PointColumn(t *testing.T) {
	a, mock := newArchiver(t, Config{})
	raw := treatment.EncodePoint(treatment.Point{Order: 1, Type: 1, Lat: 52.52, Lon: 13.405}, 0)

	expectSelect(mock, "stores", "(id = ?)", []driver.Value{int64(3)},
		sqlmock.NewRows([]string{"id", "location"}).AddRow(int64(3), raw))
	expectMeta(mock, "stores", nil, "id", "int", "location", "POINT")

	rows, err := a.Archive(context.Background(), "db", "stores", "id = ?", 3)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":3,"location":{"order":1,"type":1,"lat":52.52,"lon":13.405}}]`, toJSON(t, rows))
}

func TestArchive_InvalidInput(t *testing.T) {
	a, mock := newArchiver(t, Config{}, WithGuard(whereguard.New()))
	ctx := context.Background()

	_, err := a.Archive(ctx, "db", "orders", "", 1)
	assert.True(t, errs.IsInvalidInput(err))

	_, err = a.Archive(ctx, "db", "orders", "id = 1; DROP TABLE orders")
	assert.True(t, errs.IsInvalidInput(err))

	_, err = a.Archive(ctx, "db", "orders", "id = ?")
	assert.True(t, errs.IsInvalidInput(err))

	// Comments are rejected even though the guard parses them.
	_, err = a.Archive(ctx, "db", "orders", "id = ? -- ?", 1)
	assert.True(t, errs.IsInvalidInput(err))

	_, err = a.Archive(ctx, "db", "orders", `note = 'it\'s ?' AND id = ? /* ? */`, 1)
	assert.True(t, errs.IsInvalidInput(err))

	_, err = a.Archive(ctx, "", "orders", "")
	assert.True(t, errs.IsInvalidInput(err))

	_, err = a.ArchiveBy(ctx, schema.TableID{Schema: "db", Name: "orders"}, "", 1)
	assert.True(t, errs.IsInvalidInput(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveBy(t *testing.T) {
	a, mock := newArchiver(t, Config{})

	expectSelect(mock, "tags", "`label` = ?", []driver.Value{"red"},
		sqlmock.NewRows([]string{"id", "label"}).AddRow(int64(7), "red"))
	expectMeta(mock, "tags", nil, "id", "int", "label", "text")

	rows, err := a.ArchiveBy(context.Background(), schema.TableID{Schema: "db", Name: "tags"}, "label", "red")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":7,"label":"red"}]`, toJSON(t, rows))
}

// pgOverMock reports the Postgres dialect while sqlmock serves the queries.
type pgOverMock struct {
	*mysql.Driver
}

func (pgOverMock) Dialect() database.Dialect { return database.DialectPostgres }

func TestArchive_PostgresPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	d := pgOverMock{mysql.Wrap(db)}
	a := New(d, schema.NewIntrospector(d), Config{})

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "db"."tags" WHERE (id = $1 AND label <> $2)`)).
		WithArgs(int64(7), "x").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery("information_schema.table_constraints").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "ref_schema", "ref_table", "ref_column"}))
	mock.ExpectQuery("c.udt_name").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "udt_name"}).AddRow("id", "int4"))

	rows, err := a.Archive(context.Background(), "db", "tags", "id = ? AND label <> ?", 7, "x")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
