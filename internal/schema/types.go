package schema

import (
	"sort"
	"strings"

	"github.com/koustreak/relarchive/internal/errs"
)

// TableID identifies a table by schema and name.
type TableID struct {
	Schema string
	Name   string
}

// String returns the fully-qualified "schema.table" name.
func (t TableID) String() string {
	return t.Schema + "." + t.Name
}

// ParseTableID parses a "schema.table" name.
func ParseTableID(s string) (TableID, error) {
	schema, name, ok := strings.Cut(s, ".")
	if !ok || schema == "" || name == "" || strings.Contains(name, ".") {
		return TableID{}, errs.Newf(errs.ErrKindInvalidInput, "table name %q is not schema.table", s)
	}
	return TableID{Schema: schema, Name: name}, nil
}

// ForeignKey describes one referencing column.
type ForeignKey struct {
	Column    string
	RefSchema string
	RefTable  string
	RefColumn string

	// Virtual is true when the key was declared in configuration rather
	// than read from the database catalog.
	Virtual bool
}

// Target returns the referenced table.
func (fk ForeignKey) Target() TableID {
	return TableID{Schema: fk.RefSchema, Name: fk.RefTable}
}

// Column describes one table column.
type Column struct {
	Name string

	// Type is the declared type, lower-cased.
	Type string

	NeedsTreatment bool
}

// TableMetadata is the introspected shape of one table. It is never
// modified after NewTableMetadata returns.
type TableMetadata struct {
	table       TableID
	columns     []Column
	byName      map[string]int
	foreignKeys map[string]ForeignKey
	fkOrder     []string
	treated     []Column
}

// NewTableMetadata builds the metadata for table from its columns, in
// ordinal order, and its foreign keys keyed by column.
func NewTableMetadata(table TableID, columns []Column, foreignKeys map[string]ForeignKey) *TableMetadata {
	m := &TableMetadata{
		table:       table,
		columns:     append([]Column(nil), columns...),
		byName:      make(map[string]int, len(columns)),
		foreignKeys: make(map[string]ForeignKey, len(foreignKeys)),
	}

	for i, c := range m.columns {
		m.byName[c.Name] = i
		if c.NeedsTreatment {
			m.treated = append(m.treated, c)
		}
	}

	// Keys on known columns follow column order; keys naming columns the
	// description did not return go last, by name.
	var extra []string
	for _, c := range m.columns {
		if fk, ok := foreignKeys[c.Name]; ok {
			m.foreignKeys[c.Name] = fk
			m.fkOrder = append(m.fkOrder, c.Name)
		}
	}
	for col, fk := range foreignKeys {
		if _, ok := m.byName[col]; !ok {
			m.foreignKeys[col] = fk
			extra = append(extra, col)
		}
	}
	sort.Strings(extra)
	m.fkOrder = append(m.fkOrder, extra...)

	return m
}

// Table returns the table this metadata describes.
func (m *TableMetadata) Table() TableID { return m.table }

// Columns returns the columns in ordinal order.
func (m *TableMetadata) Columns() []Column {
	return append([]Column(nil), m.columns...)
}

// Column looks up a column by name.
func (m *TableMetadata) Column(name string) (Column, bool) {
	i, ok := m.byName[name]
	if !ok {
		return Column{}, false
	}
	return m.columns[i], true
}

// ForeignKeys returns the foreign keys in traversal order.
func (m *TableMetadata) ForeignKeys() []ForeignKey {
	out := make([]ForeignKey, len(m.fkOrder))
	for i, col := range m.fkOrder {
		out[i] = m.foreignKeys[col]
	}
	return out
}

// ForeignKey looks up the foreign key declared on column.
func (m *TableMetadata) ForeignKey(column string) (ForeignKey, bool) {
	fk, ok := m.foreignKeys[column]
	return fk, ok
}

// Treated returns the columns whose values need decoding.
func (m *TableMetadata) Treated() []Column {
	return append([]Column(nil), m.treated...)
}
