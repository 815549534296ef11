package database

import (
	"fmt"
	"strings"

	"github.com/koustreak/relarchive/internal/errs"
)

// Dialect controls identifier quoting and placeholder style.
type Dialect int

const (
	// DialectPostgres uses "ident" quoting and $1, $2, … placeholders.
	DialectPostgres Dialect = iota

	// DialectMySQL uses `ident` quoting and ? placeholders.
	DialectMySQL
)

func (d Dialect) String() string {
	if d == DialectMySQL {
		return "mysql"
	}
	return "postgres"
}

// QuoteIdent quotes a single SQL identifier for the dialect, escaping any
// embedded quote characters.
func (d Dialect) QuoteIdent(name string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Placeholder returns the parameter placeholder for 1-based position idx.
func (d Dialect) Placeholder(idx int) string {
	if d == DialectMySQL {
		return "?"
	}
	return fmt.Sprintf("$%d", idx)
}

// Rebind rewrites the ? markers of a caller-written condition into the
// dialect's placeholders, numbering from start, and returns the rewritten
// SQL with the number of markers found. Markers inside quoted strings or
// identifiers are left alone; in MySQL a backslash escapes the next
// character of a string. Comments, statement separators and unterminated
// quotes are rejected, since the condition is wrapped in parentheses.
func (d Dialect) Rebind(cond string, start int) (string, int, error) {
	var sb strings.Builder
	var quote rune
	escaped := false
	n := 0
	rs := []rune(cond)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case r == '\\' && d == DialectMySQL && quote != '`':
				escaped = true
			case r == quote:
				quote = 0
			}
			sb.WriteRune(r)
			continue
		}

		next := rune(0)
		if i+1 < len(rs) {
			next = rs[i+1]
		}
		switch {
		case r == '\'' || r == '"' || r == '`':
			quote = r
			sb.WriteRune(r)
		case r == '-' && next == '-', r == '/' && next == '*', r == '#' && d == DialectMySQL:
			return "", 0, errs.New(errs.ErrKindInvalidInput, "where condition must not contain comments")
		case r == ';':
			return "", 0, errs.New(errs.ErrKindInvalidInput, "where condition must not contain ';'")
		case r == '?':
			sb.WriteString(d.Placeholder(start + n))
			n++
		default:
			sb.WriteRune(r)
		}
	}
	if quote != 0 {
		return "", 0, errs.Newf(errs.ErrKindInvalidInput, "where condition has an unterminated %c quote", quote)
	}
	return sb.String(), n, nil
}

// validOps is the allowlist of comparison operators for WHERE clauses.
// Any operator not in this list is rejected to prevent SQL injection
// through the operator position (which cannot be parameterized).
var validOps = map[string]bool{
	"=":    true,
	"!=":   true,
	"<>":   true,
	"<":    true,
	">":    true,
	"<=":   true,
	">=":   true,
	"LIKE": true,
}

// SelectBuilder constructs a parameterized SELECT * against one
// schema-qualified table. Values are never interpolated into the SQL
// string; they are always passed as args.
//
// Usage (MySQL):
//
//	sql, args, err := SelectFrom("shop", "orders", DialectMySQL).
//	    Where("customer_id", "=", 42).
//	    Build()
type SelectBuilder struct {
	schema  string
	table   string
	dialect Dialect
	where   []whereClause
}

type whereClause struct {
	column string
	op     string
	raw    string
	isRaw  bool
	args   []any
}

// SelectFrom starts a new SelectBuilder for schema.table in dialect d.
func SelectFrom(schema, table string, d Dialect) *SelectBuilder {
	return &SelectBuilder{schema: schema, table: table, dialect: d}
}

// Where adds a "column op value" condition. op must be one of the allowed
// comparison operators. Multiple conditions are combined with AND.
func (b *SelectBuilder) Where(column, op string, value any) *SelectBuilder {
	b.where = append(b.where, whereClause{column: column, op: op, args: []any{value}})
	return b
}

// WhereRaw adds a caller-written condition using ? markers, bound
// positionally to args. The condition is wrapped in parentheses.
func (b *SelectBuilder) WhereRaw(cond string, args ...any) *SelectBuilder {
	b.where = append(b.where, whereClause{raw: cond, isRaw: true, args: args})
	return b
}

// Build produces the final SQL string and argument slice.
func (b *SelectBuilder) Build() (string, []any, error) {
	if b.table == "" {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "select: table name is empty")
	}

	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	if b.schema != "" {
		sb.WriteString(b.dialect.QuoteIdent(b.schema))
		sb.WriteByte('.')
	}
	sb.WriteString(b.dialect.QuoteIdent(b.table))

	var args []any
	argIdx := 1

	if len(b.where) > 0 {
		parts := make([]string, 0, len(b.where))
		for _, w := range b.where {
			if w.isRaw {
				if strings.TrimSpace(w.raw) == "" {
					return "", nil, errs.New(errs.ErrKindInvalidInput, "where condition is empty")
				}
				cond, n, err := b.dialect.Rebind(w.raw, argIdx)
				if err != nil {
					return "", nil, err
				}
				if n != len(w.args) {
					return "", nil, errs.Newf(errs.ErrKindInvalidInput,
						"where condition has %d placeholder(s) but %d parameter(s) were given", n, len(w.args))
				}
				parts = append(parts, "("+cond+")")
				args = append(args, w.args...)
				argIdx += n
				continue
			}

			op := strings.ToUpper(w.op)
			if !validOps[op] {
				return "", nil, errs.Newf(errs.ErrKindInvalidInput, "unsupported WHERE operator: %q", w.op)
			}
			parts = append(parts, fmt.Sprintf("%s %s %s", b.dialect.QuoteIdent(w.column), op, b.dialect.Placeholder(argIdx)))
			args = append(args, w.args...)
			argIdx++
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(parts, " AND "))
	}

	return sb.String(), args, nil
}
