package database

import "context"

// DB is the read-only surface the archiver needs from a relational engine.
// The schema introspectors and the expander depend on it alone, so drivers
// can be swapped or mocked with go-sqlmock.
type DB interface {
	Ping(ctx context.Context) error
	Close()

	// Dialect tells builders how to quote identifiers and number placeholders.
	Dialect() Dialect

	// Query runs a statement and returns its result set. The caller closes it.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
}

// Rows is a forward-only result set. ScanRows drains it into documents.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Close()
	Err() error
}
