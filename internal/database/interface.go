package database

import "context"

// DB is the live handle the rest of askdb talks to.
// Layers above this package never import the postgres, mysql or sqlite
// packages directly; package dialects hands out DB values.
type DB interface {
	// Dialect reports which engine the handle is connected to.
	Dialect() Dialect

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the connection pool.
	Close()

	// Execute runs a single SQL statement and returns at most limit rows.
	// A limit <= 0 means no cap. Errors are *errs.Error values.
	Execute(ctx context.Context, sql string, limit int, args ...any) (*ResultSet, error)

	// ListTables returns user-visible tables and views, sorted by name.
	ListTables(ctx context.Context) ([]string, error)

	// InspectTable returns the columns of one table in ordinal order.
	// Unknown tables yield an ErrKindNotFound error.
	InspectTable(ctx context.Context, table string) (*TableInfo, error)
}

// Rows is an abstraction over a driver result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Close()
	Err() error
}

// ResultSet is a fully materialised, row-capped query result.
type ResultSet struct {
	Columns   []string
	Rows      [][]any
	Truncated bool // more rows existed than the limit allowed
}

// ColumnInfo describes a single column in a table
type ColumnInfo struct {
	Name         string
	DataType     string
	IsNullable   bool
	IsPrimaryKey bool
	DefaultValue *string // nil if no default
}

// TableInfo describes a table and its columns
type TableInfo struct {
	Name    string
	Columns []ColumnInfo
}
