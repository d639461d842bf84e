package database

import (
	"fmt"
	"strings"
)

// SelectBuilder constructs a parameterized SELECT query using a fluent API.
// Values are never interpolated into the SQL string; they are passed as args.
//
// Usage:
//
//	sql, args := Select("users", DialectPostgres).
//	    Columns("id", "name").
//	    Limit(3).
//	    Build()
type SelectBuilder struct {
	table   string
	dialect Dialect
	columns []string
	limit   *int
}

// Select starts a new SelectBuilder for the given table and dialect.
func Select(table string, d Dialect) *SelectBuilder {
	return &SelectBuilder{table: table, dialect: d}
}

// Columns restricts the SELECT to the specified columns.
// If not called, SELECT * is used.
func (b *SelectBuilder) Columns(cols ...string) *SelectBuilder {
	b.columns = cols
	return b
}

// Limit sets the maximum number of rows to return.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = &n
	return b
}

// Build produces the final SQL string and argument slice.
func (b *SelectBuilder) Build() (string, []any) {
	cols := "*"
	if len(b.columns) > 0 {
		quoted := make([]string, len(b.columns))
		for i, c := range b.columns {
			quoted[i] = QuoteIdent(b.dialect, c)
		}
		cols = strings.Join(quoted, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(QuoteIdent(b.dialect, b.table))

	var args []any
	if b.limit != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(b.placeholder(1))
		args = append(args, *b.limit)
	}

	return sb.String(), args
}

// placeholder returns the correct parameter placeholder for the dialect.
// Postgres: $1, $2, …   MySQL and SQLite: ?
func (b *SelectBuilder) placeholder(idx int) string {
	if b.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", idx)
	}
	return "?"
}

// QuoteIdent quotes a SQL identifier for the dialect. MySQL uses backticks
// (double quotes only work there in ANSI_QUOTES mode); everything else uses
// the ANSI double quote.
func QuoteIdent(d Dialect, name string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
