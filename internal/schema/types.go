package schema

import (
	"context"

	"github.com/koustreak/askdb/internal/database"
)

// Column is a single column as shown to the model.
type Column struct {
	Name string
	Type string
}

// Table is one table or view with its columns in ordinal order.
type Table struct {
	Name    string
	Columns []Column

	// ColumnsOmitted counts columns clipped by Limits.MaxColumns.
	ColumnsOmitted int
}

// Descriptor is a bounded snapshot of the live schema. It is rebuilt for
// every question and never cached across questions.
type Descriptor struct {
	Dialect database.Dialect
	Tables  []Table // sorted by name

	// TotalTables is the number of tables in the database, which may be
	// more than len(Tables) when Truncated.
	TotalTables int

	// Truncated is set when either limit clipped the output.
	Truncated bool
}

// Limits bound the size of a Descriptor so it fits in a prompt.
type Limits struct {
	MaxTables  int `yaml:"max_tables"`
	MaxColumns int `yaml:"max_columns"`
}

// DefaultLimits returns 50 tables and 40 columns per table.
func DefaultLimits() Limits {
	return Limits{MaxTables: 50, MaxColumns: 40}
}

func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	if l.MaxTables <= 0 {
		l.MaxTables = def.MaxTables
	}
	if l.MaxColumns <= 0 {
		l.MaxColumns = def.MaxColumns
	}
	return l
}

// Source is the part of database.DB the introspector needs.
type Source interface {
	Dialect() database.Dialect
	ListTables(ctx context.Context) ([]string, error)
	InspectTable(ctx context.Context, table string) (*database.TableInfo, error)
	Execute(ctx context.Context, sql string, limit int, args ...any) (*database.ResultSet, error)
}
