// Package schema turns a live database connection into a compact,
// deterministic schema description for the agent's prompt.
package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/koustreak/askdb/internal/errs"
)

// Describe lists tables in name order and inspects up to lim.MaxTables of
// them. Two calls against an unchanged schema return equal descriptors.
func Describe(ctx context.Context, src Source, lim Limits) (*Descriptor, error) {
	lim = lim.withDefaults()

	names, err := src.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	d := &Descriptor{
		Dialect:     src.Dialect(),
		TotalTables: len(names),
		Tables:      make([]Table, 0, min(len(names), lim.MaxTables)),
	}
	if len(names) > lim.MaxTables {
		names = names[:lim.MaxTables]
		d.Truncated = true
	}

	for _, name := range names {
		info, err := src.InspectTable(ctx, name)
		if err != nil {
			// Dropped between list and inspect.
			if errs.IsNotFound(err) {
				d.TotalTables--
				continue
			}
			return nil, err
		}

		t := Table{Name: name}
		cols := info.Columns
		if len(cols) > lim.MaxColumns {
			t.ColumnsOmitted = len(cols) - lim.MaxColumns
			cols = cols[:lim.MaxColumns]
			d.Truncated = true
		}
		for _, c := range cols {
			t.Columns = append(t.Columns, Column{Name: c.Name, Type: normaliseType(c.DataType)})
		}
		d.Tables = append(d.Tables, t)
	}

	return d, nil
}

// Render produces the prompt text: one "table(col type, ...)" line per
// table and a footer when the descriptor is partial.
func (d *Descriptor) Render() string {
	if d == nil || len(d.Tables) == 0 {
		return "-- no tables found"
	}

	var sb strings.Builder
	for _, t := range d.Tables {
		sb.WriteString(t.Name)
		sb.WriteByte('(')
		for i, c := range t.Columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(c.Name)
			if c.Type != "" {
				sb.WriteByte(' ')
				sb.WriteString(c.Type)
			}
		}
		if t.ColumnsOmitted > 0 {
			fmt.Fprintf(&sb, ", ... %d more columns", t.ColumnsOmitted)
		}
		sb.WriteString(")\n")
	}

	if d.Truncated {
		if len(d.Tables) < d.TotalTables {
			fmt.Fprintf(&sb, "-- schema truncated: showing %d of %d tables\n", len(d.Tables), d.TotalTables)
		} else {
			sb.WriteString("-- schema truncated: some column lists are partial\n")
		}
	}
	return sb.String()
}

// TableNames returns the described table names in order.
func (d *Descriptor) TableNames() []string {
	names := make([]string, len(d.Tables))
	for i, t := range d.Tables {
		names[i] = t.Name
	}
	return names
}

func normaliseType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
