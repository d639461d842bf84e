package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/errs"
)

// DefaultSampleRows is how many example rows DescribeTables shows per table.
const DefaultSampleRows = 3

// DescribeTables renders a CREATE TABLE style block for each named table,
// followed by up to sampleRows example rows. Unknown names fail with an
// ErrKindNotFound error that lists the tables that do exist.
func DescribeTables(ctx context.Context, src Source, names []string, sampleRows int) (string, error) {
	names = cleanNames(names)
	if len(names) == 0 {
		return "", errs.New(errs.ErrKindInvalidInput, "no table names given")
	}

	infos := make([]*database.TableInfo, 0, len(names))
	var missing []string
	for _, name := range names {
		info, err := src.InspectTable(ctx, name)
		if err != nil {
			if errs.IsNotFound(err) {
				missing = append(missing, name)
				continue
			}
			return "", err
		}
		infos = append(infos, info)
	}

	if len(missing) > 0 {
		known, err := src.ListTables(ctx)
		if err != nil {
			return "", err
		}
		return "", errs.Newf(errs.ErrKindNotFound, "unknown table(s): %s. Known tables: %s",
			strings.Join(missing, ", "), strings.Join(known, ", "))
	}

	var sb strings.Builder
	for i, info := range infos {
		if i > 0 {
			sb.WriteString("\n")
		}
		writeCreateTable(&sb, info)
		if sampleRows > 0 {
			writeSampleRows(ctx, &sb, src, info, sampleRows)
		}
	}
	return sb.String(), nil
}

func writeCreateTable(sb *strings.Builder, info *database.TableInfo) {
	fmt.Fprintf(sb, "CREATE TABLE %s (\n", info.Name)
	for i, c := range info.Columns {
		fmt.Fprintf(sb, "\t%s %s", c.Name, c.DataType)
		if !c.IsNullable {
			sb.WriteString(" NOT NULL")
		}
		if c.DefaultValue != nil {
			fmt.Fprintf(sb, " DEFAULT %s", *c.DefaultValue)
		}
		if c.IsPrimaryKey {
			sb.WriteString(" PRIMARY KEY")
		}
		if i < len(info.Columns)-1 {
			sb.WriteByte(',')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(")\n")
}

// writeSampleRows appends example rows in a SQL comment. A failure to read
// samples is noted inline; the column listing is still useful on its own.
func writeSampleRows(ctx context.Context, sb *strings.Builder, src Source, info *database.TableInfo, n int) {
	q, args := database.Select(info.Name, src.Dialect()).Limit(n).Build()
	rs, err := src.Execute(ctx, q, n, args...)
	if err != nil {
		fmt.Fprintf(sb, "/* sample rows unavailable: %v */\n", err)
		return
	}

	fmt.Fprintf(sb, "\n/*\n%d rows from %s table:\n", len(rs.Rows), info.Name)
	sb.WriteString(strings.Join(rs.Columns, "\t"))
	sb.WriteByte('\n')
	for _, row := range rs.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = database.FormatValue(v)
		}
		sb.WriteString(strings.Join(cells, "\t"))
		sb.WriteByte('\n')
	}
	sb.WriteString("*/\n")
}

// cleanNames trims, drops blanks and de-duplicates while keeping order.
func cleanNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.Trim(strings.TrimSpace(n), "`\"")
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
