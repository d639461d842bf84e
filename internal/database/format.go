package database

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
)

// maxCellWidth keeps one wide JSON or text column from flooding a prompt.
const maxCellWidth = 120

// Table renders the result set as an ASCII table for humans and models.
// Empty results render as a short sentence instead of a bare header.
func (r *ResultSet) Table() string {
	if r == nil || len(r.Columns) == 0 {
		return "Statement executed; no result set returned."
	}
	if len(r.Rows) == 0 {
		return fmt.Sprintf("No rows returned (columns: %s).", strings.Join(r.Columns, ", "))
	}

	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorder(true)
	table.SetHeader(r.Columns)
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = FormatValue(v)
		}
		table.Append(cells)
	}
	table.Render()

	if r.Truncated {
		fmt.Fprintf(&sb, "(showing first %d rows; more rows exist)\n", len(r.Rows))
	}
	return sb.String()
}

// FormatValue converts a driver value into a single-line display string.
func FormatValue(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		s = val
	case []byte:
		s = string(val)
	case time.Time:
		s = val.Format(time.RFC3339)
	case [16]byte:
		// pgx scans uuid columns into a bare byte array.
		s = uuid.UUID(val).String()
	case driver.Valuer:
		// pgtype values (numeric, uuid, intervals) know their own text form.
		inner, err := val.Value()
		if err != nil {
			s = fmt.Sprint(val)
		} else {
			return FormatValue(inner)
		}
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}

	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > maxCellWidth {
		cut := maxCellWidth - 3
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}
