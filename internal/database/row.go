package database

import (
	"strings"

	"github.com/koustreak/askdb/internal/errs"
)

// CheckStatement rejects blank SQL before it reaches a driver.
func CheckStatement(sql string) error {
	if strings.TrimSpace(sql) == "" {
		return errs.New(errs.ErrKindInvalidInput, "empty SQL statement")
	}
	return nil
}

// CollectRows reads up to limit rows from the result set and returns them
// as a ResultSet. A limit <= 0 reads everything. When the cap is hit the
// next row is peeked so Truncated is only set if more rows really existed.
//
// CollectRows always closes the Rows; callers do not need to call Close().
// Driver wrappers are expected to return *errs.Error from Scan and Err.
func CollectRows(rows Rows, limit int) (*ResultSet, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to read column names", err)
	}

	result := &ResultSet{Columns: columns, Rows: make([][]any, 0)}

	for rows.Next() {
		if limit > 0 && len(result.Rows) == limit {
			result.Truncated = true
			break
		}

		// Allocate scan targets as *any so the driver can write any type.
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, asQueryError("failed to scan row", err)
		}

		for i, v := range dest {
			// MySQL and SQLite hand text back as []byte.
			if b, ok := v.([]byte); ok {
				dest[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, dest)
	}

	if err := rows.Err(); err != nil {
		return nil, asQueryError("error during row iteration", err)
	}

	return result, nil
}

// asQueryError keeps driver-classified errors intact and wraps anything else.
func asQueryError(msg string, err error) error {
	if errs.KindOf(err) != errs.ErrKindUnknown {
		return err
	}
	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
