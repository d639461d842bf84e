package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/askdb/internal/errs"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDBAccessDenied      = 1044
	errAccessDenied        = 1045
	errUnknownDatabase     = 1049
	errTooManyConnections  = 1040
	errTableAccessDenied   = 1142
	errColumnAccessDenied  = 1143
	errSpecificAccess      = 1227
	errReadOnlyTransaction = 1792
	errExecutionTimeout    = 3024
	errQueryInterrupted    = 1317
	errConnRefused         = 2003
)

// mapError translates go-sql-driver/mysql errors into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return errs.Wrap(
			classifyMySQLCode(mysqlErr.Number),
			fmt.Sprintf("%s: %s", msg, mysqlErr.Message),
			err,
		)
	}

	if isConnError(err) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	// database/sql rejects some statements client-side, e.g. "sql: expected 1 arguments, got 0".
	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}

// isConnError reports whether err came from the transport rather than the statement.
func isConnError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, gomysql.ErrInvalidConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// classifyMySQLCode maps MySQL error numbers to ErrKind.
func classifyMySQLCode(code uint16) errs.ErrKind {
	switch code {
	case errDBAccessDenied, errAccessDenied, errUnknownDatabase, errTooManyConnections, errConnRefused:
		return errs.ErrKindConnectionFailed
	case errTableAccessDenied, errColumnAccessDenied, errSpecificAccess, errReadOnlyTransaction:
		return errs.ErrKindPermissionDenied
	case errExecutionTimeout, errQueryInterrupted:
		return errs.ErrKindTimeout
	default:
		return errs.ErrKindQueryFailed
	}
}
