package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/askdb/internal/errs"
)

// PostgreSQL SQLSTATE codes askdb treats specially.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrInsufficientPrivilege = "42501"
	pgErrReadOnlyTransaction   = "25006"
	pgErrQueryCanceled         = "57014"
)

// mapError translates pgx / pgconn native errors into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(classifySQLState(pgErr.Code), fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
	}

	if pgconn.Timeout(err) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if isConnError(err) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	// Client-side rejections such as an argument count mismatch.
	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}

// isConnError reports whether err came from the transport rather than the statement.
func isConnError(err error) bool {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// classifySQLState maps a SQLSTATE code to an ErrKind.
func classifySQLState(code string) errs.ErrKind {
	switch code {
	case pgErrInsufficientPrivilege, pgErrReadOnlyTransaction:
		return errs.ErrKindPermissionDenied
	case pgErrQueryCanceled:
		return errs.ErrKindTimeout
	}
	if len(code) >= 2 {
		switch code[:2] {
		case "08": // connection exception
			return errs.ErrKindConnectionFailed
		case "28": // invalid authorization
			return errs.ErrKindConnectionFailed
		case "3D": // invalid catalog name (database does not exist)
			return errs.ErrKindConnectionFailed
		}
	}
	return errs.ErrKindQueryFailed
}
