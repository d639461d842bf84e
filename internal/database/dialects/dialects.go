// Package dialects wires the engine-specific drivers to database.Config.
// It is the only package that imports postgres, mysql and sqlite.
package dialects

import (
	"context"

	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/database/mysql"
	"github.com/koustreak/askdb/internal/database/postgres"
	"github.com/koustreak/askdb/internal/database/sqlite"
	"github.com/koustreak/askdb/internal/errs"
)

// Opener validates and opens connections for one dialect.
type Opener interface {
	// ValidateDSN checks the connection string without dialing.
	ValidateDSN(cfg *database.Config) error
	// Open dials, pings and returns a ready handle.
	Open(ctx context.Context, cfg *database.Config) (database.DB, error)
}

var openers = map[database.Dialect]Opener{
	database.DialectPostgres: postgres.Opener{},
	database.DialectMySQL:    mysql.Opener{},
	database.DialectSQLite:   sqlite.Opener{},
}

// Validate runs the generic config checks followed by the dialect's own
// connection string checks. Nothing is dialed.
func Validate(cfg *database.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	o, ok := openers[cfg.Dialect]
	if !ok {
		return errs.Newf(errs.ErrKindInvalidInput, "unsupported database type %q", cfg.Dialect)
	}
	return o.ValidateDSN(cfg)
}

// Connect validates cfg and opens a live connection. Validation failures
// are ErrKindInvalidInput and never reach the network; unreachable or
// rejecting servers are ErrKindConnectionFailed.
func Connect(ctx context.Context, cfg *database.Config) (database.DB, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return openers[cfg.Dialect].Open(ctx, cfg)
}
