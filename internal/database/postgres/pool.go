package postgres

import (
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/errs"
)

const (
	defaultMaxConns    = 4
	defaultConnTimeout = 10 * time.Second
)

// parseDSN checks a Postgres connection string without connecting.
// Both URL (postgres://…) and keyword/value (host=… dbname=…) forms are accepted.
func parseDSN(dsn string) (*pgxpool.Config, error) {
	// SQLAlchemy-style driver suffixes are common in copied connection strings.
	dsn = strings.Replace(dsn, "postgresql+psycopg2://", "postgresql://", 1)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid postgres connection string", err)
	}
	if poolCfg.ConnConfig.Host == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "postgres connection string has no host")
	}
	return poolCfg, nil
}

// buildPoolConfig applies askdb's pool, timeout and read-only settings.
func buildPoolConfig(cfg *database.Config) (*pgxpool.Config, error) {
	poolCfg, err := parseDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = withDefault(cfg.MaxConns, defaultMaxConns)
	poolCfg.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	poolCfg.ConnConfig.ConnectTimeout = defaultConnTimeout
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	params := poolCfg.ConnConfig.RuntimeParams
	if cfg.QueryTimeout > 0 {
		// Server-side backstop: the statement dies even if the client goes away.
		params["statement_timeout"] = strconv.FormatInt(cfg.QueryTimeout.Milliseconds(), 10)
	}
	if cfg.ReadOnly {
		params["default_transaction_read_only"] = "on"
	}
	if _, ok := params["application_name"]; !ok {
		params["application_name"] = "askdb"
	}

	return poolCfg, nil
}

// withDefault returns val if non-zero, otherwise returns def
func withDefault(val, def int32) int32 {
	if val == 0 {
		return def
	}
	return val
}
