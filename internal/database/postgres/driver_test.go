package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpener_ValidateDSN(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		wantErr bool
	}{
		{name: "url", dsn: "postgres://alice:pw@localhost:5432/shop"},
		{name: "postgresql scheme", dsn: "postgresql://localhost/shop"},
		{name: "keyword value", dsn: "host=db.internal user=alice dbname=shop"},
		{name: "sqlalchemy driver suffix", dsn: "postgresql+psycopg2://localhost/shop"},
		{name: "garbage", dsn: "postgres://%zz", wantErr: true},
		{name: "bad port", dsn: "postgres://localhost:notaport/shop", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Opener{}.ValidateDSN(database.DefaultConfig(database.DialectPostgres, tt.dsn))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.IsInvalidInput(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestBuildPoolConfig(t *testing.T) {
	cfg := database.DefaultConfig(database.DialectPostgres, "postgres://alice@localhost/shop")
	cfg.QueryTimeout = 15 * time.Second
	cfg.ConnectTimeout = 3 * time.Second
	cfg.MaxConns = 0

	poolCfg, err := buildPoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(defaultMaxConns), poolCfg.MaxConns)
	assert.Equal(t, 3*time.Second, poolCfg.ConnConfig.ConnectTimeout)
	assert.Equal(t, "15000", poolCfg.ConnConfig.RuntimeParams["statement_timeout"])
	assert.Equal(t, "on", poolCfg.ConnConfig.RuntimeParams["default_transaction_read_only"])
	assert.Equal(t, "askdb", poolCfg.ConnConfig.RuntimeParams["application_name"])
}

func TestBuildPoolConfig_Writable(t *testing.T) {
	cfg := database.DefaultConfig(database.DialectPostgres, "postgres://localhost/shop?application_name=reports")
	cfg.ReadOnly = false

	poolCfg, err := buildPoolConfig(cfg)
	require.NoError(t, err)
	assert.NotContains(t, poolCfg.ConnConfig.RuntimeParams, "default_transaction_read_only")
	assert.Equal(t, "reports", poolCfg.ConnConfig.RuntimeParams["application_name"])
}

func TestNew_Unreachable(t *testing.T) {
	// Port 1 on loopback refuses immediately.
	cfg := database.DefaultConfig(database.DialectPostgres, "postgres://u:p@127.0.0.1:1/shop?sslmode=disable")
	cfg.ConnectTimeout = 2 * time.Second

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"no rows", pgx.ErrNoRows, errs.ErrKindNotFound},
		{"syntax", &pgconn.PgError{Code: "42601", Message: "syntax error at or near \"SELEC\""}, errs.ErrKindQueryFailed},
		{"undefined table", &pgconn.PgError{Code: "42P01", Message: "relation \"customers\" does not exist"}, errs.ErrKindQueryFailed},
		{"privilege", &pgconn.PgError{Code: "42501", Message: "permission denied for table users"}, errs.ErrKindPermissionDenied},
		{"read only tx", &pgconn.PgError{Code: "25006", Message: "cannot execute DELETE in a read-only transaction"}, errs.ErrKindPermissionDenied},
		{"statement timeout", &pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"}, errs.ErrKindTimeout},
		{"auth", &pgconn.PgError{Code: "28P01", Message: "password authentication failed"}, errs.ErrKindConnectionFailed},
		{"admin shutdown class 08", &pgconn.PgError{Code: "08006", Message: "connection failure"}, errs.ErrKindConnectionFailed},
		{"network", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connect: connection refused")}, errs.ErrKindConnectionFailed},
		{"connection dropped", io.ErrUnexpectedEOF, errs.ErrKindConnectionFailed},
		{"argument count", errors.New("expected 1 arguments, got 0"), errs.ErrKindQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(fmt.Errorf("wrapped: %w", tt.err), "query failed")
			require.Error(t, err)
			assert.Equal(t, tt.want, errs.KindOf(err))
		})
	}

	assert.NoError(t, mapError(nil, "unused"))
}
