// Package mysql implements database.DB for MySQL and MariaDB on top of
// database/sql and go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"

	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/errs"
)

// Opener plugs the driver into package dialects.
type Opener struct{}

// ValidateDSN parses the connection string without dialing.
func (Opener) ValidateDSN(cfg *database.Config) error {
	_, err := parseDSN(cfg.DSN)
	return err
}

// Open connects and pings.
func (Opener) Open(ctx context.Context, cfg *database.Config) (database.DB, error) {
	return New(ctx, cfg)
}

// Driver is a MySQL implementation of database.DB backed by database/sql.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	db  *sql.DB
	cfg *database.Config
}

// New opens a MySQL connection pool using the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	db, err := buildPool(cfg)
	if err != nil {
		return nil, err
	}

	d := &Driver{db: db, cfg: cfg}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := d.Ping(pingCtx); err != nil {
		_ = db.Close()
		if ctx.Err() == nil && !errs.IsConnectionFailed(err) {
			return nil, errs.Wrap(errs.ErrKindConnectionFailed, "could not reach mysql", err)
		}
		return nil, err
	}

	return d, nil
}

// --- database.DB implementation ---

func (d *Driver) Dialect() database.Dialect { return database.DialectMySQL }

func (d *Driver) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

func (d *Driver) Close() {
	_ = d.db.Close()
}

// Execute runs sql and collects at most limit rows. In read-only mode the
// statement runs inside a READ ONLY transaction that is always rolled back.
func (d *Driver) Execute(ctx context.Context, query string, limit int, args ...any) (*database.ResultSet, error) {
	if err := database.CheckStatement(query); err != nil {
		return nil, err
	}
	if d.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.QueryTimeout)
		defer cancel()
	}

	if !d.cfg.ReadOnly {
		rows, err := d.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, mapError(err, "query failed")
		}
		return database.CollectRows(&mysqlRows{rows: rows}, limit)
	}

	tx, err := d.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, mapError(err, "failed to start read-only transaction")
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return database.CollectRows(&mysqlRows{rows: rows}, limit)
}

func (d *Driver) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name`

	rows, err := d.db.QueryContext(ctx, q)
	if err != nil {
		return nil, mapError(err, "failed to list tables")
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, mapError(err, "failed to scan table name")
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating tables")
	}
	return tables, nil
}

func (d *Driver) InspectTable(ctx context.Context, table string) (*database.TableInfo, error) {
	const q = `
		SELECT column_name,
		       column_type,
		       is_nullable = 'YES',
		       column_default,
		       column_key
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		  AND table_name   = ?
		ORDER BY ordinal_position`

	rows, err := d.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, mapError(err, "failed to fetch columns")
	}
	defer rows.Close()

	info := &database.TableInfo{Name: table}
	for rows.Next() {
		var (
			c         database.ColumnInfo
			columnKey string
		)
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable, &c.DefaultValue, &columnKey); err != nil {
			return nil, mapError(err, "failed to scan column info")
		}
		c.IsPrimaryKey = columnKey == "PRI"
		info.Columns = append(info.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating columns")
	}
	if len(info.Columns) == 0 {
		return nil, errs.Newf(errs.ErrKindNotFound, "table %q does not exist", table)
	}
	return info, nil
}

// --- sql.DB type wrappers ---

type mysqlRows struct {
	rows *sql.Rows
}

func (r *mysqlRows) Next() bool                 { return r.rows.Next() }
func (r *mysqlRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *mysqlRows) Close()                     { _ = r.rows.Close() }

func (r *mysqlRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return mapError(err, "failed to scan row")
	}
	return nil
}

func (r *mysqlRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return mapError(err, "query failed")
	}
	return nil
}
