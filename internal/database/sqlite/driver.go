// Package sqlite implements database.DB for SQLite files using the pure-Go
// modernc.org/sqlite driver. Files are opened read-only unless the config
// says otherwise.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/errs"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

const busyTimeoutMillis = 5000

// Opener plugs the driver into package dialects.
type Opener struct{}

// ValidateDSN checks that the database file exists and can be read.
func (Opener) ValidateDSN(cfg *database.Config) error {
	_, err := checkPath(cfg)
	return err
}

// Open connects and pings.
func (Opener) Open(ctx context.Context, cfg *database.Config) (database.DB, error) {
	return New(ctx, cfg)
}

// Driver is a SQLite implementation of database.DB.
type Driver struct {
	db  *sql.DB
	cfg *database.Config
}

// New opens the database file named by cfg.DSN.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	path, err := checkPath(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", buildDSN(path, cfg))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to open sqlite database", err)
	}
	if path == memoryPath {
		// Every connection to :memory: is a fresh database.
		db.SetMaxOpenConns(1)
	} else if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(int(cfg.MaxConns))
	}

	d := &Driver{db: db, cfg: cfg}
	if err := d.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	// sqlite opens lazily; a non-database file only fails on first read.
	if _, err := d.ListTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return d, nil
}

func (d *Driver) Dialect() database.Dialect { return database.DialectSQLite }

func (d *Driver) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

func (d *Driver) Close() {
	_ = d.db.Close()
}

func (d *Driver) Execute(ctx context.Context, query string, limit int, args ...any) (*database.ResultSet, error) {
	if err := database.CheckStatement(query); err != nil {
		return nil, err
	}
	if d.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.QueryTimeout)
		defer cancel()
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return database.CollectRows(&sqliteRows{rows: rows}, limit)
}

func (d *Driver) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT name
		FROM sqlite_master
		WHERE type IN ('table', 'view')
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

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
		SELECT name, type, "notnull" = 0, dflt_value, pk > 0
		FROM pragma_table_info(?)
		ORDER BY cid`

	rows, err := d.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, mapError(err, "failed to fetch columns")
	}
	defer rows.Close()

	info := &database.TableInfo{Name: table}
	for rows.Next() {
		var c database.ColumnInfo
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable, &c.DefaultValue, &c.IsPrimaryKey); err != nil {
			return nil, mapError(err, "failed to scan column info")
		}
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

type sqliteRows struct {
	rows *sql.Rows
}

func (r *sqliteRows) Next() bool                 { return r.rows.Next() }
func (r *sqliteRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *sqliteRows) Close()                     { _ = r.rows.Close() }

func (r *sqliteRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return mapError(err, "failed to scan row")
	}
	return nil
}

func (r *sqliteRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return mapError(err, "query failed")
	}
	return nil
}
