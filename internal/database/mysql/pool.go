package mysql

import (
	"database/sql"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/errs"
)

const (
	defaultMaxOpenConns = 4
	defaultConnTimeout  = 10 * time.Second
	defaultPort         = "3306"

	// readTimeoutSlack lets the context deadline fire before the socket one.
	readTimeoutSlack = 5 * time.Second
)

// parseDSN accepts either a mysql:// URL or a native go-sql-driver DSN
// (user:pass@tcp(host:3306)/db) and returns a driver config.
func parseDSN(dsn string) (*mysql.Config, error) {
	if strings.HasPrefix(dsn, "mysql://") || strings.HasPrefix(dsn, "mariadb://") {
		return parseURL(dsn)
	}

	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid mysql connection string", err)
	}
	if c.DBName == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "mysql connection string must name a database")
	}
	return c, nil
}

func parseURL(dsn string) (*mysql.Config, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid mysql connection URL", err)
	}
	if u.Hostname() == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "mysql connection URL has no host")
	}

	c := mysql.NewConfig()
	c.Net = "tcp"
	port := u.Port()
	if port == "" {
		port = defaultPort
	}
	c.Addr = net.JoinHostPort(u.Hostname(), port)
	if u.User != nil {
		c.User = u.User.Username()
		c.Passwd, _ = u.User.Password()
	}
	c.DBName = strings.TrimPrefix(u.Path, "/")
	if c.DBName == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "mysql connection URL must name a database")
	}
	if tls := u.Query().Get("tls"); tls != "" {
		c.TLSConfig = tls
	}
	return c, nil
}

// buildConfig applies askdb's timeouts on top of the parsed DSN.
func buildConfig(cfg *database.Config) (*mysql.Config, error) {
	c, err := parseDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	c.ParseTime = true
	c.MultiStatements = false
	c.Timeout = defaultConnTimeout
	if cfg.ConnectTimeout > 0 {
		c.Timeout = cfg.ConnectTimeout
	}
	if cfg.QueryTimeout > 0 {
		c.ReadTimeout = cfg.QueryTimeout + readTimeoutSlack
	}
	return c, nil
}

// buildPool configures and returns a *sql.DB with pool settings
func buildPool(cfg *database.Config) (*sql.DB, error) {
	c, err := buildConfig(cfg)
	if err != nil {
		return nil, err
	}

	connector, err := mysql.NewConnector(c)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid mysql connection settings", err)
	}
	db := sql.OpenDB(connector)

	maxOpen := int(cfg.MaxConns)
	if maxOpen == 0 {
		maxOpen = defaultMaxOpenConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(max(int(cfg.MinConns), 1))
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}
	if cfg.MaxConnIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)
	}

	return db, nil
}
