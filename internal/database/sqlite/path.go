package sqlite

import (
	"fmt"
	"os"
	"strings"

	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/errs"
)

const memoryPath = ":memory:"

// filePath strips URL-ish prefixes and query strings so that
// "sqlite:///data/app.db", "file:app.db?mode=ro" and "app.db" all
// resolve to a plain filesystem path.
func filePath(dsn string) string {
	p := strings.TrimSpace(dsn)
	for _, prefix := range []string{"sqlite3://", "sqlite://", "sqlite:", "file:"} {
		if strings.HasPrefix(p, prefix) {
			p = strings.TrimPrefix(p, prefix)
			break
		}
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	// sqlite:////abs/path leaves a doubled slash behind.
	if strings.HasPrefix(p, "//") {
		p = p[1:]
	}
	return p
}

// checkPath verifies the database file exists and is readable. SQLite
// would otherwise silently create an empty database for a typo.
func checkPath(cfg *database.Config) (string, error) {
	p := filePath(cfg.DSN)
	if p == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "sqlite connection string has no file path")
	}
	if p == memoryPath {
		if !cfg.AllowMemory {
			return "", errs.New(errs.ErrKindInvalidInput, "in-memory sqlite databases are not allowed")
		}
		return p, nil
	}

	fi, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errs.Newf(errs.ErrKindInvalidInput, "sqlite database file %s does not exist", p)
		}
		return "", errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("cannot access sqlite database file %s", p), err)
	}
	if fi.IsDir() {
		return "", errs.Newf(errs.ErrKindInvalidInput, "%s is a directory, not a sqlite database file", p)
	}

	f, err := os.Open(p)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("sqlite database file %s is not readable", p), err)
	}
	_ = f.Close()
	return p, nil
}

// buildDSN produces the modernc.org/sqlite DSN for a checked path.
func buildDSN(path string, cfg *database.Config) string {
	if path == memoryPath {
		return memoryPath
	}
	mode := "ro"
	if !cfg.ReadOnly {
		mode = "rw"
	}
	return fmt.Sprintf("file:%s?mode=%s&_pragma=busy_timeout(%d)", path, mode, busyTimeoutMillis)
}
