// Package sqlstore keeps customers and document metadata in PostgreSQL or
// SQLite through database/sql.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func ParseDialect(s string) (Dialect, error) {
	switch Dialect(s) {
	case DialectPostgres, DialectSQLite:
		return Dialect(s), nil
	default:
		return "", fmt.Errorf("unknown metadata driver %q", s)
	}
}

func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// OpenSQLite opens (creating if needed) the database file at path with
// foreign keys enforced. Writers are serialized on a single connection.
func OpenSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_time_format", "sqlite")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// Open dispatches on dialect; target is a DSN for postgres and a file path
// for sqlite.
func Open(dialect Dialect, target string) (*sql.DB, error) {
	switch dialect {
	case DialectPostgres:
		return OpenPostgres(target)
	case DialectSQLite:
		return OpenSQLite(target)
	default:
		return nil, fmt.Errorf("unknown metadata driver %q", dialect)
	}
}

var numberedPlaceholder = regexp.MustCompile(`\$\d+`)

// rebind turns $N placeholders into ? for sqlite. Queries are written with
// each placeholder used once, in ascending order.
func rebind(dialect Dialect, query string) string {
	if dialect != DialectSQLite {
		return query
	}
	return numberedPlaceholder.ReplaceAllString(query, "?")
}
