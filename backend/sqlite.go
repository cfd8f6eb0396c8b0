package backend

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ZhaoFuheng/blendsql/sqlast"
)

// OpenSQLite opens a SQLite database at dsn (a file path, or ":memory:")
// and returns a Backend speaking SQLite's FTS5-adjacent dialect — the
// default and most commonly used backend for BlendSQL queries.
func OpenSQLite(dsn string) (Backend, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %q: %w", dsn, err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connecting to sqlite database %q: %w", dsn, err)
	}

	// SQLite TEMPORARY TABLEs (and an in-memory :memory: database itself)
	// are scoped to a single connection; database/sql's pool would
	// otherwise hand successive queries different connections and make
	// a session's own temp tables vanish mid-Blend.
	db.SetMaxOpenConns(1)

	return &sqlBackend{db: db, dialect: sqlast.SQLiteDialect{}, driver: "sqlite3"}, nil
}
