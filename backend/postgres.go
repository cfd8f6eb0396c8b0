package backend

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ZhaoFuheng/blendsql/sqlast"
)

// OpenPostgres opens a Postgres connection via pgx's database/sql driver
// shim and returns a Backend speaking Postgres's identifier-quoting
// dialect.
func OpenPostgres(dsn string) (Backend, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	return &sqlBackend{db: db, dialect: sqlast.PostgresDialect{}, driver: "postgres"}, nil
}
