package backend

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/ZhaoFuheng/blendsql/sqlast"
)

// OpenMySQL opens a MySQL connection and returns a Backend speaking
// MySQL's backtick-quoting dialect.
func OpenMySQL(dsn string) (Backend, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening mysql connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connecting to mysql: %w", err)
	}

	return &sqlBackend{db: db, dialect: sqlast.MySQLDialect{}, driver: "mysql"}, nil
}
