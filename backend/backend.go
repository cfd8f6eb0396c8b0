// Package backend wraps the relational engine a Blend call executes
// against. It is a thin abstraction over database/sql rather than a new
// query layer: every backend reads driver rows into a fully materialized
// Table, and the only engine-specific behavior concentrated here is identifier
// quoting, temp-table materialization syntax, and schema introspection.
package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ZhaoFuheng/blendsql/sqlast"
)

// Sentinel errors raised by backend operations. Callers use errors.Is
// against these, since they are wrapped with additional context via
// fmt.Errorf("%w: ...").
var (
	// ErrBackendError wraps a failure surfaced verbatim from the backend.
	ErrBackendError = errors.New("backend execution failed")
	// ErrTableNotFound indicates a referenced table is absent from the backend.
	ErrTableNotFound = errors.New("table not found")
)

// Row is a materialized result row as a map from column name to value.
// The orchestrator reads tables this way rather than through a cursor
// since ingredient implementations need the whole column at once (to
// batch LLM calls across rows), not one row at a time.
type Row map[string]any

// Table is a fully materialized query result: ordered column names plus
// every row, in result order.
type Table struct {
	Columns []string
	Rows    []Row
}

// Column returns every value in the named column, in row order, formatted
// as strings — the shape MAP and QA ingredients consume.
func (t *Table) Column(name string) []string {
	out := make([]string, len(t.Rows))

	for i, row := range t.Rows {
		out[i] = fmt.Sprint(row[name])
	}

	return out
}

// Backend is the relational engine a Blend invocation executes against.
type Backend interface {
	// Dialect identifies the SQL dialect this backend speaks, used by the
	// sqlast printer to quote identifiers correctly.
	Dialect() sqlast.Dialect

	// ExecuteQuery runs a fully-resolved (ingredient-free) SELECT and
	// returns its materialized result.
	ExecuteQuery(ctx context.Context, query string) (*Table, error)

	// Exec runs a statement that returns no rows (ALTER/UPDATE against a
	// session temp table), for the orchestrator's MAP-column merge.
	Exec(ctx context.Context, stmt string) error

	// Materialize creates a table named tableName holding the result of
	// query, dropping any existing table of that name first, for the
	// orchestrator's session/subquery temp tables.
	Materialize(ctx context.Context, tableName, query string) error

	// HasTable reports whether tableName currently exists.
	HasTable(ctx context.Context, tableName string) (bool, error)

	// DropTable removes tableName if it exists, used during Blend's
	// cleanup pass.
	DropTable(ctx context.Context, tableName string) error

	// IterColumns returns the column names of tableName, in declared
	// order.
	IterColumns(ctx context.Context, tableName string) ([]string, error)

	// Close releases any resources (connection pool) the backend holds.
	Close() error
}

// sqlBackend is the shared implementation behind the sqlite/postgres/mysql
// backends: all three speak database/sql and differ only in dialect,
// driver name, and a couple of DDL spellings.
type sqlBackend struct {
	db      *sql.DB
	dialect sqlast.Dialect
	driver  string
}

func (b *sqlBackend) Dialect() sqlast.Dialect { return b.dialect }

func (b *sqlBackend) ExecuteQuery(ctx context.Context, query string) (*Table, error) {
	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBackendError, query, err)
	}
	defer rows.Close()

	return scanTable(rows)
}

func scanTable(rows *sql.Rows) (*Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: reading columns: %v", ErrBackendError, err)
	}

	table := &Table{Columns: cols}

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))

		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: scanning row: %v", ErrBackendError, err)
		}

		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}

		table.Rows = append(table.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating rows: %v", ErrBackendError, err)
	}

	return table, nil
}

func (b *sqlBackend) Exec(ctx context.Context, stmt string) error {
	if _, err := b.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBackendError, stmt, err)
	}

	return nil
}

func (b *sqlBackend) Materialize(ctx context.Context, tableName, query string) error {
	if err := b.DropTable(ctx, tableName); err != nil {
		return err
	}

	quoted := b.dialect.QuoteIdent(tableName)

	stmt := fmt.Sprintf("CREATE TEMPORARY TABLE %s AS %s", quoted, query)
	if b.driver == "mysql" {
		// MySQL's TEMPORARY TABLE ... AS SELECT has the same shape as
		// SQLite/Postgres; no divergence needed today, kept as its own
		// branch because MySQL lacks CREATE TEMPORARY TABLE IF NOT EXISTS
		// ... AS in older server versions and a future workaround would
		// live here.
		stmt = fmt.Sprintf("CREATE TEMPORARY TABLE %s AS %s", quoted, query)
	}

	if _, err := b.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%w: materializing %s: %v", ErrBackendError, tableName, err)
	}

	return nil
}

func (b *sqlBackend) DropTable(ctx context.Context, tableName string) error {
	quoted := b.dialect.QuoteIdent(tableName)

	if _, err := b.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoted); err != nil {
		return fmt.Errorf("%w: dropping %s: %v", ErrBackendError, tableName, err)
	}

	return nil
}

func (b *sqlBackend) HasTable(ctx context.Context, tableName string) (bool, error) {
	cols, err := b.IterColumns(ctx, tableName)
	if err != nil {
		return false, nil //nolint:nilerr // absence of columns means absence of table for our purposes
	}

	return len(cols) > 0, nil
}

func (b *sqlBackend) IterColumns(ctx context.Context, tableName string) ([]string, error) {
	quoted := b.dialect.QuoteIdent(tableName)

	rows, err := b.db.QueryContext(ctx, "SELECT * FROM "+quoted+" LIMIT 0")
	if err != nil {
		return nil, fmt.Errorf("%w: introspecting %s: %v", ErrTableNotFound, tableName, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: reading columns of %s: %v", ErrBackendError, tableName, err)
	}

	return cols, nil
}

func (b *sqlBackend) Close() error { return b.db.Close() }

// quoteLiteral escapes a string for embedding as a SQL string literal,
// doubling embedded quote characters. Nothing in this module calls it; the
// orchestrator quotes its generated literals with its own helpers.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
