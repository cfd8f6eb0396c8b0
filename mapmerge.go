package blendsql

import (
	"context"
	"fmt"

	"github.com/ZhaoFuheng/blendsql/backend"
)

// mergeMapColumn adds column to tableName and fills it with values, in
// the row order ExecuteQuery returned them. It relies on the table having
// a stable implicit row order within one transaction (SQLite's rowid,
// which every session temp table — created via `CREATE TEMPORARY TABLE
// ... AS SELECT` — inherits); this is the same assumption the
// orchestrator's MAP-result merge makes in the original implementation,
// where the generated column is joined back in strictly by positional
// row order rather than by any declared key.
func mergeMapColumn(ctx context.Context, be backend.Backend, tableName, column string, values []string) error {
	quotedTable := be.Dialect().QuoteIdent(tableName)
	quotedCol := be.Dialect().QuoteIdent(column)

	alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", quotedTable, quotedCol)
	if err := be.Exec(ctx, alter); err != nil {
		return fmt.Errorf("%w: adding generated column %s: %v", backend.ErrBackendError, column, err)
	}

	for i, v := range values {
		update := fmt.Sprintf("UPDATE %s SET %s = %s WHERE rowid = %d", quotedTable, quotedCol, quoteLit(v), i+1)

		if err := be.Exec(ctx, update); err != nil {
			return fmt.Errorf("%w: writing generated column %s row %d: %v", backend.ErrBackendError, column, i+1, err)
		}
	}

	return nil
}
