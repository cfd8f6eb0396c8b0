package sqlast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintRoundTripsPlainSelect(t *testing.T) {
	sel, err := Parse("SELECT item FROM w WHERE item = 'apple'")
	require.NoError(t, err)

	got := Print(sel, SQLiteDialect{})
	assert.Equal(t, `SELECT item FROM w WHERE item = 'apple'`, got)
}

func TestPrintPreservesPlaceholderRaw(t *testing.T) {
	sel, err := Parse("SELECT item FROM w WHERE {{IsFruit('is fruit?', 'w::item')}} = 1")
	require.NoError(t, err)

	got := Print(sel, SQLiteDialect{})
	assert.Contains(t, got, "{{IsFruit('is fruit?', 'w::item')}}")
}

func TestPrintFallsBackToAliasWhenRawEmpty(t *testing.T) {
	sel := &Select{
		Columns: []SelectItem{{Expr: &PlaceholderExpr{Alias: "X"}}},
	}

	got := Print(sel, SQLiteDialect{})
	assert.Contains(t, got, "{{X()}}")
}

func TestPrintQuotesKeywordIdentifiers(t *testing.T) {
	sel := &Select{
		Columns: []SelectItem{{Expr: &Ident{Name: "select"}}},
		From:    []TableExpr{&Table{Name: "t"}},
	}

	got := Print(sel, SQLiteDialect{})
	assert.Contains(t, got, `"select"`)
}

func TestPrintMySQLUsesBackticks(t *testing.T) {
	sel := &Select{
		Columns: []SelectItem{{Expr: &Ident{Name: "order"}}},
		From:    []TableExpr{&Table{Name: "t"}},
	}

	got := Print(sel, MySQLDialect{})
	assert.Contains(t, got, "`order`")
}

func TestPrintJoinWithPlaceholderOn(t *testing.T) {
	sel := &Select{
		Columns: []SelectItem{{Expr: &Star{}}},
		From: []TableExpr{&Join{
			Type:  InnerJoin,
			Left:  &Table{Name: "L"},
			Right: &Table{Name: "R"},
			On:    &PlaceholderExpr{Raw: "EXISTS (SELECT 1 FROM m WHERE m.l = L.x AND m.r = R.y)"},
		}},
	}

	got := Print(sel, SQLiteDialect{})
	assert.Contains(t, got, "JOIN R ON EXISTS (SELECT 1 FROM m WHERE m.l = L.x AND m.r = R.y)")
}
