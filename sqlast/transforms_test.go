package sqlast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveCTEsStripsWithClause(t *testing.T) {
	sel, err := Parse("WITH c AS (SELECT id FROM t) SELECT id FROM c")
	require.NoError(t, err)

	removed := RemoveCTEs(sel)
	require.Len(t, removed, 1)
	assert.Equal(t, "c", removed[0].Name)
	assert.Nil(t, sel.With)
}

func TestPruneWithRemovesOnlyNamedCTE(t *testing.T) {
	sel, err := Parse("WITH a AS (SELECT 1), b AS (SELECT 2) SELECT 1")
	require.NoError(t, err)

	found := PruneWith(sel, "a")
	assert.True(t, found)
	require.Len(t, sel.With.CTEs, 1)
	assert.Equal(t, "b", sel.With.CTEs[0].Name)
}

func TestPruneWithClearsClauseWhenEmpty(t *testing.T) {
	sel, err := Parse("WITH a AS (SELECT 1) SELECT 1")
	require.NoError(t, err)

	found := PruneWith(sel, "a")
	assert.True(t, found)
	assert.Nil(t, sel.With)
}

func TestPruneTrueWhereRemovesLiteralTrue(t *testing.T) {
	sel := &Select{Where: TrueLiteral()}

	PruneTrueWhere(sel)
	assert.Nil(t, sel.Where)
}

func TestPruneTrueWhereLeavesOtherPredicates(t *testing.T) {
	sel, err := Parse("SELECT 1 FROM t WHERE x = 1")
	require.NoError(t, err)

	PruneTrueWhere(sel)
	assert.NotNil(t, sel.Where)
}

func TestReplaceSubqueryWithDirectAliasCall(t *testing.T) {
	sel, err := Parse("SELECT x FROM (SELECT id AS x FROM t) AS sub")
	require.NoError(t, err)

	ReplaceSubqueryWithDirectAliasCall(sel, "sub", "blendsql_abcd_sub")

	tbl, ok := sel.From[0].(*Table)
	require.True(t, ok)
	assert.Equal(t, "blendsql_abcd_sub", tbl.Name)
	assert.Equal(t, "sub", tbl.Alias)
}

func TestMaybeSetSubqueriesToTrue(t *testing.T) {
	sel, err := Parse("SELECT * FROM t WHERE EXISTS (SELECT 1 FROM u)")
	require.NoError(t, err)

	count := MaybeSetSubqueriesToTrue(sel, func(*Select) bool { return true })
	assert.Equal(t, 1, count)

	lit, ok := sel.Where.(*Literal)
	require.True(t, ok)
	assert.Equal(t, BoolLiteral, lit.Kind)
}

func TestWalkCanReplaceNodesInPlace(t *testing.T) {
	sel, err := Parse("SELECT x FROM t WHERE x = 1")
	require.NoError(t, err)

	replaced := Walk(sel.Where, func(n Node) Node {
		if lit, ok := n.(*Literal); ok && lit.Raw == "1" {
			return &Literal{Kind: NumberLiteral, Raw: "2"}
		}

		return n
	})

	be, ok := replaced.(*BinaryExpr)
	require.True(t, ok)

	lit, ok := be.Right.(*Literal)
	require.True(t, ok)
	assert.Equal(t, "2", lit.Raw)
}
