package blendsql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutowrapQueryWrapsBareIngredientCall(t *testing.T) {
	got := autowrapQuery(`{{LLMQA('how many rows?')}}`)
	assert.Equal(t, `SELECT {{LLMQA('how many rows?')}}`, got)
}

func TestAutowrapQueryLeavesSelectUntouched(t *testing.T) {
	q := `SELECT {{LLMQA('how many rows?')}} FROM t`
	assert.Equal(t, q, autowrapQuery(q))
}

func TestAutowrapQueryLeavesPlainQueryUntouched(t *testing.T) {
	q := `SELECT * FROM t`
	assert.Equal(t, q, autowrapQuery(q))
}

func TestAutowrapQueryToleratesLeadingWhitespace(t *testing.T) {
	got := autowrapQuery("   {{QA('x?')}}")
	assert.Equal(t, "SELECT {{QA('x?')}}", got)
}

func TestRejectDMLDDLRejectsEachStatementKind(t *testing.T) {
	for _, stmt := range []string{
		"DELETE FROM t",
		"UPDATE t SET x = 1",
		"INSERT INTO t VALUES (1)",
		"DROP TABLE t",
		"ALTER TABLE t ADD COLUMN y",
		"CREATE TABLE t (x int)",
		"TRUNCATE t",
		"REPLACE INTO t VALUES (1)",
		"  insert into t values (1)",
	} {
		t.Run(stmt, func(t *testing.T) {
			err := rejectDMLDDL(stmt)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidQuery))
		})
	}
}

func TestRejectDMLDDLAllowsSelect(t *testing.T) {
	assert.NoError(t, rejectDMLDDL("SELECT * FROM t"))
}

func TestPreprocessQueryWrapsThenValidates(t *testing.T) {
	out, err := preprocessQuery(`{{LLMQA('x?')}}`)
	require.NoError(t, err)
	assert.Equal(t, `SELECT {{LLMQA('x?')}}`, out)
}

func TestPreprocessQueryRejectsDML(t *testing.T) {
	_, err := preprocessQuery("DELETE FROM t")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidQuery))
}
