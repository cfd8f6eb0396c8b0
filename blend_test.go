package blendsql

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhaoFuheng/blendsql/backend"
	"github.com/ZhaoFuheng/blendsql/llmmodel"
)

func newTestBackend(t *testing.T) backend.Backend {
	t.Helper()

	be, err := backend.OpenSQLite(":memory:")
	require.NoError(t, err)

	t.Cleanup(func() { _ = be.Close() })

	return be
}

func seedWidgets(t *testing.T, be backend.Backend) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, be.Exec(ctx, "CREATE TABLE widgets (id INTEGER, name TEXT)"))
	require.NoError(t, be.Exec(ctx, "INSERT INTO widgets (id, name) VALUES (1, 'apple'), (2, 'carrot')"))
}

func tempTableCount(t *testing.T, be backend.Backend) int {
	t.Helper()

	table, err := be.ExecuteQuery(context.Background(), "SELECT name FROM sqlite_temp_master WHERE type = 'table' AND name LIKE 'blendsql_%'")
	require.NoError(t, err)

	return len(table.Rows)
}

func TestBlendPassthroughWithNoIngredients(t *testing.T) {
	be := newTestBackend(t)
	seedWidgets(t, be)

	kitchen := NewDefaultKitchen(llmmodel.NewStatic(nil, ""))

	smoothie, err := Blend(context.Background(), "SELECT id, name FROM widgets ORDER BY id", be, kitchen, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name"}, smoothie.Table.Columns)
	require.Len(t, smoothie.Table.Rows, 2)
	assert.False(t, smoothie.Meta.ContainsIngredient)
	assert.Empty(t, smoothie.Meta.Ingredients)
}

func TestBlendAutowrapsBareIngredientCall(t *testing.T) {
	be := newTestBackend(t)

	model := llmmodel.NewStatic(map[string]string{"Question: how many planets?": "8"}, "unknown")
	kitchen := NewDefaultKitchen(model)

	smoothie, err := Blend(context.Background(), `{{LLMQA('how many planets?')}}`, be, kitchen, nil)
	require.NoError(t, err)

	require.Len(t, smoothie.Table.Rows, 1)
	assert.Equal(t, "8", fmtScalar(smoothie.Table.Rows[0][0]))
	assert.True(t, smoothie.Meta.ContainsIngredient)
	require.Len(t, smoothie.Meta.Ingredients, 1)
	assert.Equal(t, "QA", smoothie.Meta.Ingredients[0].Kind)
}

func TestBlendResolvesMapIngredientIntoProjectedColumn(t *testing.T) {
	be := newTestBackend(t)
	seedWidgets(t, be)

	model := llmmodel.NewStatic(map[string]string{
		"Value: apple":  "yes",
		"Value: carrot": "no",
	}, "unknown")
	kitchen := NewDefaultKitchen(model)

	query := `SELECT name, {{LLMMap('is it a fruit?', 'name')}} AS is_fruit FROM widgets ORDER BY name`

	smoothie, err := Blend(context.Background(), query, be, kitchen, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "is_fruit"}, smoothie.Table.Columns)
	require.Len(t, smoothie.Table.Rows, 2)
	assert.Equal(t, "apple", fmtScalar(smoothie.Table.Rows[0][0]))
	assert.Equal(t, "yes", fmtScalar(smoothie.Table.Rows[0][1]))
	assert.Equal(t, "carrot", fmtScalar(smoothie.Table.Rows[1][0]))
	assert.Equal(t, "no", fmtScalar(smoothie.Table.Rows[1][1]))
}

func TestBlendResolvesMapThenQAInPriorityOrder(t *testing.T) {
	be := newTestBackend(t)
	seedWidgets(t, be)

	model := llmmodel.NewStatic(map[string]string{
		"Value: apple":            "yes",
		"Value: carrot":           "no",
		"Question: how many rows?": "2",
	}, "unknown")
	kitchen := NewDefaultKitchen(model)

	query := `SELECT name, {{LLMMap('is it a fruit?', 'name')}} AS is_fruit, {{LLMQA('how many rows?')}} AS total FROM widgets ORDER BY name`

	smoothie, err := Blend(context.Background(), query, be, kitchen, nil)
	require.NoError(t, err)

	require.Len(t, smoothie.Meta.Ingredients, 2)
	assert.Equal(t, "MAP", smoothie.Meta.Ingredients[0].Kind)
	assert.Equal(t, "QA", smoothie.Meta.Ingredients[1].Kind)

	assert.Equal(t, []string{"name", "is_fruit", "total"}, smoothie.Table.Columns)
	require.Len(t, smoothie.Table.Rows, 2)
	assert.Equal(t, "2", fmtScalar(smoothie.Table.Rows[0][2]))
}

func TestBlendRejectsDMLQuery(t *testing.T) {
	be := newTestBackend(t)
	seedWidgets(t, be)

	kitchen := NewDefaultKitchen(llmmodel.NewStatic(nil, ""))

	_, err := Blend(context.Background(), "DELETE FROM widgets", be, kitchen, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidQuery))
}

func TestBlendCleansUpSessionTempTables(t *testing.T) {
	be := newTestBackend(t)
	seedWidgets(t, be)

	model := llmmodel.NewStatic(map[string]string{"Value: apple": "yes", "Value: carrot": "no"}, "unknown")
	kitchen := NewDefaultKitchen(model)

	_, err := Blend(context.Background(), `SELECT name, {{LLMMap('is it a fruit?', 'name')}} AS is_fruit FROM widgets`, be, kitchen, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, tempTableCount(t, be))
}

func TestBlendResolvesIngredientInWhereClause(t *testing.T) {
	be := newTestBackend(t)
	seedWidgets(t, be)

	model := llmmodel.NewStatic(map[string]string{
		"Value: apple":  "yes",
		"Value: carrot": "no",
	}, "unknown")
	kitchen := NewDefaultKitchen(model)

	query := `SELECT name FROM widgets WHERE {{LLMMap('is it a fruit?', 'name')}} = 'yes'`

	smoothie, err := Blend(context.Background(), query, be, kitchen, nil)
	require.NoError(t, err)

	require.Len(t, smoothie.Table.Rows, 1)
	assert.Equal(t, "apple", fmtScalar(smoothie.Table.Rows[0][0]))
}

func TestBlendReportsAggregateTokenUsage(t *testing.T) {
	be := newTestBackend(t)
	seedWidgets(t, be)

	model := llmmodel.NewStatic(map[string]string{
		"Value: apple":  "yes",
		"Value: carrot": "no",
	}, "unknown")
	kitchen := NewDefaultKitchen(model)

	query := `SELECT name, {{LLMMap('is it a fruit?', 'name')}} AS is_fruit FROM widgets`

	smoothie, err := Blend(context.Background(), query, be, kitchen, nil)
	require.NoError(t, err)

	assert.Greater(t, smoothie.Meta.PromptTokens, 0)
}

func TestBlendHonorsMaxRecursionDepthOption(t *testing.T) {
	be := newTestBackend(t)
	seedWidgets(t, be)

	kitchen := NewDefaultKitchen(llmmodel.NewStatic(nil, ""))

	query := `SELECT * FROM (SELECT * FROM (SELECT id FROM widgets) AS inner1) AS outer1`

	_, err := Blend(context.Background(), query, be, kitchen, nil, WithMaxRecursionDepth(0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvariantViolation))
}

func TestBlendResolvesJoinIngredientAsExistsRewrite(t *testing.T) {
	be := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, be.Exec(ctx, "CREATE TABLE left_t (val TEXT)"))
	require.NoError(t, be.Exec(ctx, "INSERT INTO left_t (val) VALUES ('bob brown'), ('jane doe')"))
	require.NoError(t, be.Exec(ctx, "CREATE TABLE right_t (val TEXT)"))
	require.NoError(t, be.Exec(ctx, "INSERT INTO right_t (val) VALUES ('bob brown (ice hockey)'), ('sue smith (tennis)')"))

	model := llmmodel.NewStatic(map[string]string{
		"Criteria: same person": "bob brown -> bob brown (ice hockey)\njane doe -> -",
	}, "")
	kitchen := NewDefaultKitchen(model)

	query := `SELECT left_t.val, right_t.val FROM left_t JOIN right_t ON {{LLMJoin('same person', left_on='left_t::val', right_on='right_t::val')}}`

	smoothie, err := Blend(ctx, query, be, kitchen, nil)
	require.NoError(t, err)

	require.Len(t, smoothie.Table.Rows, 1)
	assert.Equal(t, "bob brown", fmtScalar(smoothie.Table.Rows[0][0]))
	assert.Equal(t, "bob brown (ice hockey)", fmtScalar(smoothie.Table.Rows[0][1]))

	require.Len(t, smoothie.Meta.Ingredients, 1)
	assert.Equal(t, "JOIN", smoothie.Meta.Ingredients[0].Kind)
}

func TestBlendWithInferMapConstraintsPrependsExampleOutputs(t *testing.T) {
	be := newTestBackend(t)
	seedWidgets(t, be)

	model := llmmodel.NewStatic(map[string]string{
		"look like: id = 1": "yes",
	}, "no-match")
	kitchen := NewDefaultKitchen(model)

	query := `SELECT id, name, {{LLMMap('is it a fruit?', 'name')}} AS is_fruit FROM widgets WHERE id = 1`

	smoothie, err := Blend(context.Background(), query, be, kitchen, nil, WithInferMapConstraints(true))
	require.NoError(t, err)

	require.Len(t, smoothie.Table.Rows, 1)
	assert.Equal(t, "apple", fmtScalar(smoothie.Table.Rows[0][1]))
	assert.Equal(t, "yes", fmtScalar(smoothie.Table.Rows[0][2]))
}

func TestBlendWithoutInferMapConstraintsOmitsExampleOutputs(t *testing.T) {
	be := newTestBackend(t)
	seedWidgets(t, be)

	model := llmmodel.NewStatic(map[string]string{
		"look like: id = 1": "yes",
	}, "no-match")
	kitchen := NewDefaultKitchen(model)

	query := `SELECT id, name, {{LLMMap('is it a fruit?', 'name')}} AS is_fruit FROM widgets WHERE id = 1`

	smoothie, err := Blend(context.Background(), query, be, kitchen, nil)
	require.NoError(t, err)

	require.Len(t, smoothie.Table.Rows, 1)
	assert.Equal(t, "no-match", fmtScalar(smoothie.Table.Rows[0][2]))
}

func TestBlendAppliesBlenderArgsOverrideLastWriterWins(t *testing.T) {
	be := newTestBackend(t)

	model := llmmodel.NewStatic(map[string]string{
		"selection from: alice jones,frank smith": "Alice",
	}, "unknown")
	kitchen := NewDefaultKitchen(model)

	query := `{{LLMQA('who won?', options='frank smith')}}`

	smoothie, err := Blend(context.Background(), query, be, kitchen, nil,
		WithBlenderArgs(map[string]any{"options": "alice jones,frank smith"}))
	require.NoError(t, err)

	require.Len(t, smoothie.Table.Rows, 1)
	assert.Equal(t, "alice jones", fmtScalar(smoothie.Table.Rows[0][0]))
}

func TestBlendEvaluatesKwargExpressionAgainstBlenderArgsVars(t *testing.T) {
	be := newTestBackend(t)

	model := llmmodel.NewStatic(map[string]string{
		"selection from: frank smith,jane doe": "Frank",
	}, "unknown")
	kitchen := NewDefaultKitchen(model)

	query := `{{LLMQA('who won?', options=opt_list)}}`

	smoothie, err := Blend(context.Background(), query, be, kitchen, nil,
		WithBlenderArgs(map[string]any{"opt_list": "frank smith,jane doe"}))
	require.NoError(t, err)

	require.Len(t, smoothie.Table.Rows, 1)
	assert.Equal(t, "frank smith", fmtScalar(smoothie.Table.Rows[0][0]))
}

func fmtScalar(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}

	return fmt.Sprint(v)
}
