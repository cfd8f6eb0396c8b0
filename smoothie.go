package blendsql

import "time"

// Smoothie is the result envelope Blend returns: the resolved table plus
// everything about how it got there, so a caller can audit or log an
// ingredient-laden query the same way it would any LLM call.
type Smoothie struct {
	// Table is the final, fully-resolved query result.
	Table *ResultTable

	// Meta carries the bookkeeping the orchestrator accumulated while
	// resolving OriginalQuery.
	Meta SmoothieMeta
}

// ResultTable is the minimal table shape Smoothie carries, independent of
// the backend package so callers that only care about the answer don't
// need to import it.
type ResultTable struct {
	Columns []string
	Rows    [][]any
}

// SmoothieMeta is the metadata portion of a Smoothie.
type SmoothieMeta struct {
	OriginalQuery     string
	ExecutedQuery     string
	ContainsIngredient bool
	Ingredients       []IngredientInvocation
	PromptTokens      int
	CompletionTokens  int
	NumValuesPassed   int
	ProcessTime       time.Duration
}

// IngredientInvocation records one ingredient call resolved during Blend,
// in resolution order.
type IngredientInvocation struct {
	Name             string
	Kind             string
	Args             []string
	Kwargs           map[string]string
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
}
