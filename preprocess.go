package blendsql

import (
	"fmt"
	"regexp"
	"strings"
)

var dmlDdlPrefix = regexp.MustCompile(`(?i)^\s*(DELETE|UPDATE|INSERT|DROP|ALTER|CREATE|TRUNCATE|REPLACE)\b`)

// rejectDMLDDL returns ErrInvalidQuery if query begins with a data- or
// schema-modifying statement. BlendSQL is read-only: it materializes
// intermediate results into its own session-scoped temp tables, but never
// lets a caller's query text touch the backend's real tables.
func rejectDMLDDL(query string) error {
	if dmlDdlPrefix.MatchString(query) {
		return fmt.Errorf("%w: DML/DDL statements are not permitted", ErrInvalidQuery)
	}

	return nil
}

var bareIngredientPattern = regexp.MustCompile(`^\s*\{\{`)

// autowrapQuery wraps a query consisting of nothing but a bare ingredient
// call — `{{LLMQA('...')}}` with no enclosing SELECT — in a trivial
// `SELECT {{...}}` so it parses as a Select like everything else. This
// matches the preprocessing the Python orchestrator performs before
// parsing: a query that is just a QA ingredient call is shorthand for
// asking it as the sole projected value of a one-row result.
func autowrapQuery(query string) string {
	trimmed := strings.TrimSpace(query)

	if bareIngredientPattern.MatchString(trimmed) && !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return "SELECT " + trimmed
	}

	return query
}

// preprocessQuery runs autowrap followed by the DML/DDL guard, returning
// the text ready to hand to the parser.
func preprocessQuery(query string) (string, error) {
	wrapped := autowrapQuery(query)

	if err := rejectDMLDDL(wrapped); err != nil {
		return "", err
	}

	return wrapped, nil
}
