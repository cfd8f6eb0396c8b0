package blendsql

import "errors"

// Sentinel errors returned by the orchestrator and its supporting packages.
// Callers are expected to use errors.Is against these, since most are wrapped
// with additional context via fmt.Errorf("%w: ...").
var (
	// ErrInvalidQuery is returned when a query cannot be executed as BlendSQL:
	// it contains a DML/DDL node, references an ingredient type outside the
	// closed MAP/QA/JOIN/STRING set, or still fails to parse after autowrap.
	ErrInvalidQuery = errors.New("invalid blendsql query")
	// ErrIngredientError wraps any error raised from an ingredient's Run.
	ErrIngredientError = errors.New("ingredient raised an error")
	// ErrInvariantViolation marks an internal consistency check that failed.
	// Blend returns it when nested subquery resolution exceeds the
	// configured maximum recursion depth.
	ErrInvariantViolation = errors.New("blendsql invariant violation")

	// ErrUnexpectedCharacter and ErrUnexpectedEOF are not returned by
	// anything in this module: the sqlast lexer emits an OTHER token for an
	// unrecognized byte, and the parser reports running out of tokens with
	// sqlast.ErrUnexpectedToken.
	ErrUnexpectedCharacter = errors.New("unexpected character")
	ErrUnexpectedEOF       = errors.New("unexpected end of input")

	// ErrSubqueryWithoutSingleParentTable names the failure to wrap a bare
	// predicate subquery into a SELECT over its parent's single FROM table.
	// The orchestrator performs no such wrapping and never returns it.
	ErrSubqueryWithoutSingleParentTable = errors.New("subquery parent has no single table to wrap")

	// ErrConfigValidation is returned when a loaded Config fails validation.
	ErrConfigValidation = errors.New("configuration validation failed")
)

// ErrBackendError and ErrTableNotFound live in package backend; grammar's
// ErrMalformedIngredientCall/ErrNoClosingParenthesis/ErrUnterminatedString,
// sqlast's equivalents, and ingredient's ErrDuplicateIngredient/
// ErrUnknownIngredient live in their own packages. The orchestrator imports
// those packages, so their sentinels cannot also live here without creating
// an import cycle.
