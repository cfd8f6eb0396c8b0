package grammar

import "errors"

// Sentinel errors raised while recognizing `{{NAME(args)}}` ingredient
// calls. Callers use errors.Is against these, since they are wrapped
// with additional context via fmt.Errorf("%w: ...").
var (
	// ErrMalformedIngredientCall indicates the scanner recognized `{{` but
	// could not parse a well-formed NAME(args) invocation after it.
	ErrMalformedIngredientCall = errors.New("malformed ingredient call")
	// ErrNoClosingParenthesis indicates the scanner hit EOF while balancing
	// parentheses inside an ingredient argument list, or found no closing
	// `}}` after the argument list.
	ErrNoClosingParenthesis = errors.New("could not find closing parenthesis for ingredient call")
	// ErrUnterminatedString indicates a quoted argument literal never closes.
	ErrUnterminatedString = errors.New("unterminated string literal")
)
