// Package ingredient defines the Ingredient contract ingredient
// implementations satisfy and the Kitchen registry the orchestrator
// dispatches through.
//
// BlendSQL's Python ancestor dispatched ingredient behavior by class
// inheritance (MapIngredient, QAIngredient, JoinIngredient subclasses
// overriding a run/call method) and cached LLM program results by
// introspecting a program function's AST and closed-over globals to build
// a hash key. Neither pattern translates to Go: there is no open class
// hierarchy to subtype, and there is no portable way to hash a function's
// source from within the running binary. Instead, dispatch is a closed
// tagged union over Kind, and caching keys off an explicit Descriptor the
// ingredient author supplies plus a serialized fingerprint of its
// evaluated kwargs — a stable identity declared once, not derived by
// reflection every call.
package ingredient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors raised by the Kitchen registry. Callers use errors.Is
// against these, since they are wrapped with additional context via
// fmt.Errorf("%w: ...").
var (
	// ErrDuplicateIngredient is returned at Kitchen registration time when
	// two ingredients share a name case-insensitively.
	ErrDuplicateIngredient = errors.New("duplicate ingredient name")
	// ErrUnknownIngredient is returned when the grammar matches a function
	// name that was never registered in the Kitchen.
	ErrUnknownIngredient = errors.New("unknown ingredient")
)

// Kind identifies which of the three evaluable ingredient shapes an
// Ingredient implements. StringKind exists in the type lattice (the
// Python ancestor's StringIngredient) but is never dispatched:
// DispatchOrder leaves it out, and nothing else in the module evaluates a
// STRING ingredient's call, including one nested inside another
// ingredient's arguments.
type Kind int

const (
	MapKind Kind = iota
	QAKind
	JoinKind
	StringKind
)

func (k Kind) String() string {
	switch k {
	case MapKind:
		return "MAP"
	case QAKind:
		return "QA"
	case JoinKind:
		return "JOIN"
	case StringKind:
		return "STRING"
	default:
		return "UNKNOWN"
	}
}

// DispatchOrder is the fixed priority MAP, QA, JOIN that the orchestrator
// resolves ingredients in within a single subquery: MAP results can
// narrow what a QA or JOIN ingredient needs to consider, and resolving QA
// next lets its scalar answer feed a JOIN predicate, never the reverse.
var DispatchOrder = []Kind{MapKind, QAKind, JoinKind}

// Descriptor is the stable identity of an ingredient implementation, the
// namespace of the key Fingerprint computes. It replaces source-reflective
// hashing: two calls with the same Descriptor.ID and the same fingerprinted
// kwargs get the same key, and the ingredient author opts into that by
// choosing a stable ID, rather than the runtime inferring it from code
// shape. No result cache in this module consults the key.
type Descriptor struct {
	ID      string
	Kind    Kind
	Version string
}

// Ingredient is the contract every MAP/QA/JOIN/STRING implementation
// satisfies. Run receives already-materialized inputs (never raw SQL
// text) and returns a Kind-specific Result.
type Ingredient interface {
	Descriptor() Descriptor
	Run(ctx context.Context, input Input) (Result, error)
}

// Input bundles everything an Ingredient needs that the orchestrator, not
// the ingredient author, owns: the evaluated positional/keyword arguments
// parsed out of its call site and the values read from the table(s) it was
// invoked against. The orchestrator's dispatch leaves SessionID empty.
type Input struct {
	SessionID string
	Args      []Arg
	Kwargs    map[string]Arg
	// Values is the column of strings a MAP ingredient maps over, or the
	// serialized table text a QA ingredient answers questions about.
	Values []string
	// LeftValues and RightValues hold the distinct values of the left and
	// right columns a JOIN ingredient aligns.
	LeftValues  []string
	RightValues []string
}

// Arg is one evaluated argument: Raw holds the original source text and
// Value its evaluated form (see kwargs.go): the text of a string or number
// literal, a bool, the value of a named caller variable, or the
// CEL-evaluated result for expression-shaped arguments. Value is nil for
// NULL and for a `{{...}}` raw-SQL argument.
type Arg struct {
	Raw   string
	Value any
}

// Result is the Kind-specific output of Run. Exactly one of the fields
// matching the ingredient's Kind is populated; the orchestrator reads the
// one it dispatched for.
type Result struct {
	// MapColumn holds one output value per input row, same order as
	// Input.Values, for a MapKind ingredient.
	MapColumn []string
	// Scalar holds a QAKind ingredient's single answer.
	Scalar string
	// Mask holds one boolean per (left, right) pair under consideration
	// for a JoinKind ingredient, flattened row-major over
	// len(Input.LeftValues) x len(Input.RightValues).
	Mask []bool

	// Metadata, if non-nil, carries ingredient-specific details. The
	// orchestrator copies its int "prompt_tokens" and "completion_tokens"
	// entries into the Smoothie's per-ingredient record and ignores the
	// rest.
	Metadata map[string]any
}

// Fingerprint returns a stable hash of an ingredient invocation: its
// Descriptor.ID plus a canonical JSON encoding of its evaluated kwargs and
// positional args, usable as a cache key in place of the ingredient's Go
// type or source. The orchestrator does not call it and keeps no result
// cache: repeated calls to the same ingredient with the same arguments
// are each run.
func Fingerprint(desc Descriptor, args []Arg, kwargs map[string]Arg) string {
	type canonical struct {
		Args   []string          `json:"args"`
		Kwargs map[string]string `json:"kwargs"`
	}

	c := canonical{Kwargs: map[string]string{}}

	for _, a := range args {
		c.Args = append(c.Args, a.Raw)
	}

	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		c.Kwargs[k] = kwargs[k].Raw
	}

	blob, _ := json.Marshal(c)

	sum := sha256.Sum256(append([]byte(desc.ID+"\x00"), blob...))

	return hex.EncodeToString(sum[:])
}

// Kitchen is the ingredient registry a Blend call is invoked with.
// Registration is case-insensitive and rejects duplicates, mirroring the
// uniqueness check the Python Kitchen performed when decorating ingredient
// classes onto a session.
type Kitchen struct {
	byName map[string]Ingredient
}

// NewKitchen returns an empty Kitchen.
func NewKitchen() *Kitchen {
	return &Kitchen{byName: map[string]Ingredient{}}
}

// Register adds ing under its Descriptor.ID, case-insensitively. It
// returns ErrDuplicateIngredient if an ingredient is already registered
// under the same name (differing only in case).
func (k *Kitchen) Register(ing Ingredient) error {
	key := strings.ToUpper(ing.Descriptor().ID)

	if _, exists := k.byName[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateIngredient, ing.Descriptor().ID)
	}

	k.byName[key] = ing

	return nil
}

// Lookup resolves an ingredient alias (as it appears in `{{ALIAS(...)}}`)
// to its registered Ingredient.
func (k *Kitchen) Lookup(name string) (Ingredient, error) {
	ing, ok := k.byName[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIngredient, name)
	}

	return ing, nil
}

// Names returns every registered ingredient name, for diagnostics.
func (k *Kitchen) Names() []string {
	names := make([]string, 0, len(k.byName))
	for _, ing := range k.byName {
		names = append(names, ing.Descriptor().ID)
	}

	sort.Strings(names)

	return names
}
