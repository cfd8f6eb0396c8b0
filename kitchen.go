package blendsql

import (
	"github.com/ZhaoFuheng/blendsql/ingredient"
	"github.com/ZhaoFuheng/blendsql/ingredient/builtin"
	"github.com/ZhaoFuheng/blendsql/llmmodel"
)

// Kitchen is the ingredient registry passed to Blend. It is an alias for
// ingredient.Kitchen rather than a second type: the registry has no
// root-package-specific behavior, so re-exporting the name here just
// saves callers an extra import for the common case.
type Kitchen = ingredient.Kitchen

// NewKitchen returns an empty Kitchen.
func NewKitchen() *Kitchen { return ingredient.NewKitchen() }

// NewDefaultKitchen returns a Kitchen pre-registered with the stock
// LLMMap, LLMQA, and LLMJoin ingredients backed by model.
func NewDefaultKitchen(model llmmodel.Model) *Kitchen {
	k := ingredient.NewKitchen()

	_ = k.Register(builtin.NewLLMMap(model))
	_ = k.Register(builtin.NewLLMQA(model))
	_ = k.Register(builtin.NewLLMJoin(model))

	return k
}
