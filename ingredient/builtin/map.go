// Package builtin provides the three stock LLM-backed ingredients every
// Kitchen registers by default: LLMMap, LLMQA, and LLMJoin. Each wraps an
// llmmodel.Model behind the ingredient.Ingredient contract; the prompt
// construction in each is grounded on the corresponding Python ingredient
// it replaces, adapted from guidance/outlines templating to plain string
// building since Go has no equivalent structured-generation library in
// the reference stack.
package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZhaoFuheng/blendsql/ingredient"
	"github.com/ZhaoFuheng/blendsql/llmmodel"
)

// LLMMap generates one output value per input row by asking the model a
// per-row question, batching all rows from a column into one Blender
// call. It is the Go counterpart of the Python MapIngredient builtin: a
// column-wise "apply a natural-language function to every cell" operator.
type LLMMap struct {
	Model llmmodel.Blender
}

func NewLLMMap(model llmmodel.Model) *LLMMap {
	return &LLMMap{Model: llmmodel.AsBlender(model)}
}

func (m *LLMMap) Descriptor() ingredient.Descriptor {
	return ingredient.Descriptor{ID: "LLMMap", Kind: ingredient.MapKind, Version: "1"}
}

func (m *LLMMap) Run(ctx context.Context, in ingredient.Input) (ingredient.Result, error) {
	question := argString(in, 0, "question")

	options := argString(in, 1, "options")

	examples := argStringSlice(in, "example_outputs")

	prompts := make([]string, len(in.Values))
	for i, v := range in.Values {
		prompts[i] = buildMapPrompt(question, v, options, examples)
	}

	completions, err := m.Model.CompleteBatch(ctx, prompts)
	if err != nil {
		return ingredient.Result{}, fmt.Errorf("LLMMap: %w", err)
	}

	out := make([]string, len(completions))

	promptTokens, completionTokens := 0, 0

	for i, c := range completions {
		out[i] = strings.TrimSpace(c.Text)
		promptTokens += c.Usage.PromptTokens
		completionTokens += c.Usage.CompletionTokens
	}

	return ingredient.Result{
		MapColumn: out,
		Metadata: map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"num_values_passed": len(in.Values),
		},
	}, nil
}

func buildMapPrompt(question, value, options string, examples []string) string {
	var b strings.Builder

	b.WriteString("Given the value below, answer the question. ")
	b.WriteString("Keep the answer as short as possible, without leading context.\n")

	if options != "" {
		b.WriteString("Your answer must be one of: ")
		b.WriteString(options)
		b.WriteString("\n")
	}

	if len(examples) > 0 {
		b.WriteString("Rows satisfying the query's other conditions look like: ")
		b.WriteString(strings.Join(examples, "; "))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nQuestion: %s", question)
	fmt.Fprintf(&b, "\n\nValue: %s", value)

	return b.String()
}

func argString(in ingredient.Input, pos int, key string) string {
	if key != "" {
		if a, ok := in.Kwargs[key]; ok {
			if s, ok := a.Value.(string); ok {
				return s
			}

			return a.Raw
		}
	}

	if pos < len(in.Args) {
		if s, ok := in.Args[pos].Value.(string); ok {
			return s
		}

		return in.Args[pos].Raw
	}

	return ""
}

// argStringSlice reads a []string-valued kwarg such as example_outputs,
// falling back to nil when it's absent or holds some other shape.
func argStringSlice(in ingredient.Input, key string) []string {
	a, ok := in.Kwargs[key]
	if !ok {
		return nil
	}

	ss, ok := a.Value.([]string)
	if !ok {
		return nil
	}

	return ss
}
