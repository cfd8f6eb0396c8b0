package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZhaoFuheng/blendsql/ingredient"
	"github.com/ZhaoFuheng/blendsql/llmmodel"
)

const nanAnswer = "-"

// LLMJoin semantically aligns rows between two value columns that don't
// match exactly (e.g. "bob brown" on the left, "bob brown (ice hockey)"
// on the right), asking the model for a one-shot alignment rather than
// issuing one call per pair. It is the Go counterpart of the Python
// JoinIngredient builtin, which used a single structured-generation call
// constrained to choose each left value's match from the right values;
// here the same one-call-per-join shape is kept, with the model asked to
// respond in a fixed "left -> right" line format instead of a
// grammar-constrained generation, since the Go stack has no equivalent of
// guidance's token-level choice constraints.
type LLMJoin struct {
	Model llmmodel.Model
}

func NewLLMJoin(model llmmodel.Model) *LLMJoin {
	return &LLMJoin{Model: model}
}

func (j *LLMJoin) Descriptor() ingredient.Descriptor {
	return ingredient.Descriptor{ID: "LLMJoin", Kind: ingredient.JoinKind, Version: "1"}
}

func (j *LLMJoin) Run(ctx context.Context, in ingredient.Input) (ingredient.Result, error) {
	question := argString(in, 0, "question")
	if question == "" {
		question = "Join to same topics."
	}

	prompt := buildJoinPrompt(question, in.LeftValues, in.RightValues)

	completion, err := j.Model.Complete(ctx, prompt)
	if err != nil {
		return ingredient.Result{}, fmt.Errorf("LLMJoin: %w", err)
	}

	mapping := parseJoinMapping(completion.Text)

	mask := make([]bool, len(in.LeftValues)*len(in.RightValues))

	for li, lv := range in.LeftValues {
		match, ok := mapping[lv]
		if !ok || match == nanAnswer {
			continue
		}

		for ri, rv := range in.RightValues {
			if strings.EqualFold(rv, match) {
				mask[li*len(in.RightValues)+ri] = true
			}
		}
	}

	return ingredient.Result{
		Mask: mask,
		Metadata: map[string]any{
			"prompt_tokens":     completion.Usage.PromptTokens,
			"completion_tokens": completion.Usage.CompletionTokens,
		},
	}, nil
}

func buildJoinPrompt(criteria string, left, right []string) string {
	var b strings.Builder

	b.WriteString("You are a database expert performing a modified LEFT JOIN based on a semantic criteria.\n")
	b.WriteString("Respond with one line per left value, in the form `left value -> right value`. ")
	b.WriteString("If a left value has no match, respond `left value -> -`.\n\n")
	fmt.Fprintf(&b, "Criteria: %s\n\n", criteria)
	fmt.Fprintf(&b, "Left Values:\n%s\n\n", strings.Join(left, "\n"))
	fmt.Fprintf(&b, "Right Values:\n%s\n\nOutput:\n", strings.Join(right, "\n"))

	return b.String()
}

func parseJoinMapping(text string) map[string]string {
	mapping := map[string]string{}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, "->", 2)
		if len(parts) != 2 {
			continue
		}

		mapping[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}

	return mapping
}
