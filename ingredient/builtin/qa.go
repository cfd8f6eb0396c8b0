package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZhaoFuheng/blendsql/ingredient"
	"github.com/ZhaoFuheng/blendsql/llmmodel"
)

// LLMQA answers a single natural-language question against a serialized
// table (or an empty context, for questions with no tabular grounding),
// optionally restricted to a fixed set of options. It is the end-to-end
// fallback builtin: when no MAP/JOIN rewrite can answer a question with
// valid SQL alone, a whole subquery's materialized result is handed to
// LLMQA as context.
type LLMQA struct {
	Model llmmodel.Model
}

func NewLLMQA(model llmmodel.Model) *LLMQA {
	return &LLMQA{Model: model}
}

func (q *LLMQA) Descriptor() ingredient.Descriptor {
	return ingredient.Descriptor{ID: "LLMQA", Kind: ingredient.QAKind, Version: "1"}
}

func (q *LLMQA) Run(ctx context.Context, in ingredient.Input) (ingredient.Result, error) {
	question := argString(in, 0, "question")
	options := argString(in, 1, "options")

	prompt := buildQAPrompt(question, in.Values, options)

	completion, err := q.Model.Complete(ctx, prompt)
	if err != nil {
		return ingredient.Result{}, fmt.Errorf("LLMQA: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(completion.Text))

	if options != "" {
		answer = constrainToOptions(answer, strings.Split(options, ","))
	}

	return ingredient.Result{
		Scalar: answer,
		Metadata: map[string]any{
			"prompt_tokens":     completion.Usage.PromptTokens,
			"completion_tokens": completion.Usage.CompletionTokens,
		},
	}, nil
}

func buildQAPrompt(question string, contextRows []string, options string) string {
	var b strings.Builder

	b.WriteString("Answer the question for the table. ")
	b.WriteString("Keep the answer as short as possible, without leading context. ")
	b.WriteString("For example, do not say 'The answer is 2', simply say '2'.\n")

	if options != "" {
		fmt.Fprintf(&b, "Your answer should be a selection from: %s\n", options)
	}

	fmt.Fprintf(&b, "\nQuestion: %s", question)
	fmt.Fprintf(&b, "\n\nContext:\n%s", strings.Join(contextRows, "\n"))

	return b.String()
}

// constrainToOptions aligns a model's free-text answer back onto one of
// the allowed options, falling back to the raw answer unchanged if no
// option matches even loosely — mirroring the original title-case/
// first-word alignment the Python builtin performs to tolerate a model
// answering "Frank" when the option is "Frank Smith".
func constrainToOptions(answer string, options []string) string {
	for _, opt := range options {
		opt = strings.TrimSpace(opt)
		if strings.EqualFold(opt, answer) {
			return strings.ToLower(opt)
		}
	}

	firstWord := strings.Fields(answer)
	if len(firstWord) == 0 {
		return answer
	}

	for _, opt := range options {
		opt = strings.TrimSpace(opt)
		if strings.HasPrefix(strings.ToLower(opt), firstWord[0]) {
			return strings.ToLower(opt)
		}
	}

	return answer
}
