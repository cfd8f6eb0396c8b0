// Package llmmodel defines the Model interface builtin ingredients call
// through to produce language-model completions, plus a couple of small
// implementations. The model a Blend call uses is opaque to the
// orchestrator by design — it never inspects prompts or token usage
// except through the Usage values a Model reports back for the Smoothie.
package llmmodel

import "context"

// Usage reports the token accounting for one completion, folded into the
// Smoothie's aggregate totals.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Completion is one model response: the generated text plus its usage.
type Completion struct {
	Text  string
	Usage Usage
}

// Model is the interface every LLM-backed ingredient calls through.
// Implementations wrap a specific provider (local model, hosted API); the
// orchestrator and ingredients never depend on which.
type Model interface {
	// Complete generates a single completion for prompt.
	Complete(ctx context.Context, prompt string) (Completion, error)
	// Name identifies the model for Smoothie metadata and logging.
	Name() string
}

// Blender batches Complete calls across many prompts that share a system
// instruction, for ingredients (MAP) that need one completion per input
// row rather than one for the whole call. Implementations may simply loop
// over Model.Complete, or may exploit provider-side batching.
type Blender interface {
	Model
	CompleteBatch(ctx context.Context, prompts []string) ([]Completion, error)
}

// batchingModel adapts any Model into a Blender by looping sequentially,
// used when a provider has no native batch endpoint.
type batchingModel struct {
	Model
}

// AsBlender wraps m so it satisfies Blender, looping over prompts
// sequentially if m doesn't already implement Blender natively.
func AsBlender(m Model) Blender {
	if b, ok := m.(Blender); ok {
		return b
	}

	return batchingModel{Model: m}
}

func (b batchingModel) CompleteBatch(ctx context.Context, prompts []string) ([]Completion, error) {
	out := make([]Completion, len(prompts))

	for i, p := range prompts {
		c, err := b.Complete(ctx, p)
		if err != nil {
			return nil, err
		}

		out[i] = c
	}

	return out, nil
}
