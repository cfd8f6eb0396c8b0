package llmmodel

import (
	"context"
	"strings"
)

// Static is a deterministic Model that answers from a fixed lookup table
// whose keys are matched as substrings of the prompt, falling back to a
// default response. It
// exists for tests and for local development against ingredients without
// a live model endpoint, mirroring the role the original implementation's
// local transformers-backed model plays in its test suite: a
// network-free stand-in with predictable output.
type Static struct {
	Responses map[string]string
	Default   string
}

// NewStatic returns a Static model answering only from responses, falling
// back to def for any unrecognized prompt.
func NewStatic(responses map[string]string, def string) *Static {
	return &Static{Responses: responses, Default: def}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Complete(ctx context.Context, prompt string) (Completion, error) {
	for key, resp := range s.Responses {
		if strings.Contains(prompt, key) {
			return Completion{Text: resp, Usage: Usage{PromptTokens: len(strings.Fields(prompt))}}, nil
		}
	}

	return Completion{Text: s.Default, Usage: Usage{PromptTokens: len(strings.Fields(prompt))}}, nil
}
