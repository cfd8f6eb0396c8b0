package llmmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// OpenAICompatible is a Model backed by any OpenAI chat-completions-shaped
// HTTP endpoint (OpenAI itself, or a self-hosted server exposing the same
// contract). It uses net/http directly rather than an SDK: the wire
// format is one small JSON request/response pair, and pulling in a full
// provider SDK for it would be the kind of dependency the teacher's own
// codebase avoids for equally narrow HTTP integrations.
type OpenAICompatible struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

// NewOpenAICompatible returns an OpenAICompatible model pointed at
// baseURL (e.g. "https://api.openai.com/v1") using modelName for
// completions.
func NewOpenAICompatible(baseURL, apiKey, modelName string) *OpenAICompatible {
	return &OpenAICompatible{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   modelName,
		Client:  http.DefaultClient,
	}
}

func (m *OpenAICompatible) Name() string { return m.Model }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete issues a single chat-completion request for prompt, with
// temperature fixed at 0 so ingredient results are deterministic across
// repeated calls within one Blend invocation.
func (m *OpenAICompatible) Complete(ctx context.Context, prompt string) (Completion, error) {
	reqBody := chatRequest{
		Model:       m.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return Completion{}, fmt.Errorf("encoding completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("building completion request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if m.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.APIKey)
	}

	resp, err := m.Client.Do(req)
	if err != nil {
		return Completion{}, fmt.Errorf("calling %s: %w", m.Model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return Completion{}, fmt.Errorf("%s returned status %d: %s", m.Model, resp.StatusCode, payload)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Completion{}, fmt.Errorf("decoding completion response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return Completion{}, fmt.Errorf("%s returned no choices", m.Model)
	}

	return Completion{
		Text: parsed.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
		},
	}, nil
}
