// Package llm wraps the external chat-completion collaborator. The engine
// only ever sends prompts and reads back text; generation quality is the
// model's problem, the quality gate judges the result.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Message represents one chat message in the OpenAI wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single completion call.
type Options struct {
	Temperature float64
}

// Client is the interface the engine consumes. Implemented by HTTPClient;
// tests substitute fakes.
type Client interface {
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
	ModelName() string
}

// HTTPClient talks to an OpenAI-compatible /v1/chat/completions endpoint.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// New creates a client for the given endpoint, API key and model.
func New(baseURL, apiKey, model string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 0,
		},
	}
}

// ModelName returns the configured model identifier, recorded on outputs.
func (c *HTTPClient) ModelName() string {
	return c.model
}

// chatRequest is the JSON body for POST /v1/chat/completions.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	Stream      bool      `json:"stream"`
}

// chatResponse is the JSON returned by POST /v1/chat/completions.
type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Chat sends messages and returns the assistant's text, trimmed.
func (c *HTTPClient) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: opts.Temperature,
		Stream:      false,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if result.Error != nil {
			return "", fmt.Errorf("chat: %s (status %d)", result.Error.Message, resp.StatusCode)
		}
		return "", fmt.Errorf("chat: unexpected status %d", resp.StatusCode)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat: empty choices array")
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
