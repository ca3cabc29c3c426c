package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OllamaChat generates answers with a model served by Ollama.
type OllamaChat struct {
	baseURL string
	model   string
	params  map[string]any
	http    *http.Client
}

// ChatOption customises an OllamaChat.
type ChatOption func(*OllamaChat)

// WithTemperature sets the sampling temperature sent with every request.
func WithTemperature(t float64) ChatOption {
	return func(c *OllamaChat) { c.params["temperature"] = t }
}

// WithContextWindow sets num_ctx, the model's context length in tokens.
func WithContextWindow(tokens int) ChatOption {
	return func(c *OllamaChat) { c.params["num_ctx"] = tokens }
}

// NewOllamaChat creates a chat client for model at baseURL.
func NewOllamaChat(baseURL, model string, opts ...ChatOption) *OllamaChat {
	c := &OllamaChat{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		params:  map[string]any{},
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the chat model name.
func (c *OllamaChat) Model() string { return c.model }

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message    Message `json:"message"`
	DoneReason string  `json:"done_reason,omitempty"`
}

// Generate sends the conversation and returns the assistant's reply with
// surrounding whitespace removed. A blank reply is ErrNoOutput.
func (c *OllamaChat) Generate(ctx context.Context, messages []Message) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Options:  c.params,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama chat returned %d: %s", resp.StatusCode, errorMessage(resp.Body))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if answer := strings.TrimSpace(out.Message.Content); answer != "" {
		return answer, nil
	}
	return "", ErrNoOutput
}

// errorMessage extracts the "error" field Ollama sends on failure, or the
// raw body when it is not JSON.
func errorMessage(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 4<<10))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(raw))
}
