package embedder

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

const defaultEmbedTimeout = 2 * time.Minute

// StatusError is a non-200 answer from Ollama.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama embed returned %d: %s", e.Code, e.Message)
}

// OllamaEmbedder embeds text with a model served by Ollama.
type OllamaEmbedder struct {
	endpoint  string
	model     string
	keepAlive string
	http      *http.Client
}

// OllamaOption customises an OllamaEmbedder.
type OllamaOption func(*OllamaEmbedder)

// WithKeepAlive asks Ollama to keep the model loaded for d after each call.
func WithKeepAlive(d time.Duration) OllamaOption {
	return func(e *OllamaEmbedder) { e.keepAlive = d.String() }
}

// NewOllamaEmbedder creates an embedder for model at baseURL.
func NewOllamaEmbedder(baseURL, model string, opts ...OllamaOption) *OllamaEmbedder {
	e := &OllamaEmbedder{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/embed",
		model:    model,
		http:     &http.Client{Timeout: defaultEmbedTimeout},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the configured model name.
func (e *OllamaEmbedder) Model() string { return e.model }

type embedRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	Truncate  bool     `json:"truncate"`
	KeepAlive string   `json:"keep_alive,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed sends texts in a single request. Inputs longer than the model's
// context are truncated by Ollama rather than rejected.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out embedResponse
	err := e.post(ctx, embedRequest{Model: e.model, Input: texts, Truncate: true, KeepAlive: e.keepAlive}, &out)
	if err != nil {
		return nil, err
	}

	vecs := out.Embeddings
	switch {
	case len(vecs) == 0:
		return nil, ErrEmptyResponse
	case len(vecs) != len(texts):
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vecs))
	}
	for i, v := range vecs[1:] {
		if len(v) != len(vecs[0]) {
			return nil, fmt.Errorf("embedding %d has %d dimensions, first has %d", i+1, len(v), len(vecs[0]))
		}
	}
	return vecs, nil
}

func (e *OllamaEmbedder) post(ctx context.Context, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode embed response: %w", err)
	}
	return nil
}

// statusError reads Ollama's {"error": "..."} body, falling back to raw text.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}
