// Package embedder turns text into vectors.
//
// Index-time and query-time embeddings must come from the same model, so
// every implementation reports the model it uses and callers record it
// alongside the index.
package embedder

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the backend answers without vectors.
var ErrEmptyResponse = errors.New("embedder returned no vectors")

// Embedder produces fixed-length vectors for text.
type Embedder interface {
	// Embed returns one vector per input, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Model identifies the embedding model and version.
	Model() string
}

// EmbedSingle embeds one text with e.
func EmbedSingle(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, ErrEmptyResponse
	}
	return vecs[0], nil
}
