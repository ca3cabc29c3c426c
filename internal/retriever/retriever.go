// Package retriever answers free-text queries by embedding similarity.
package retriever

import (
	"context"
	"fmt"

	"diver/internal/embedder"
	"diver/internal/store"
)

// Retriever embeds a query and asks the store for its nearest chunks.
type Retriever struct {
	store    store.VectorStore
	embedder embedder.Embedder
}

// New creates a Retriever. emb must be the embedder the index was built with.
func New(st store.VectorStore, emb embedder.Embedder) *Retriever {
	return &Retriever{store: st, embedder: emb}
}

// Retrieve returns up to k hits, nearest first, in store order. An empty
// store yields no hits and no error. Embedder and store failures are
// returned as is.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]store.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := store.CheckModel(ctx, r.store, r.embedder.Model()); err != nil {
		return nil, err
	}

	n, err := r.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	vec, err := embedder.EmbedSingle(ctx, r.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := r.store.Query(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hits, nil
}
