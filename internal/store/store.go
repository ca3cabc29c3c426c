package store

import (
	"context"
	"errors"
	"fmt"
)

// Meta keys recorded next to the index.
const (
	MetaEmbeddingModel = "embedding_model"
	MetaDimensions     = "dimensions"
)

// ErrModelMismatch means the index was built with a different embedding
// model than the one now used for queries. Distances across models are
// meaningless, so callers must re-index instead of searching.
var ErrModelMismatch = errors.New("embedding model does not match the index")

// ErrDimensionMismatch is returned when a vector has the wrong length.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// Entry is one chunk as stored: id, embedding, text and source path.
type Entry struct {
	ID     string
	Source string
	Seq    int
	Text   string
	Vector []float32
}

// Hit is a stored chunk returned by a nearest-neighbour query.
type Hit struct {
	ID       string
	Source   string
	Text     string
	Distance float64
}

// SourceInfo summarises one indexed file.
type SourceInfo struct {
	Source string
	Chunks int
}

// VectorStore persists embedded chunks and answers k-nearest queries.
// Implementations support sequential reuse; concurrent writers are not
// supported and are excluded by Lock.
type VectorStore interface {
	// Upsert inserts entries, replacing any with the same ID.
	Upsert(ctx context.Context, entries []Entry) error
	// Query returns up to k hits, nearest first.
	Query(ctx context.Context, vector []float32, k int) ([]Hit, error)
	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)
	// Sources lists indexed files with their chunk counts, sorted by path.
	Sources(ctx context.Context) ([]SourceInfo, error)
	// GetMeta returns a metadata value, or "" if unset.
	GetMeta(ctx context.Context, key string) (string, error)
	// SetMeta stores a metadata value.
	SetMeta(ctx context.Context, key, value string) error
	// Reset removes every entry and the recorded embedding model.
	Reset(ctx context.Context) error
	// Close releases the store.
	Close() error
}

// CheckModel fails with ErrModelMismatch when the index records an
// embedding model other than model. An index with no recorded model passes.
func CheckModel(ctx context.Context, st VectorStore, model string) error {
	recorded, err := st.GetMeta(ctx, MetaEmbeddingModel)
	if err != nil {
		return fmt.Errorf("read index metadata: %w", err)
	}
	if recorded != "" && recorded != model {
		return fmt.Errorf("%w: index built with %q, querying with %q", ErrModelMismatch, recorded, model)
	}
	return nil
}
