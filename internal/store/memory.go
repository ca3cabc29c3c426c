package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// errClosed is returned by a MemoryStore after Close.
var errClosed = errors.New("store is closed")

// MemoryStore is a process-lifetime collection held in an HNSW graph.
// Nothing is persisted; the index is rebuilt on every start.
type MemoryStore struct {
	mu      sync.RWMutex
	dims    int
	graph   *hnsw.Graph[uint64]
	nextKey uint64
	keys    map[string]uint64 // entry ID → graph key
	entries map[uint64]Entry  // graph key → entry, vector omitted
	// orphans counts graph nodes whose entry was overwritten. coder/hnsw
	// misbehaves when deleting nodes, so replaced nodes stay in the graph
	// and are filtered out of results.
	orphans int
	meta    map[string]string
	closed  bool
}

var _ VectorStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store for vectors of dims length.
func NewMemoryStore(dims int) *MemoryStore {
	s := &MemoryStore{dims: dims, meta: make(map[string]string)}
	s.reset()
	return s
}

func (s *MemoryStore) reset() {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.EuclideanDistance
	s.graph = g
	s.nextKey = 0
	s.keys = make(map[string]uint64)
	s.entries = make(map[uint64]Entry)
	s.orphans = 0
}

func (s *MemoryStore) Upsert(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	for _, e := range entries {
		if len(e.Vector) != s.dims {
			return ErrDimensionMismatch{Expected: s.dims, Got: len(e.Vector)}
		}
	}

	for _, e := range entries {
		if old, ok := s.keys[e.ID]; ok {
			delete(s.entries, old)
			s.orphans++
		}
		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)
		s.graph.Add(hnsw.MakeNode(key, vec))

		stored := e
		stored.Vector = nil
		s.keys[e.ID] = key
		s.entries[key] = stored
	}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, vector []float32, k int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	if k <= 0 || len(s.entries) == 0 {
		return nil, nil
	}
	if len(vector) != s.dims {
		return nil, ErrDimensionMismatch{Expected: s.dims, Got: len(vector)}
	}

	nodes := s.graph.Search(vector, k+s.orphans)
	hits := make([]Hit, 0, min(k, len(nodes)))
	for _, n := range nodes {
		e, ok := s.entries[n.Key]
		if !ok {
			continue
		}
		hits = append(hits, Hit{
			ID:       e.ID,
			Source:   e.Source,
			Text:     e.Text,
			Distance: float64(s.graph.Distance(vector, n.Value)),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *MemoryStore) Sources(context.Context) ([]SourceInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, e := range s.entries {
		counts[e.Source]++
	}
	out := make([]SourceInfo, 0, len(counts))
	for src, n := range counts {
		out = append(out, SourceInfo{Source: src, Chunks: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}

func (s *MemoryStore) GetMeta(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta[key], nil
}

func (s *MemoryStore) SetMeta(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[key] = value
	return nil
}

func (s *MemoryStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	delete(s.meta, MetaEmbeddingModel)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
