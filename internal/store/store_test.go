package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 3

type backend struct {
	name string
	open func(t *testing.T) VectorStore
}

func backends() []backend {
	return []backend{
		{"sqlite", func(t *testing.T) VectorStore {
			st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "index.db"), testDims)
			require.NoError(t, err)
			t.Cleanup(func() { st.Close() })
			return st
		}},
		{"memory", func(t *testing.T) VectorStore {
			st := NewMemoryStore(testDims)
			t.Cleanup(func() { st.Close() })
			return st
		}},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, st VectorStore)) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) { fn(t, b.open(t)) })
	}
}

func sampleEntries() []Entry {
	return []Entry{
		{ID: "a:1", Source: "src/a.py", Seq: 0, Text: "def a(): pass", Vector: []float32{1, 0, 0}},
		{ID: "b:1", Source: "src/b.cpp", Seq: 0, Text: "struct B {};", Vector: []float32{0, 1, 0}},
		{ID: "b:2", Source: "src/b.cpp", Seq: 1, Text: "int main() {}", Vector: []float32{0, 0, 1}},
	}
}

func TestStore_QueryNearestFirst(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st VectorStore) {
		ctx := context.Background()
		require.NoError(t, st.Upsert(ctx, sampleEntries()))

		hits, err := st.Query(ctx, []float32{0.9, 0.1, 0}, 2)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "a:1", hits[0].ID)
		assert.Equal(t, "src/a.py", hits[0].Source)
		assert.Equal(t, "def a(): pass", hits[0].Text)
		assert.Equal(t, "b:1", hits[1].ID)
		assert.LessOrEqual(t, hits[0].Distance, hits[1].Distance)
	})
}

func TestStore_EmptyQuery(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st VectorStore) {
		hits, err := st.Query(context.Background(), []float32{1, 0, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestStore_UpsertLastWriteWins(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st VectorStore) {
		ctx := context.Background()
		require.NoError(t, st.Upsert(ctx, sampleEntries()))
		require.NoError(t, st.Upsert(ctx, []Entry{
			{ID: "a:1", Source: "src/a.py", Text: "def a(): return 2", Vector: []float32{0, 0, 1}},
		}))

		n, err := st.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		hits, err := st.Query(ctx, []float32{1, 0, 0}, 3)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		for _, h := range hits {
			if h.ID == "a:1" {
				assert.Equal(t, "def a(): return 2", h.Text)
			}
		}
	})
}

func TestStore_Sources(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st VectorStore) {
		ctx := context.Background()
		require.NoError(t, st.Upsert(ctx, sampleEntries()))

		sources, err := st.Sources(ctx)
		require.NoError(t, err)
		assert.Equal(t, []SourceInfo{
			{Source: "src/a.py", Chunks: 1},
			{Source: "src/b.cpp", Chunks: 2},
		}, sources)
	})
}

func TestStore_MetaAndReset(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st VectorStore) {
		ctx := context.Background()
		require.NoError(t, st.Upsert(ctx, sampleEntries()))
		require.NoError(t, st.SetMeta(ctx, MetaEmbeddingModel, "nomic-embed-text"))

		v, err := st.GetMeta(ctx, MetaEmbeddingModel)
		require.NoError(t, err)
		assert.Equal(t, "nomic-embed-text", v)

		missing, err := st.GetMeta(ctx, "nope")
		require.NoError(t, err)
		assert.Empty(t, missing)

		require.NoError(t, st.Reset(ctx))

		n, err := st.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		v, err = st.GetMeta(ctx, MetaEmbeddingModel)
		require.NoError(t, err)
		assert.Empty(t, v)

		// Usable again after reset.
		require.NoError(t, st.Upsert(ctx, sampleEntries()[:1]))
		hits, err := st.Query(ctx, []float32{1, 0, 0}, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
	})
}

func TestStore_DimensionMismatch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st VectorStore) {
		ctx := context.Background()
		err := st.Upsert(ctx, []Entry{{ID: "x", Source: "x.py", Vector: []float32{1, 2}}})
		var dimErr ErrDimensionMismatch
		require.True(t, errors.As(err, &dimErr))
		assert.Equal(t, testDims, dimErr.Expected)
		assert.Equal(t, 2, dimErr.Got)

		require.NoError(t, st.Upsert(ctx, sampleEntries()))
		_, err = st.Query(ctx, []float32{1}, 1)
		assert.True(t, errors.As(err, &dimErr))
	})
}

func TestCheckModel(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(testDims)

	require.NoError(t, CheckModel(ctx, st, "any"), "unrecorded model passes")

	require.NoError(t, st.SetMeta(ctx, MetaEmbeddingModel, "nomic-embed-text"))
	assert.NoError(t, CheckModel(ctx, st, "nomic-embed-text"))
	assert.ErrorIs(t, CheckModel(ctx, st, "bge-m3"), ErrModelMismatch)
}

func TestSQLiteStore_ReopenKeepsEntriesAndDimensions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	st, err := OpenSQLite(ctx, path, testDims)
	require.NoError(t, err)
	require.NoError(t, st.Upsert(ctx, sampleEntries()))
	require.NoError(t, st.Close())

	// Opening with a different configured width keeps the recorded one.
	reopened, err := OpenSQLite(ctx, path, 8)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, testDims, reopened.Dimensions())

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Reset switches to the configured width.
	require.NoError(t, reopened.Reset(ctx))
	assert.Equal(t, 8, reopened.Dimensions())
	require.NoError(t, reopened.Upsert(ctx, []Entry{{ID: "w", Source: "w.py", Vector: make([]float32, 8)}}))
}

func TestMemoryStore_ClosedRejectsWrites(t *testing.T) {
	st := NewMemoryStore(testDims)
	require.NoError(t, st.Close())
	assert.Error(t, st.Upsert(context.Background(), sampleEntries()))
}

func TestLock_SingleWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "index.db")

	first := NewLock(path)
	require.NoError(t, first.TryLock())
	defer first.Unlock()

	second := NewLock(path)
	assert.ErrorIs(t, second.TryLock(), ErrLocked)

	require.NoError(t, first.Unlock())
	require.NoError(t, second.TryLock())
	require.NoError(t, second.Unlock())
}

func TestLock_NoPathIsNoop(t *testing.T) {
	l := NewLock("")
	assert.NoError(t, l.TryLock())
	assert.NoError(t, l.Unlock())
	assert.Empty(t, l.Path())
}
