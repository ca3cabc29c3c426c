package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOllamaStub(t *testing.T, handler func(req embedRequest) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req embedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		status, body := handler(req)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// lengthVectors maps each text to a 2-d vector derived from its length.
func lengthVectors(req embedRequest) (int, any) {
	out := make([][]float32, len(req.Input))
	for i, s := range req.Input {
		out[i] = []float32{float32(len(s)), float32(i)}
	}
	return http.StatusOK, embedResponse{Embeddings: out}
}

func TestOllamaEmbedder_PreservesOrder(t *testing.T) {
	var gotModel string
	srv := newOllamaStub(t, func(req embedRequest) (int, any) {
		gotModel = req.Model
		return lengthVectors(req)
	})

	e := NewOllamaEmbedder(srv.URL+"/", "nomic-embed-text")
	vecs, err := e.Embed(context.Background(), []string{"a", "bbb", "cc"})
	require.NoError(t, err)

	assert.Equal(t, "nomic-embed-text", gotModel)
	assert.Equal(t, [][]float32{{1, 0}, {3, 1}, {2, 2}}, vecs)
}

func TestOllamaEmbedder_EmptyInputSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	srv := newOllamaStub(t, func(req embedRequest) (int, any) {
		calls.Add(1)
		return lengthVectors(req)
	})

	vecs, err := NewOllamaEmbedder(srv.URL, "m").Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
	assert.Zero(t, calls.Load())
}

func TestOllamaEmbedder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler func(embedRequest) (int, any)
		wantErr string
	}{
		{
			name:    "http error",
			handler: func(embedRequest) (int, any) { return http.StatusNotFound, map[string]string{"error": "model not found"} },
			wantErr: "404",
		},
		{
			name:    "count mismatch",
			handler: func(embedRequest) (int, any) { return http.StatusOK, embedResponse{Embeddings: [][]float32{{1}}} },
			wantErr: "expected 2 embeddings",
		},
		{
			name:    "no vectors",
			handler: func(embedRequest) (int, any) { return http.StatusOK, embedResponse{} },
			wantErr: ErrEmptyResponse.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newOllamaStub(t, tt.handler)
			_, err := NewOllamaEmbedder(srv.URL, "m").Embed(context.Background(), []string{"x", "y"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOllamaEmbedder_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := EmbedSingle(context.Background(), NewOllamaEmbedder(url, "m"), "hello")
	assert.Error(t, err)
}

type countingEmbedder struct {
	calls  atomic.Int32
	inputs [][]string
	err    error
}

func (c *countingEmbedder) Model() string { return "counting" }

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	c.inputs = append(c.inputs, append([]string(nil), texts...))
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, s := range texts {
		out[i] = []float32{float32(len(s))}
	}
	return out, nil
}

func TestCachedEmbedder_OnlyEmbedsMisses(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 10)

	first, err := c.Embed(context.Background(), []string{"aa", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2}, {1}}, first)

	second, err := c.Embed(context.Background(), []string{"b", "cccc", "aa"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {4}, {2}}, second)

	require.Len(t, inner.inputs, 2)
	assert.Equal(t, []string{"cccc"}, inner.inputs[1])
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, "counting", c.Model())
}

func TestCachedEmbedder_FullHitSkipsInner(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 0)

	_, err := EmbedSingle(context.Background(), c, "query")
	require.NoError(t, err)
	_, err = EmbedSingle(context.Background(), c, "query")
	require.NoError(t, err)

	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedEmbedder_PropagatesErrors(t *testing.T) {
	boom := errors.New("ollama down")
	c := NewCachedEmbedder(&countingEmbedder{err: boom}, 4)

	_, err := c.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())
}

func TestOllamaEmbedder_RequestOptions(t *testing.T) {
	var got embedRequest
	srv := newOllamaStub(t, func(req embedRequest) (int, any) {
		got = req
		return lengthVectors(req)
	})

	_, err := NewOllamaEmbedder(srv.URL, "m", WithKeepAlive(5*time.Minute)).Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.True(t, got.Truncate)
	assert.Equal(t, "5m0s", got.KeepAlive)
}

func TestOllamaEmbedder_StatusError(t *testing.T) {
	srv := newOllamaStub(t, func(embedRequest) (int, any) {
		return http.StatusNotFound, map[string]string{"error": `model "m" not found`}
	})

	_, err := NewOllamaEmbedder(srv.URL, "m").Embed(context.Background(), []string{"x"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, `model "m" not found`, se.Message)
}

func TestOllamaEmbedder_RaggedVectors(t *testing.T) {
	srv := newOllamaStub(t, func(embedRequest) (int, any) {
		return http.StatusOK, embedResponse{Embeddings: [][]float32{{1, 2}, {3}}}
	})

	_, err := NewOllamaEmbedder(srv.URL, "m").Embed(context.Background(), []string{"x", "y"})
	assert.ErrorContains(t, err, "embedding 1 has 1 dimensions")
}
