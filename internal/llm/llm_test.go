package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"diver/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen3:8b", req.Model)
		assert.False(t, req.Stream)
		assert.Len(t, req.Messages, 2)

		_ = json.NewEncoder(w).Encode(chatResponse{Message: Message{Role: "assistant", Content: "  It is a linked list.\n"}})
	}))
	defer srv.Close()

	c := NewOllamaChat(srv.URL+"/", "qwen3:8b")
	answer, err := c.Generate(context.Background(), []Message{
		{Role: "user", Content: "hi"},
		{Role: "user", Content: "what is Node?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "It is a linked list.", answer)
}

func TestGenerate_Errors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusInternalServerError)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code := int(status.Load()); code != http.StatusOK {
			http.Error(w, "model not found", code)
			return
		}
		_ = json.NewEncoder(w).Encode(chatResponse{Message: Message{Role: "assistant", Content: "   "}})
	}))
	defer srv.Close()
	c := NewOllamaChat(srv.URL, "missing")

	_, err := c.Generate(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")

	status.Store(http.StatusOK)
	_, err = c.Generate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoOutput)
}

func TestBuildMessages(t *testing.T) {
	history := []Message{{Role: "user", Content: "earlier"}, {Role: "assistant", Content: "reply"}}
	msgs := BuildMessages("what is Node?", "File: a.cpp\nstruct Node {}", history)

	require.Len(t, msgs, 3)
	assert.Equal(t, history, msgs[:2])
	last := msgs[2]
	assert.Equal(t, "user", last.Role)
	assert.True(t, strings.HasPrefix(last.Content, "You are a coding assistant with access to project context."))
	assert.Contains(t, last.Content, "User question:\nwhat is Node?\n")
	assert.Contains(t, last.Content, "Relevant code context:\nFile: a.cpp\nstruct Node {}\n")
	assert.True(t, strings.HasSuffix(last.Content, "Answer concisely and clearly."))
	assert.Len(t, history, 2, "history is not modified")
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"qwen3:8b","size":5200000000},{"name":"nomic-embed-text:latest","size":274000000}]}`))
	}))
	defer srv.Close()

	models, err := ListModels(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "qwen3:8b", models[0].Name)

	assert.True(t, HasModel(models, "nomic-embed-text"))
	assert.True(t, HasModel(models, "QWEN3:8b"))
	assert.False(t, HasModel(models, "qwen3:14b"))
	assert.False(t, HasModel(models, "llama3"))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "4.8 GB", FormatSize(5200000000))
	assert.Equal(t, "261 MB", FormatSize(274000000))
}

func TestServer_AlreadyRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	s := NewServer(srv.URL, time.Second, logging.Discard())
	s.execCommand = func(string, ...string) *exec.Cmd {
		t.Fatal("must not spawn when a server is already up")
		return nil
	}
	require.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop())
}

func TestServer_ChildExitsBeforeReady(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	s := NewServer("http://127.0.0.1:1", 5*time.Second, logging.Discard())
	s.execCommand = func(string, ...string) *exec.Cmd { return exec.Command("true") }

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited")
	assert.NoError(t, s.Stop())
}

func TestServer_StopInterruptsChild(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	s := NewServer("http://127.0.0.1:1", 200*time.Millisecond, logging.Discard())
	s.execCommand = func(string, ...string) *exec.Cmd { return exec.Command("sleep", "30") }

	err := s.Start(context.Background())
	require.Error(t, err, "never becomes ready")

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop() }()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestGenerate_SendsOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 0.2, req.Options["temperature"])
		assert.Equal(t, float64(8192), req.Options["num_ctx"])
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "context too long"})
	}))
	defer srv.Close()

	c := NewOllamaChat(srv.URL, "m", WithTemperature(0.2), WithContextWindow(8192))
	_, err := c.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
	assert.EqualError(t, err, "ollama chat returned 400: context too long")
}
