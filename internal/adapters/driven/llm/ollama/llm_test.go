package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen2.5", req.Model)
		assert.False(t, req.Stream)
		assert.Equal(t, "json", req.Format)
		require.NotNil(t, req.Options)
		assert.Equal(t, 300, req.Options.NumPredict)
		_, _ = w.Write([]byte(`{"response":"{\"tags\":[]}","done":true}`))
	}))
	defer srv.Close()

	svc := NewLLMService(LLMConfig{BaseURL: srv.URL, Model: "qwen2.5"})
	out, err := svc.Generate(context.Background(), "tag", driven.GenerateOptions{MaxTokens: 300, JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"tags":[]}`, out)
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Messages, 1)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"pong"},"done":true}`))
	}))
	defer srv.Close()

	svc := NewLLMService(LLMConfig{BaseURL: srv.URL})
	assert.Equal(t, DefaultLLMModel, svc.ModelName())
	out, err := svc.Chat(context.Background(), []driven.ChatMessage{{Role: "user", Content: "ping"}}, driven.ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "pong", out)
}

func TestUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	svc := NewLLMService(LLMConfig{BaseURL: srv.URL})
	_, err := svc.Generate(context.Background(), "p", driven.GenerateOptions{})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	assert.ErrorContains(t, err, "model not found")
	assert.Error(t, svc.Ping(context.Background()))
}
