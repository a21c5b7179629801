package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	svc, err := NewLLMService(Config{APIKey: "sk-ant", BaseURL: srv.URL})
	require.NoError(t, err)
	return svc
}

func TestNewLLMService_RequiresKey(t *testing.T) {
	_, err := NewLLMService(Config{})
	assert.True(t, errors.Is(err, domain.ErrAuthInvalid))
}

func TestGenerate_JSONPrefill(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, defaultMaxTokens, req.MaxTokens)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "assistant", req.Messages[1].Role)
		assert.Equal(t, "{", req.Messages[1].Content)

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"\"tags\": [\"agents\"]}"}],"stop_reason":"end_turn"}`))
	})

	out, err := svc.Generate(context.Background(), "tag this", driven.GenerateOptions{JSON: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tags":["agents"]}`, out)
}

func TestChat_SystemMessage(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "be brief", req.System)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, 200, req.MaxTokens)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"hel"},{"type":"text","text":"lo"}]}`))
	})

	out, err := svc.Chat(context.Background(), []driven.ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	}, driven.ChatOptions{MaxTokens: 200})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("overloaded", func(t *testing.T) {
		svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(529)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error"}}`))
		})
		_, err := svc.Generate(context.Background(), "p", driven.GenerateOptions{})
		assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	})

	t.Run("empty content", func(t *testing.T) {
		svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"content":[],"stop_reason":"max_tokens"}`))
		})
		_, err := svc.Generate(context.Background(), "p", driven.GenerateOptions{})
		assert.ErrorContains(t, err, "max_tokens")
	})
}

func TestPing(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.WriteHeader(http.StatusForbidden)
	})
	assert.ErrorIs(t, svc.Ping(context.Background()), domain.ErrAuthInvalid)
}
