package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
)

const searchBody = `{"total_count":2,"items":[
	{"name":"langchain","full_name":"langchain-ai/langchain","html_url":"https://github.com/langchain-ai/langchain",
	 "description":"Build context-aware reasoning applications","owner":{"login":"langchain-ai"},
	 "language":"Python","stargazers_count":95000,"topics":["agents","llm"],
	 "license":{"spdx_id":"MIT"},"created_at":"2022-10-17T02:58:36Z"},
	{"name":"crewAI","full_name":"crewAIInc/crewAI","html_url":"https://github.com/crewAIInc/crewAI",
	 "description":"Multi-agent framework","owner":{"login":"crewAIInc"},"license":{"spdx_id":"NOASSERTION"}}
]}`

func newTestProvider(t *testing.T, mux *http.ServeMux, token string) *Provider {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	p, err := New(domain.ProviderSettings{
		APIKey:  token,
		BaseURL: srv.URL,
		Extra:   map[string]string{"requests_per_second": "1000"},
	})
	require.NoError(t, err)
	return p
}

func TestNew(t *testing.T) {
	t.Run("implements Provider interface", func(t *testing.T) {
		p, err := New(domain.ProviderSettings{})
		require.NoError(t, err)
		var _ driven.Provider = p
		assert.Equal(t, "github", p.ID())
	})

	t.Run("rejects a bad base url", func(t *testing.T) {
		_, err := New(domain.ProviderSettings{BaseURL: "://bad"})
		assert.Error(t, err)
	})
}

func TestSearch(t *testing.T) {
	t.Run("maps repositories to hits", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/search/repositories", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "agent framework language:python", r.URL.Query().Get("q"))
			assert.Equal(t, "stars", r.URL.Query().Get("sort"))
			assert.Equal(t, "5", r.URL.Query().Get("per_page"))
			assert.Equal(t, "Bearer ghp-token", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(searchBody))
		})
		p := newTestProvider(t, mux, "ghp-token")

		hits, err := p.Search(context.Background(), "agent framework", 5,
			domain.ProviderOptions{Extra: map[string]string{"qualifiers": "language:python"}})
		require.NoError(t, err)
		require.Len(t, hits, 2)

		h := hits[0]
		assert.Equal(t, "https://github.com/langchain-ai/langchain", h.SourceURL)
		assert.Equal(t, "langchain-ai/langchain", h.Title)
		assert.Equal(t, "Build context-aware reasoning applications", h.Snippet)
		assert.Equal(t, ID, h.ProviderID)
		assert.Empty(t, h.RawContent)
		assert.Equal(t, "tool", h.Metadata[domain.HitMetaType])
		assert.Equal(t, "langchain-ai", h.Metadata[domain.HitMetaAuthors])
		assert.Equal(t, "2022-10-17", h.Metadata[domain.HitMetaPublishedDate])
		assert.Equal(t, "Python", h.Metadata["spec.language"])
		assert.Equal(t, "95000", h.Metadata["spec.stars"])
		assert.Equal(t, "MIT", h.Metadata["spec.license"])
		assert.Equal(t, "agents, llm", h.Metadata["spec.topics"])

		assert.NotContains(t, hits[1].Metadata, "spec.license")
	})

	t.Run("truncates to max results", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/search/repositories", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(searchBody))
		})
		p := newTestProvider(t, mux, "")

		hits, err := p.Search(context.Background(), "agents", 1, domain.ProviderOptions{})
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("deep search fetches readmes", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/search/repositories", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(searchBody))
		})
		mux.HandleFunc("/repos/langchain-ai/langchain/readme", func(w http.ResponseWriter, _ *http.Request) {
			encoded := base64.StdEncoding.EncodeToString([]byte("# LangChain\n\n```python\nimport langchain\n```"))
			_, _ = fmt.Fprintf(w, `{"type":"file","encoding":"base64","content":%q}`, encoded)
		})
		mux.HandleFunc("/repos/crewAIInc/crewAI/readme", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
		})
		p := newTestProvider(t, mux, "")

		hits, err := p.Search(context.Background(), "agents", 5, domain.ProviderOptions{Depth: domain.SearchDepthDeep})
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Contains(t, hits[0].RawContent, "import langchain")
		assert.Equal(t, domain.ContentFormatMarkdown, hits[0].ContentFormat)
		assert.Empty(t, hits[1].RawContent)
	})

	t.Run("zero max results makes no call", func(t *testing.T) {
		p := newTestProvider(t, http.NewServeMux(), "")
		hits, err := p.Search(context.Background(), "agents", 0, domain.ProviderOptions{})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestSearch_Errors(t *testing.T) {
	t.Run("unauthorized maps to auth", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/search/repositories", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
		})
		p := newTestProvider(t, mux, "bad")

		_, err := p.Search(context.Background(), "agents", 5, domain.ProviderOptions{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrAuthInvalid))

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "Bad credentials", apiErr.Message)
	})

	t.Run("exhausted quota maps to rate limit", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/search/repositories", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set(HeaderRateRemaining, "0")
			w.Header().Set(HeaderRateLimit, "30")
			w.Header().Set(HeaderRateReset, strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10))
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"API rate limit exceeded"}`))
		})
		p := newTestProvider(t, mux, "")

		_, err := p.Search(context.Background(), "agents", 5, domain.ProviderOptions{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrRateLimited))
	})

	t.Run("cancelled context maps to timeout", func(t *testing.T) {
		p := newTestProvider(t, http.NewServeMux(), "")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := p.Search(ctx, "agents", 5, domain.ProviderOptions{})
		pe, ok := domain.IsProviderError(err)
		require.True(t, ok)
		assert.Equal(t, domain.ProviderErrorTimeout, pe.Kind)
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("creates rate limiter with defaults", func(t *testing.T) {
		rl := NewRateLimiter(0)

		require.NotNil(t, rl)
		assert.Equal(t, SearchRateLimit, rl.Limit())
		assert.Equal(t, SearchRateLimit, rl.Remaining())
	})

	t.Run("updates from response headers", func(t *testing.T) {
		rl := NewRateLimiter(0)
		reset := time.Now().Add(time.Hour).Unix()

		rl.UpdateFromResponse(&http.Response{
			Header: http.Header{
				"X-Ratelimit-Remaining": []string{"12"},
				"X-Ratelimit-Limit":     []string{"30"},
				"X-Ratelimit-Reset":     []string{strconv.FormatInt(reset, 10)},
			},
		})

		assert.Equal(t, 12, rl.Remaining())
		assert.Equal(t, 30, rl.Limit())
		assert.Equal(t, reset, rl.ResetTime().Unix())
	})

	t.Run("check reports 429 with retry-after", func(t *testing.T) {
		rl := NewRateLimiter(0)
		err := rl.CheckRateLimit(&http.Response{
			StatusCode: http.StatusTooManyRequests,
			Header:     http.Header{"Retry-After": []string{"30"}},
		})

		var rle *RateLimitError
		require.True(t, errors.As(err, &rle))
		assert.WithinDuration(t, time.Now().Add(30*time.Second), rle.ResetAt, 5*time.Second)
	})

	t.Run("check ignores 403 with quota left", func(t *testing.T) {
		rl := NewRateLimiter(0)
		assert.NoError(t, rl.CheckRateLimit(&http.Response{StatusCode: http.StatusForbidden, Header: http.Header{}}))
	})

	t.Run("wait respects context cancellation", func(t *testing.T) {
		rl := NewRateLimiter(0)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.Error(t, rl.Wait(ctx))
	})
}
