package aihttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"answer":42}`))
	}))
	defer srv.Close()

	c := New("test", time.Second, domain.ErrLLMUnavailable)
	var out struct {
		Answer int `json:"answer"`
	}
	err := c.PostJSON(context.Background(), srv.URL, map[string]string{"Authorization": "Bearer k"}, map[string]string{"q": "x"}, &out)
	require.NoError(t, err)
	assert.Equal(t, 42, out.Answer)
}

func TestStatusErrors(t *testing.T) {
	cases := []struct {
		code      int
		auth      bool
		limited   bool
		available bool
	}{
		{http.StatusUnauthorized, true, false, true},
		{http.StatusForbidden, true, false, true},
		{http.StatusTooManyRequests, false, true, false},
		{http.StatusInternalServerError, false, false, false},
		{http.StatusBadRequest, false, false, false},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.code)
			_, _ = w.Write([]byte(strings.Repeat("e", 2000)))
		}))
		c := New("test", time.Second, domain.ErrEmbeddingUnavailable)
		err := c.Get(context.Background(), srv.URL, nil)
		srv.Close()

		require.Error(t, err, tc.code)
		assert.Equal(t, tc.auth, IsAuth(err), tc.code)
		assert.Equal(t, tc.limited, errors.Is(err, domain.ErrRateLimited), tc.code)
		assert.Equal(t, !tc.available, errors.Is(err, domain.ErrEmbeddingUnavailable), tc.code)
		assert.Less(t, len(err.Error()), 700)
	}
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New("test", time.Second, domain.ErrLLMUnavailable)
	err := c.Get(context.Background(), url, nil)
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := New("test", time.Second, domain.ErrLLMUnavailable)
	var out map[string]any
	err := c.PostJSON(context.Background(), srv.URL, nil, struct{}{}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
	assert.NotErrorIs(t, err, domain.ErrLLMUnavailable)
}
