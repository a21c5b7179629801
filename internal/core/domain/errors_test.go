package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderError_Error(t *testing.T) {
	err := &ProviderError{ProviderID: "tavily", Kind: ProviderErrorAuth, StatusCode: 401, Cause: errors.New("bad key")}
	assert.Equal(t, "provider tavily: auth (status 401): bad key", err.Error())

	err = NewProviderError("github", ProviderErrorNetwork, errors.New("dial"))
	assert.Equal(t, "provider github: network: dial", err.Error())
}

func TestProviderError_IsSentinels(t *testing.T) {
	rl := NewProviderError("tavily", ProviderErrorRateLimit, errors.New("429"))
	assert.True(t, errors.Is(rl, ErrRateLimited))
	assert.False(t, errors.Is(rl, ErrAuthInvalid))

	auth := NewProviderError("tavily", ProviderErrorAuth, errors.New("401"))
	assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", auth), ErrAuthInvalid))
}

func TestAsProviderError(t *testing.T) {
	t.Run("keeps existing provider error", func(t *testing.T) {
		orig := NewProviderError("", ProviderErrorMalformed, errors.New("bad json"))
		pe := AsProviderError("arxiv", fmt.Errorf("search: %w", orig))
		assert.Same(t, orig, pe)
		assert.Equal(t, "arxiv", pe.ProviderID)
	})

	t.Run("classifies deadline as timeout", func(t *testing.T) {
		pe := AsProviderError("github", context.DeadlineExceeded)
		assert.Equal(t, ProviderErrorTimeout, pe.Kind)
		assert.ErrorIs(t, pe, context.DeadlineExceeded)
	})

	t.Run("classifies unknown errors", func(t *testing.T) {
		pe := AsProviderError("github", errors.New("boom"))
		assert.Equal(t, ProviderErrorUnknown, pe.Kind)
	})
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "source_url", Value: "ht!tp://", Reason: "unparseable"}
	assert.Equal(t, `invalid source_url "ht!tp://": unparseable`, err.Error())
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.True(t, IsValidationError(fmt.Errorf("normalise: %w", err)))
}

func TestExtractionError(t *testing.T) {
	cause := errors.New("llm down")
	err := &ExtractionError{Reason: "generate", Cause: cause}
	assert.Equal(t, "extraction failed: generate: llm down", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsExtractionError(err))
	assert.Equal(t, "extraction failed: empty response", (&ExtractionError{Reason: "empty response"}).Error())
}

func TestStoreError(t *testing.T) {
	err := &StoreError{ItemID: "abc", Op: "upsert", Cause: ErrNotFound}
	assert.Equal(t, "store upsert abc: not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunTimeoutError(t *testing.T) {
	err := &RunTimeoutError{Stage: RunStatusQuerying, Timeout: 2 * time.Second}
	assert.Equal(t, "run timed out after 2s during querying", err.Error())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	pe, ok := IsProviderError(AsProviderError("tavily", err))
	require.True(t, ok)
	assert.Equal(t, ProviderErrorTimeout, pe.Kind)
}
