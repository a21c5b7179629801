package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/providers/httpclient"
)

// RateLimitError reports an exhausted search quota.
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
	Limit     int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// APIError represents a GitHub API error response.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// IsNotFound checks if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// wrapError converts go-github errors into classified provider errors.
func (c *Client) wrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var rateLimitErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateLimitErr) || errors.As(err, &abuseErr) {
		return &domain.ProviderError{
			ProviderID: ID,
			Kind:       domain.ProviderErrorRateLimit,
			StatusCode: http.StatusForbidden,
			Cause: &RateLimitError{
				ResetAt:   c.rateLimiter.ResetTime(),
				Remaining: c.rateLimiter.Remaining(),
				Limit:     c.rateLimiter.Limit(),
			},
		}
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		apiErr := &APIError{StatusCode: ghErr.Response.StatusCode, Message: ghErr.Message}
		if ghErr.Response.Request != nil {
			apiErr.URL = ghErr.Response.Request.URL.String()
		}
		kind := httpclient.ClassifyStatus(apiErr.StatusCode)
		if rle := c.rateLimiter.CheckRateLimit(ghErr.Response); rle != nil {
			kind = domain.ProviderErrorRateLimit
		}
		return &domain.ProviderError{ProviderID: ID, Kind: kind, StatusCode: apiErr.StatusCode, Cause: apiErr}
	}

	wrapped := fmt.Errorf("%s: %w", operation, err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewProviderError(ID, domain.ProviderErrorTimeout, wrapped)
	}
	return domain.NewProviderError(ID, domain.ProviderErrorNetwork, wrapped)
}
