// Package aihttp is the JSON transport shared by the LLM and embedding
// adapters. It maps HTTP failures onto the domain sentinels so callers can
// tell a bad key from a busy backend.
package aihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

// maxErrorBody caps how much of an error response is kept in messages.
const maxErrorBody = 512

// Client posts JSON to one AI backend.
type Client struct {
	name        string
	http        *http.Client
	unavailable error
}

// New creates a client. name prefixes error messages; unavailable is the
// sentinel wrapped into every failure that is not an auth error.
func New(name string, timeout time.Duration, unavailable error) *Client {
	return &Client{
		name:        name,
		http:        &http.Client{Timeout: timeout},
		unavailable: unavailable,
	}
}

// PostJSON sends in as JSON and decodes a 2xx response into out.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.name, err)
	}
	return c.do(ctx, http.MethodPost, url, headers, bytes.NewReader(body), out)
}

// Get sends a GET and discards a 2xx response body.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) error {
	return c.do(ctx, http.MethodGet, url, headers, http.NoBody, nil)
}

func (c *Client) do(ctx context.Context, method, url string, headers map[string]string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.name, err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", c.name, c.unavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: %w: read response: %w", c.name, c.unavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.StatusError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return nil
}

// StatusError classifies a non-2xx response.
func (c *Client) StatusError(code int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w (status %d): %s", c.name, domain.ErrAuthInvalid, code, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w: %w (status %d): %s", c.name, c.unavailable, domain.ErrRateLimited, code, msg)
	default:
		return fmt.Errorf("%s: %w (status %d): %s", c.name, c.unavailable, code, msg)
	}
}

// Name returns the backend name used in errors.
func (c *Client) Name() string {
	return c.name
}

// IsAuth reports whether err came from a rejected credential.
func IsAuth(err error) bool {
	return errors.Is(err, domain.ErrAuthInvalid)
}
