// Package httpclient is the shared JSON-over-HTTP transport for search providers.
//
// Every request waits on a per-provider token bucket, and every failure
// comes back as a *domain.ProviderError classified by status code.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRate is the default request rate per second.
	DefaultRate = 2.0

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 512

	// maxBody bounds a successful response body.
	maxBody = 16 << 20
)

// Config configures a Client.
type Config struct {
	// Timeout bounds each HTTP request. Zero means DefaultTimeout.
	Timeout time.Duration

	// RequestsPerSecond is the proactive throttle. Zero means DefaultRate.
	RequestsPerSecond float64

	// Burst is the token bucket size. Zero means 1.
	Burst int

	// HTTPClient overrides the underlying client, mainly for tests.
	HTTPClient *http.Client

	// UserAgent is sent with every request when set.
	UserAgent string
}

// Client performs rate-limited HTTP calls on behalf of one provider.
type Client struct {
	providerID string
	http       *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// New creates a client for providerID.
func New(providerID string, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		providerID: providerID,
		http:       hc,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		userAgent:  cfg.UserAgent,
	}
}

// ProviderID returns the provider this client works for.
func (c *Client) ProviderID() string {
	return c.providerID
}

// PostJSON sends body as JSON and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.NewProviderError(c.providerID, domain.ProviderErrorUnknown, fmt.Errorf("encode request: %w", err))
	}
	h := map[string]string{"Content-Type": "application/json", "Accept": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	data, err := c.Do(ctx, http.MethodPost, url, h, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	return c.decode(data, out)
}

// GetJSON fetches url and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	h := map[string]string{"Accept": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	data, err := c.Do(ctx, http.MethodGet, url, h, nil)
	if err != nil {
		return err
	}
	return c.decode(data, out)
}

// Do performs one request and returns the response body.
// Non-2xx responses are returned as classified ProviderErrors.
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, body io.Reader) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.transportError(fmt.Errorf("rate limit wait: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, domain.NewProviderError(c.providerID, domain.ProviderErrorUnknown, fmt.Errorf("build request: %w", err))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, StatusError(c.providerID, resp.StatusCode, string(bytes.TrimSpace(snippet)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, c.transportError(fmt.Errorf("read body: %w", err))
	}
	return data, nil
}

func (c *Client) decode(data []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return domain.NewProviderError(c.providerID, domain.ProviderErrorMalformed, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// transportError classifies a failure that happened before a status code arrived.
func (c *Client) transportError(err error) error {
	kind := domain.ProviderErrorNetwork
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = domain.ProviderErrorTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = domain.ProviderErrorTimeout
	}
	return domain.NewProviderError(c.providerID, kind, err)
}

// ClassifyStatus maps an HTTP status code to a provider failure kind.
func ClassifyStatus(code int) domain.ProviderErrorKind {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return domain.ProviderErrorAuth
	case code == http.StatusTooManyRequests:
		return domain.ProviderErrorRateLimit
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return domain.ProviderErrorTimeout
	case code >= 500 && code <= 599:
		return domain.ProviderErrorNetwork
	default:
		return domain.ProviderErrorUnknown
	}
}

// StatusError builds the ProviderError for a non-2xx response.
func StatusError(providerID string, code int, body string) *domain.ProviderError {
	msg := http.StatusText(code)
	if body != "" {
		msg = body
	}
	return &domain.ProviderError{
		ProviderID: providerID,
		Kind:       ClassifyStatus(code),
		StatusCode: code,
		Cause:      errors.New(msg),
	}
}
