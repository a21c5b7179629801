package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// Client wraps the go-github client with rate limiting and error mapping.
type Client struct {
	gh          *gh.Client
	rateLimiter *RateLimiter
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// Token authenticates requests. Empty means anonymous access.
	Token string

	// BaseURL overrides the API endpoint, e.g. for GitHub Enterprise.
	BaseURL string

	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration

	// RequestsPerSecond overrides the proactive throttle.
	RequestsPerSecond float64
}

// NewClient creates a GitHub client. A token is sent through a static
// oauth2 token source; works for both PAT and OAuth access tokens.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var hc *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		hc = oauth2.NewClient(ctx, ts)
		hc.Timeout = timeout
	} else {
		hc = &http.Client{Timeout: timeout}
	}

	client := gh.NewClient(hc)
	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		client.BaseURL = base
	}

	return &Client{
		gh:          client,
		rateLimiter: NewRateLimiter(cfg.RequestsPerSecond),
	}, nil
}

// SearchRepositories returns up to perPage repositories matching query,
// most starred first.
func (c *Client) SearchRepositories(ctx context.Context, query string, perPage int) ([]*gh.Repository, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, c.wrapError(err, "rate limit wait")
	}

	opts := &gh.SearchOptions{
		Sort:        "stars",
		Order:       "desc",
		ListOptions: gh.ListOptions{PerPage: perPage},
	}
	result, resp, err := c.gh.Search.Repositories(ctx, query, opts)
	if err != nil {
		return nil, c.wrapError(err, "search repositories")
	}
	c.updateRateLimitFromResponse(resp)

	if result == nil {
		return nil, nil
	}
	return result.Repositories, nil
}

// Readme fetches and decodes the README of owner/repo.
func (c *Client) Readme(ctx context.Context, owner, repo string) (string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", c.wrapError(err, "rate limit wait")
	}

	content, resp, err := c.gh.Repositories.GetReadme(ctx, owner, repo, nil)
	if err != nil {
		return "", c.wrapError(err, "get readme")
	}
	c.updateRateLimitFromResponse(resp)

	if content == nil {
		return "", nil
	}
	decoded, err := content.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode readme: %w", err)
	}
	return decoded, nil
}

// RateLimiter returns the rate limiter for external access.
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// updateRateLimitFromResponse updates the rate limiter from GitHub response headers.
func (c *Client) updateRateLimitFromResponse(resp *gh.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	c.rateLimiter.UpdateFromResponse(resp.Response)
}
