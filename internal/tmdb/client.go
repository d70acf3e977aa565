// Package tmdb provides a client for the parts of TheMovieDB API v3 that
// deal with finding movies and rating them.
package tmdb

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lepinkainen/rats/internal/ratelimit"
	"github.com/lepinkainen/rats/internal/site"
)

const (
	defaultBaseURL       = "https://api.themoviedb.org/3"
	defaultRatePerSecond = 4 // TMDB allows ~40 requests per 10 seconds
	defaultTimeout       = 10 * time.Second

	siteName = "tmdb"
)

// Client is a TMDB API client.
type Client struct {
	apiKey    string
	sessionID string
	baseURL   string
	timeout   time.Duration
	limiter   *ratelimit.Limiter
	http      *resty.Client
}

// NewClient creates a new TMDB API client. Reading needs only apiKey;
// rating also needs a session ID (WithSession).
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		timeout: defaultTimeout,
		limiter: ratelimit.New("TMDB", defaultRatePerSecond),
	}

	for _, opt := range opts {
		opt(client)
	}

	client.http = site.NewHTTPClient(site.ClientOptions{
		BaseURL:   client.baseURL,
		UserAgent: "rats/1.0",
		Timeout:   client.timeout,
		Limiter:   client.limiter,
	})
	client.http.SetQueryParam("api_key", apiKey)
	return client
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL for the TMDB API.
func WithBaseURL(base string) Option {
	return func(client *Client) {
		if base != "" {
			client.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithSession sets the user session used for account state and ratings.
func WithSession(sessionID string) Option {
	return func(client *Client) {
		client.sessionID = sessionID
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		if d > 0 {
			client.timeout = d
		}
	}
}

// WithRateLimiter sets a custom rate limiter for the client.
func WithRateLimiter(limiter *ratelimit.Limiter) Option {
	return func(client *Client) {
		if limiter != nil {
			client.limiter = limiter
		}
	}
}

// HasSession reports whether the client can use account endpoints.
func (c *Client) HasSession() bool {
	return c.sessionID != ""
}

func (c *Client) getJSON(ctx context.Context, path string, params map[string]string, target any) (int, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(target).
		Get(path)
	return statusOf(resp), site.CheckResponse(siteName, resp, err)
}

func (c *Client) postJSON(ctx context.Context, path string, params map[string]string, body, target any) (int, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetHeader("Content-Type", "application/json;charset=utf-8").
		SetBody(body).
		SetResult(target).
		Post(path)
	return statusOf(resp), site.CheckResponse(siteName, resp, err)
}

func statusOf(resp *resty.Response) int {
	if resp == nil || resp.RawResponse == nil {
		return 0
	}
	return resp.StatusCode()
}

func isNotFound(status int) bool {
	return status == http.StatusNotFound
}
