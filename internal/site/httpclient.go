package site

import (
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lepinkainen/rats/internal/ratelimit"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// ClientOptions configures NewHTTPClient.
type ClientOptions struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Limiter   *ratelimit.Limiter
}

// NewHTTPClient returns a resty client that waits on the limiter before
// every request. Retries are left to the caller.
func NewHTTPClient(opts ClientOptions) *resty.Client {
	client := resty.New()
	if opts.BaseURL != "" {
		client.SetBaseURL(opts.BaseURL)
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client.SetHeader("User-Agent", userAgent)
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	client.SetRetryCount(0)

	limiter := opts.Limiter
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if limiter.Allow() {
			return nil
		}
		slog.Debug("Throttling request", "limiter", limiter.Name(), "url", req.URL)
		return limiter.Wait(req.Context())
	})
	return client
}

// CheckResponse turns a resty result into the error taxonomy: transport
// failures through TransportError, non-2xx responses through StatusError.
func CheckResponse(siteName string, resp *resty.Response, err error) error {
	if err != nil {
		return TransportError(siteName, err)
	}
	if resp.IsError() {
		return StatusError(siteName, resp.StatusCode(), resp.Header().Get("Retry-After"), resp.Body())
	}
	return nil
}
