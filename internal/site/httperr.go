package site

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	ratserrors "github.com/lepinkainen/rats/internal/errors"
)

// StatusError classifies a non-2xx HTTP response from a site.
// 408, 425, 429 and 5xx are transient; everything else is fatal.
func StatusError(siteName string, status int, retryAfter string, body []byte) error {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	msg := fmt.Sprintf("%s: unexpected status %d", siteName, status)
	if snippet != "" {
		msg = fmt.Sprintf("%s: %s", msg, snippet)
	}

	switch {
	case status == http.StatusTooManyRequests:
		return ratserrors.NewRateLimitError(msg, ParseRetryAfter(retryAfter))
	case status == http.StatusRequestTimeout, status == http.StatusTooEarly, status >= 500:
		return ratserrors.NewTransientError(msg, nil)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ratserrors.NewFatalError(msg+" (check credentials)", nil)
	default:
		return ratserrors.NewFatalError(msg, nil)
	}
}

// TransportError classifies an error from the HTTP client itself.
// Timeouts and connection failures are transient.
func TransportError(siteName string, err error) error {
	if err == nil {
		return nil
	}
	if ratserrors.IsTransient(err) || ratserrors.IsFatal(err) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ratserrors.NewTransientError(siteName+": request timed out", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ratserrors.NewTransientError(siteName+": request failed", err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ratserrors.NewTransientError(siteName+": network error", err)
	}
	return ratserrors.NewFatalError(siteName+": request failed", err)
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func ParseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
