// Package automation drives a Chrome instance through chromedp for sites
// that only work in a real browser.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	defaultSelectorTimeout = 10 * time.Second
	selectorPollInterval   = 500 * time.Millisecond
)

// CDPRunner abstracts the chromedp entry points so browser flows can be
// tested without launching Chrome.
type CDPRunner interface {
	NewExecAllocator(ctx context.Context, opts ...chromedp.ExecAllocatorOption) (context.Context, context.CancelFunc)
	NewContext(parent context.Context, opts ...chromedp.ContextOption) (context.Context, context.CancelFunc)
	Run(ctx context.Context, actions ...chromedp.Action) error
}

// DefaultCDPRunner calls chromedp directly.
type DefaultCDPRunner struct{}

func (DefaultCDPRunner) NewExecAllocator(ctx context.Context, opts ...chromedp.ExecAllocatorOption) (context.Context, context.CancelFunc) {
	return chromedp.NewExecAllocator(ctx, opts...)
}

func (DefaultCDPRunner) NewContext(parent context.Context, opts ...chromedp.ContextOption) (context.Context, context.CancelFunc) {
	return chromedp.NewContext(parent, opts...)
}

func (DefaultCDPRunner) Run(ctx context.Context, actions ...chromedp.Action) error {
	return chromedp.Run(ctx, actions...)
}

// AutomationOptions holds common configuration for browser automation
type AutomationOptions struct {
	Headless bool
}

// BuildExecAllocatorOptions returns the Chrome flags used for every session.
func BuildExecAllocatorOptions(opts AutomationOptions) []chromedp.ExecAllocatorOption {
	return []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-default-apps", true),
	}
}

// BrowserSession is one browser tab. Its context carries the chromedp
// target and ends when the parent context does.
type BrowserSession struct {
	ctx    context.Context
	runner CDPRunner
	cancel func()
}

// NewBrowser starts a browser session. Chrome itself is launched lazily on
// the first Run.
func NewBrowser(ctx context.Context, runner CDPRunner, opts AutomationOptions) *BrowserSession {
	allocCtx, cancelAlloc := runner.NewExecAllocator(ctx, BuildExecAllocatorOptions(opts)...)
	browserCtx, cancelBrowser := runner.NewContext(allocCtx)
	return &BrowserSession{
		ctx:    browserCtx,
		runner: runner,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}
}

// Close shuts the browser down.
func (s *BrowserSession) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Run executes actions in the session. ctx only bounds this call.
func (s *BrowserSession) Run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, stop := mergeCancel(s.ctx, ctx)
	defer stop()
	return s.runner.Run(runCtx, actions...)
}

// mergeCancel derives a context from session that is also cancelled with
// call.
func mergeCancel(session, call context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(session)
	if call.Err() != nil {
		cancel()
	}
	stop := context.AfterFunc(call, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// CurrentURL returns the tab's location.
func (s *BrowserSession) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := s.Run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// PageHTML navigates to url, waits for one of the selectors and returns the
// document's HTML.
func (s *BrowserSession) PageHTML(ctx context.Context, url string, selectors []string) (string, error) {
	if err := s.Run(ctx, chromedp.Navigate(url)); err != nil {
		return "", fmt.Errorf("failed to open %s: %w", url, err)
	}
	if len(selectors) > 0 {
		if _, err := s.WaitForSelector(ctx, selectors, "page content", defaultSelectorTimeout); err != nil {
			return "", err
		}
	}

	var html string
	if err := s.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page %s: %w", url, err)
	}
	return html, nil
}

// WaitForSelector waits for one of the given selectors to exist in the page.
// Selectors starting with // are XPath, everything else is CSS.
func (s *BrowserSession) WaitForSelector(ctx context.Context, selectors []string, description string, timeout time.Duration) (string, error) {
	slog.Debug("Waiting for selector", "desc", description, "selectors", strings.Join(selectors, " | "))

	return PollWithTimeout(ctx, selectorPollInterval, timeout, description, func() (string, bool, error) {
		for _, sel := range selectors {
			var exists bool
			if err := s.Run(ctx, chromedp.Evaluate(selectorScript(sel), &exists)); err == nil && exists {
				slog.Debug("Found selector", "desc", description, "selector", sel)
				return sel, true, nil
			}
		}
		return "", false, nil
	})
}

func selectorScript(sel string) string {
	if strings.HasPrefix(sel, "//") {
		return fmt.Sprintf(`!!document.evaluate(%q, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue`, sel)
	}
	return fmt.Sprintf(`!!document.querySelector(%q)`, sel)
}

// PollWithTimeout polls a condition function at regular intervals until it succeeds, times out, or context is canceled.
// The checkFunc returns (result, found, error). If found is true, polling stops and result is returned.
// If checkFunc returns an error, polling stops and the error is returned.
func PollWithTimeout[T any](ctx context.Context, interval, timeout time.Duration, description string, checkFunc func() (T, bool, error)) (T, error) {
	var zero T
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tries := 0
	for {
		result, found, err := checkFunc()
		if err != nil {
			return zero, err
		}
		if found {
			return result, nil
		}

		tries++
		if tries%5 == 0 {
			slog.Debug("Polling", "description", description, "tries", tries)
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("polling canceled for %s: %w", description, ctx.Err())
		case <-ticker.C:
			if time.Now().After(deadline) {
				return zero, fmt.Errorf("timeout waiting for %s", description)
			}
		}
	}
}

// WaitForURLChange polls getURL until it no longer contains any of the
// excluded patterns, e.g. until a login form redirects away.
func WaitForURLChange(ctx context.Context, getURL func() (string, error), excludePatterns []string, timeout time.Duration) error {
	_, err := PollWithTimeout(ctx, selectorPollInterval, timeout, "URL to change from login page",
		func() (struct{}, bool, error) {
			url, err := getURL()
			if err != nil {
				return struct{}{}, false, err
			}
			for _, pattern := range excludePatterns {
				if strings.Contains(url, pattern) {
					return struct{}{}, false, nil
				}
			}
			slog.Debug("Login successful - URL changed", "url", url)
			return struct{}{}, true, nil
		})
	return err
}
