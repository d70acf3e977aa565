// Package letterboxd reads a member's film ratings from Letterboxd through
// a browser session.
package letterboxd

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/lepinkainen/rats/internal/automation"
	"github.com/lepinkainen/rats/internal/config"
	ratserrors "github.com/lepinkainen/rats/internal/errors"
	"github.com/lepinkainen/rats/internal/rating"
	"github.com/lepinkainen/rats/internal/site"
)

// Name is the registry name of the driver.
const Name = "letterboxd"

// PageFetcher returns the HTML of url once one of selectors is present.
// *automation.BrowserSession implements it.
type PageFetcher interface {
	PageHTML(ctx context.Context, url string, selectors []string) (string, error)
}

// Option configures a Source.
type Option func(*Source)

// WithFetcher replaces the browser with another page fetcher.
func WithFetcher(f PageFetcher) Option {
	return func(s *Source) { s.fetcher = f }
}

// WithRunner sets the chromedp runner used to start the browser.
func WithRunner(r automation.CDPRunner) Option {
	return func(s *Source) { s.runner = r }
}

// Source lists the ratings grid at /{user}/films/ratings/.
type Source struct {
	cfg     config.LetterboxdConfig
	runner  automation.CDPRunner
	fetcher PageFetcher
	session *automation.BrowserSession
}

// NewSource returns a source for cfg.Username.
func NewSource(cfg config.LetterboxdConfig, opts ...Option) (*Source, error) {
	if cfg.Username == "" {
		return nil, fmt.Errorf("letterboxd.username is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	s := &Source{cfg: cfg, runner: automation.DefaultCDPRunner{}}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Source) Name() string        { return Name }
func (s *Source) Scale() rating.Scale { return rating.FiveStar }

// Authenticate starts the browser and signs in when a password is set.
// The browser lives until Close or until ctx ends.
func (s *Source) Authenticate(ctx context.Context) error {
	if s.fetcher != nil {
		return nil
	}

	session := automation.NewBrowser(ctx, s.runner, automation.AutomationOptions{Headless: s.cfg.Headless})
	if s.cfg.Password != "" {
		if err := login(ctx, session, s.cfg.BaseURL, s.cfg.Username, s.cfg.Password); err != nil {
			session.Close()
			return ratserrors.NewFatalError("letterboxd: sign in failed", err)
		}
	}
	s.session = session
	s.fetcher = session
	return nil
}

// Close shuts down the browser, if one was started.
func (s *Source) Close() error {
	if s.session != nil {
		s.session.Close()
		s.session = nil
		s.fetcher = nil
	}
	return nil
}

func (s *Source) pageURL(page int) string {
	return fmt.Sprintf("%s/%s/films/ratings/page/%d/", s.cfg.BaseURL, url.PathEscape(s.cfg.Username), page+1)
}

// ListPage loads and parses one ratings grid page.
func (s *Source) ListPage(ctx context.Context, page int) ([]site.RawEntry, error) {
	if s.fetcher == nil {
		return nil, ratserrors.NewFatalError("letterboxd: browser not started", nil)
	}

	pageURL := s.pageURL(page)
	slog.Debug("Loading ratings page", "source", Name, "page", page, "url", pageURL)
	html, err := s.fetcher.PageHTML(ctx, pageURL, pageSelectors)
	if err != nil {
		if ratserrors.IsFatal(err) || ratserrors.IsTransient(err) {
			return nil, err
		}
		return nil, ratserrors.NewTransientError("letterboxd: failed to load "+pageURL, err)
	}
	return parseRatingsPage(strings.NewReader(html))
}
