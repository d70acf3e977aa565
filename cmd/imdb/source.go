package imdb

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lepinkainen/rats/internal/config"
	"github.com/lepinkainen/rats/internal/ratelimit"
	"github.com/lepinkainen/rats/internal/rating"
	"github.com/lepinkainen/rats/internal/site"
)

// Name is the registry name of the driver.
const Name = "imdb"

var userIDPattern = regexp.MustCompile(`^ur\d+$`)

// Source reads a user's public (or cookie-authorized) ratings list.
type Source struct {
	userID string
	http   *resty.Client
}

// NewSource returns a source for cfg.UserID.
func NewSource(cfg config.IMDbConfig, timeout time.Duration) (*Source, error) {
	if !userIDPattern.MatchString(cfg.UserID) {
		return nil, fmt.Errorf("imdb.user_id must look like ur12345678, got %q", cfg.UserID)
	}
	http := site.NewHTTPClient(site.ClientOptions{
		BaseURL: cfg.BaseURL,
		Timeout: timeout,
		Limiter: ratelimit.New(Name, cfg.RatePerSecond),
	})
	http.SetHeader("Accept-Language", "en-US,en;q=0.8")
	if cfg.Cookie != "" {
		http.SetHeader("Cookie", cfg.Cookie)
	}
	return &Source{userID: cfg.UserID, http: http}, nil
}

func (s *Source) Name() string        { return Name }
func (s *Source) Scale() rating.Scale { return rating.TenPoint }

// ListPage fetches and parses one ratings page.
func (s *Source) ListPage(ctx context.Context, page int) ([]site.RawEntry, error) {
	resp, err := s.http.R().
		SetContext(ctx).
		Get(ratingsPath(s.userID, page))
	if err := site.CheckResponse(Name, resp, err); err != nil {
		return nil, err
	}
	return parseRatingsPage(bytes.NewReader(resp.Body()))
}
