// Package trakt reads and writes movie ratings through the Trakt API v2.
package trakt

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lepinkainen/rats/internal/config"
	ratserrors "github.com/lepinkainen/rats/internal/errors"
	"github.com/lepinkainen/rats/internal/ratelimit"
	"github.com/lepinkainen/rats/internal/rating"
	"github.com/lepinkainen/rats/internal/site"
)

const (
	// Name is the registry name of the driver.
	Name = "trakt"

	apiVersion = "2"
	pageSize   = 100
)

type client struct {
	cfg  config.TraktConfig
	http *resty.Client
}

func newClient(cfg config.TraktConfig, timeout time.Duration) *client {
	http := site.NewHTTPClient(site.ClientOptions{
		BaseURL:   cfg.BaseURL,
		UserAgent: "rats/1.0",
		Timeout:   timeout,
		Limiter:   ratelimit.New(Name, cfg.RatePerSecond),
	})
	http.SetHeader("Content-Type", "application/json").
		SetHeader("trakt-api-version", apiVersion).
		SetHeader("trakt-api-key", cfg.ClientID)
	if cfg.AccessToken != "" {
		http.SetAuthToken(cfg.AccessToken)
	}
	return &client{cfg: cfg, http: http}
}

func (c *client) get(ctx context.Context, path string, query url.Values, out any) (*resty.Response, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		SetResult(out).
		Get(path)
	if err := site.CheckResponse(Name, resp, err); err != nil {
		return resp, err
	}
	return resp, nil
}

// Source lists the ratings of a Trakt user.
type Source struct {
	*client
}

// NewSource returns a source for cfg.Username.
func NewSource(cfg config.TraktConfig, timeout time.Duration) (*Source, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("trakt.client_id is required")
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("trakt.username is required")
	}
	return &Source{client: newClient(cfg, timeout)}, nil
}

func (s *Source) Name() string        { return Name }
func (s *Source) Scale() rating.Scale { return rating.TenPoint }

// ListPage fetches one page of the user's movie ratings, newest first.
func (s *Source) ListPage(ctx context.Context, page int) ([]site.RawEntry, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page+1))
	query.Set("limit", strconv.Itoa(pageSize))

	var rated []ratedMovie
	resp, err := s.get(ctx, "/users/"+url.PathEscape(s.cfg.Username)+"/ratings/movies", query, &rated)
	if err != nil {
		return nil, err
	}

	// Trakt repeats the last page when asked past the end
	if count, err := strconv.Atoi(resp.Header().Get("X-Pagination-Page-Count")); err == nil && page+1 > count {
		return nil, nil
	}

	entries := make([]site.RawEntry, 0, len(rated))
	for _, r := range rated {
		if r.Type != "" && r.Type != "movie" {
			continue
		}
		entries = append(entries, toEntry(r))
	}
	return entries, nil
}

func toEntry(r ratedMovie) site.RawEntry {
	entry := site.RawEntry{
		SourceID: strconv.Itoa(r.Movie.IDs.Trakt),
		Title:    r.Movie.Title,
		Year:     r.Movie.Year,
		Rating:   float64(r.Rating),
	}
	if r.Movie.IDs.Trakt == 0 {
		entry.SourceID = ""
	}
	if !r.RatedAt.IsZero() {
		ratedAt := r.RatedAt
		entry.RatedAt = &ratedAt
	}

	external := map[string]string{}
	if r.Movie.IDs.IMDb != "" {
		external["imdb"] = r.Movie.IDs.IMDb
	}
	if r.Movie.IDs.TMDB != 0 {
		external["tmdb"] = strconv.Itoa(r.Movie.IDs.TMDB)
	}
	if len(external) > 0 {
		entry.ExternalIDs = external
	}
	return entry
}

// Destination rates movies on the authenticated Trakt account.
type Destination struct {
	*client
	existing map[int]int // trakt id -> rating
}

// NewDestination returns a destination for the account owning cfg.AccessToken.
func NewDestination(cfg config.TraktConfig, timeout time.Duration) (*Destination, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("trakt.client_id is required")
	}
	return &Destination{client: newClient(cfg, timeout)}, nil
}

func (d *Destination) Name() string { return Name }

// Authenticate verifies the access token and loads the account's existing
// movie ratings.
func (d *Destination) Authenticate(ctx context.Context) error {
	if d.cfg.AccessToken == "" {
		return ratserrors.NewFatalError("trakt: trakt.access_token is required to submit ratings", nil)
	}

	var rated []ratedMovie
	if _, err := d.get(ctx, "/sync/ratings/movies", nil, &rated); err != nil {
		return err
	}
	d.existing = make(map[int]int, len(rated))
	for _, r := range rated {
		d.existing[r.Movie.IDs.Trakt] = r.Rating
	}
	slog.Debug("Loaded existing ratings", "destination", Name, "count", len(d.existing))
	return nil
}

// Search looks movies up by title. A known year widens to a range of one
// year on either side.
func (d *Destination) Search(ctx context.Context, title string, year int) ([]site.RawCandidate, error) {
	query := url.Values{}
	query.Set("query", title)
	query.Set("fields", "title,aliases")
	if year > 0 {
		query.Set("years", fmt.Sprintf("%d-%d", year-1, year+1))
	}

	var results []searchResult
	if _, err := d.get(ctx, "/search/movie", query, &results); err != nil {
		return nil, err
	}
	return toCandidates(results), nil
}

// ResolveIDs looks a movie up by its IMDb or TMDB identifier.
func (d *Destination) ResolveIDs(ctx context.Context, ids map[string]string) (*site.RawCandidate, error) {
	for _, kind := range []string{"imdb", "tmdb"} {
		id := strings.TrimSpace(ids[kind])
		if id == "" {
			continue
		}
		query := url.Values{}
		query.Set("type", "movie")

		var results []searchResult
		if _, err := d.get(ctx, "/search/"+kind+"/"+url.PathEscape(id), query, &results); err != nil {
			return nil, err
		}
		if candidates := toCandidates(results); len(candidates) > 0 {
			return &candidates[0], nil
		}
	}
	return nil, nil
}

func toCandidates(results []searchResult) []site.RawCandidate {
	candidates := make([]site.RawCandidate, 0, len(results))
	for _, r := range results {
		if r.Movie == nil || r.Movie.IDs.Trakt == 0 {
			continue
		}
		candidates = append(candidates, site.RawCandidate{
			TargetID: strconv.Itoa(r.Movie.IDs.Trakt),
			Title:    r.Movie.Title,
			Year:     r.Movie.Year,
		})
	}
	return candidates
}

// Submit rates the movie with Trakt id targetID. An equal or higher
// existing rating is reported as a conflict.
func (d *Destination) Submit(ctx context.Context, targetID string, value int) error {
	id, err := strconv.Atoi(targetID)
	if err != nil {
		return ratserrors.NewFatalError(fmt.Sprintf("trakt: invalid movie id %q", targetID), err)
	}
	if existing, ok := d.existing[id]; ok && existing >= value {
		return ratserrors.NewConflictError(targetID, float64(existing))
	}

	item := ratingItem{Rating: value}
	item.IDs.Trakt = id

	var result syncRatingsResponse
	resp, err := d.http.R().
		SetContext(ctx).
		SetBody(syncRatingsRequest{Movies: []ratingItem{item}}).
		SetResult(&result).
		Post("/sync/ratings")
	if err := site.CheckResponse(Name, resp, err); err != nil {
		return err
	}
	if len(result.NotFound.Movies) > 0 || result.Added.Movies == 0 {
		return ratserrors.NewFatalError(fmt.Sprintf("trakt: movie %s was not rated", targetID), nil)
	}

	if d.existing == nil {
		d.existing = make(map[int]int)
	}
	d.existing[id] = value
	return nil
}
