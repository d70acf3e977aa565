// Package tmdb rates movies on TheMovieDB through its v3 account API.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lepinkainen/rats/internal/config"
	ratserrors "github.com/lepinkainen/rats/internal/errors"
	"github.com/lepinkainen/rats/internal/ratelimit"
	"github.com/lepinkainen/rats/internal/rating"
	"github.com/lepinkainen/rats/internal/site"
	"github.com/lepinkainen/rats/internal/tmdb"
)

// Name is the registry name of the driver.
const Name = "tmdb"

// Destination rates movies for the user owning the configured session.
type Destination struct {
	client *tmdb.Client
}

// NewDestination returns a TMDB destination. Search works with just an API
// key; submitting needs tmdb.session_id as well.
func NewDestination(cfg config.TMDBConfig, timeout time.Duration) (*Destination, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("tmdb.api_key is required")
	}
	client := tmdb.NewClient(cfg.APIKey,
		tmdb.WithBaseURL(cfg.BaseURL),
		tmdb.WithSession(cfg.SessionID),
		tmdb.WithTimeout(timeout),
		tmdb.WithRateLimiter(ratelimit.New(Name, cfg.RatePerSecond)),
	)
	return &Destination{client: client}, nil
}

func (d *Destination) Name() string { return Name }

// Authenticate only checks that a session is configured; TMDB rejects a
// stale session on the first account request.
func (d *Destination) Authenticate(context.Context) error {
	if !d.client.HasSession() {
		return ratserrors.NewFatalError("tmdb: tmdb.session_id is required to submit ratings", nil)
	}
	return nil
}

// Search looks movies up by title, using the year as a hint.
func (d *Destination) Search(ctx context.Context, title string, year int) ([]site.RawCandidate, error) {
	movies, err := d.client.SearchMovies(ctx, title, year)
	if err != nil {
		return nil, err
	}
	candidates := make([]site.RawCandidate, 0, len(movies))
	for _, m := range movies {
		candidates = append(candidates, toCandidate(m))
	}
	return candidates, nil
}

// ResolveIDs uses a TMDB id directly and falls back to the IMDb id.
func (d *Destination) ResolveIDs(ctx context.Context, ids map[string]string) (*site.RawCandidate, error) {
	if id, err := strconv.Atoi(strings.TrimSpace(ids["tmdb"])); err == nil && id > 0 {
		movie, err := d.client.GetMovie(ctx, id)
		if err != nil {
			return nil, err
		}
		if movie != nil {
			c := toCandidate(*movie)
			return &c, nil
		}
	}

	movie, err := d.client.FindByIMDBID(ctx, strings.TrimSpace(ids["imdb"]))
	if err != nil || movie == nil {
		return nil, err
	}
	c := toCandidate(*movie)
	return &c, nil
}

// Submit rates the movie with TMDB id targetID. An equal or higher
// existing rating is reported as a conflict.
func (d *Destination) Submit(ctx context.Context, targetID string, value int) error {
	id, err := strconv.Atoi(targetID)
	if err != nil {
		return ratserrors.NewFatalError(fmt.Sprintf("tmdb: invalid movie id %q", targetID), err)
	}
	native := rating.TenPoint.FromCanonical(value)

	existing, err := d.client.AccountRating(ctx, id)
	if errors.Is(err, tmdb.ErrNoSession) {
		return ratserrors.NewFatalError("tmdb: no session", err)
	}
	if err != nil {
		return err
	}
	if existing > 0 && existing >= native {
		return ratserrors.NewConflictError(targetID, existing)
	}

	if err := d.client.RateMovie(ctx, id, native); err != nil {
		if ratserrors.IsTransient(err) || ratserrors.IsFatal(err) {
			return err
		}
		return ratserrors.NewFatalError("tmdb: rating failed", err)
	}
	return nil
}

func toCandidate(m tmdb.Movie) site.RawCandidate {
	c := site.RawCandidate{
		TargetID: strconv.Itoa(m.ID),
		Title:    m.Title,
		Year:     m.YearInt(),
	}
	if m.OriginalTitle != m.Title {
		c.OriginalTitle = m.OriginalTitle
	}
	return c
}
