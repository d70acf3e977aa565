// Package movielens rates movies on MovieLens through its web API.
package movielens

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lepinkainen/rats/internal/config"
	ratserrors "github.com/lepinkainen/rats/internal/errors"
	"github.com/lepinkainen/rats/internal/ratelimit"
	"github.com/lepinkainen/rats/internal/rating"
	"github.com/lepinkainen/rats/internal/site"
)

// Name is the registry name of the driver.
const Name = "movielens"

type loginRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type exploreResponse struct {
	Data struct {
		SearchResults []searchResult `json:"searchResults"`
	} `json:"data"`
}

type searchResult struct {
	MovieID int `json:"movieId"`
	Movie   struct {
		Title       string `json:"title"`
		ReleaseYear string `json:"releaseYear"`
	} `json:"movie"`
}

type movieResponse struct {
	Data struct {
		MovieDetails struct {
			MovieUserData struct {
				Rating float64 `json:"rating"`
			} `json:"movieUserData"`
		} `json:"movieDetails"`
	} `json:"data"`
}

type ratingRequest struct {
	MovieID         int     `json:"movieId"`
	Rating          float64 `json:"rating"`
	PredictedRating float64 `json:"predictedRating"`
}

// Destination rates movies on a MovieLens account.
type Destination struct {
	cfg  config.MovieLensConfig
	http *resty.Client
}

// NewDestination returns a destination for cfg.Username.
func NewDestination(cfg config.MovieLensConfig, timeout time.Duration) (*Destination, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("movielens.username and movielens.password are required")
	}
	http := site.NewHTTPClient(site.ClientOptions{
		BaseURL: cfg.BaseURL,
		Timeout: timeout,
		Limiter: ratelimit.New(Name, cfg.RatePerSecond),
	})
	http.SetHeader("Content-Type", "application/json")
	return &Destination{cfg: cfg, http: http}, nil
}

func (d *Destination) Name() string        { return Name }
func (d *Destination) Scale() rating.Scale { return rating.FiveStar }

// Authenticate logs in; the session cookie is kept in the client's jar.
func (d *Destination) Authenticate(ctx context.Context) error {
	resp, err := d.http.R().
		SetContext(ctx).
		SetBody(loginRequest{UserName: d.cfg.Username, Password: d.cfg.Password}).
		Post("/api/sessions")
	if err := site.CheckResponse(Name, resp, err); err != nil {
		return err
	}
	slog.Debug("Logged in", "destination", Name, "user", d.cfg.Username)
	return nil
}

// Search uses the explore endpoint.
func (d *Destination) Search(ctx context.Context, title string, _ int) ([]site.RawCandidate, error) {
	var result exploreResponse
	resp, err := d.http.R().
		SetContext(ctx).
		SetQueryParam("q", title).
		SetResult(&result).
		Get("/api/movies/explore")
	if err := site.CheckResponse(Name, resp, err); err != nil {
		return nil, err
	}

	candidates := make([]site.RawCandidate, 0, len(result.Data.SearchResults))
	for _, r := range result.Data.SearchResults {
		if r.MovieID == 0 {
			continue
		}
		year, _ := strconv.Atoi(r.Movie.ReleaseYear)
		candidates = append(candidates, site.RawCandidate{
			TargetID: strconv.Itoa(r.MovieID),
			Title:    r.Movie.Title,
			Year:     year,
		})
	}
	return candidates, nil
}

// currentRating returns the account's rating of movie id in stars, 0 when unrated.
func (d *Destination) currentRating(ctx context.Context, id int) (float64, error) {
	var result movieResponse
	resp, err := d.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/api/movies/" + strconv.Itoa(id))
	if err := site.CheckResponse(Name, resp, err); err != nil {
		return 0, err
	}
	return result.Data.MovieDetails.MovieUserData.Rating, nil
}

// Submit stores value converted to half stars unless the account already
// rates the movie as high.
func (d *Destination) Submit(ctx context.Context, targetID string, value int) error {
	id, err := strconv.Atoi(targetID)
	if err != nil {
		return ratserrors.NewFatalError(fmt.Sprintf("movielens: invalid movie id %q", targetID), err)
	}
	stars := rating.FiveStar.FromCanonical(value)
	existing, err := d.currentRating(ctx, id)
	if err != nil {
		return err
	}
	if existing >= stars {
		return ratserrors.NewConflictError(targetID, existing)
	}

	resp, err := d.http.R().
		SetContext(ctx).
		SetBody(ratingRequest{MovieID: id, Rating: stars}).
		Post("/api/users/me/ratings")
	return site.CheckResponse(Name, resp, err)
}
