package imdb

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lepinkainen/rats/internal/config"
	ratserrors "github.com/lepinkainen/rats/internal/errors"
	"github.com/lepinkainen/rats/internal/ratelimit"
	"github.com/lepinkainen/rats/internal/site"
)

var titleIDOnly = regexp.MustCompile(`^tt\d+$`)

// Title kinds accepted from the suggestion search.
var ratableKinds = map[string]bool{
	"movie":        true,
	"tvMovie":      true,
	"tvSeries":     true,
	"tvMiniSeries": true,
	"short":        true,
	"video":        true,
}

const (
	userRatingQuery = `query UserRating($titleId: ID!) {
  title(id: $titleId) { userRating { value } }
}`
	rateTitleMutation = `mutation RateTitle($titleId: ID!, $rating: Int!) {
  rateTitle(input: {titleId: $titleId, rating: $rating}) { rating { value } }
}`
)

type suggestion struct {
	ID   string `json:"id"`
	Name string `json:"l"`
	Year int    `json:"y"`
	Kind string `json:"qid"`
}

type suggestionResponse struct {
	Items []suggestion `json:"d"`
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type userRatingData struct {
	Title *struct {
		UserRating *struct {
			Value int `json:"value"`
		} `json:"userRating"`
	} `json:"title"`
}

type rateTitleData struct {
	RateTitle *struct {
		Rating struct {
			Value int `json:"value"`
		} `json:"rating"`
	} `json:"rateTitle"`
}

type graphQLResponse[T any] struct {
	Data   T              `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// Destination rates titles on the IMDb account owning the session cookie.
type Destination struct {
	cookie  string
	suggest *resty.Client
	graphQL *resty.Client
}

// NewDestination returns a destination authorized by cfg.Cookie.
func NewDestination(cfg config.IMDbConfig, timeout time.Duration) (*Destination, error) {
	limiter := ratelimit.New(Name, cfg.RatePerSecond)
	suggest := site.NewHTTPClient(site.ClientOptions{BaseURL: cfg.SuggestURL, Timeout: timeout, Limiter: limiter})
	graphQL := site.NewHTTPClient(site.ClientOptions{BaseURL: cfg.GraphQLURL, Timeout: timeout, Limiter: limiter})
	graphQL.SetHeader("Content-Type", "application/json").
		SetHeader("Cookie", cfg.Cookie).
		SetHeader("x-imdb-client-name", "imdb-web-next")
	return &Destination{cookie: cfg.Cookie, suggest: suggest, graphQL: graphQL}, nil
}

func (d *Destination) Name() string { return Name }

// Authenticate checks that a session cookie is configured.
func (d *Destination) Authenticate(context.Context) error {
	if !strings.Contains(d.cookie, "at-main=") {
		return ratserrors.NewFatalError("imdb: imdb.cookie must carry a signed-in session (at-main)", nil)
	}
	return nil
}

// Search queries the suggestion endpoint. The year is left to the matcher.
func (d *Destination) Search(ctx context.Context, title string, _ int) ([]site.RawCandidate, error) {
	query := strings.ToLower(strings.TrimSpace(title))
	if query == "" {
		return nil, nil
	}

	var result suggestionResponse
	resp, err := d.suggest.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/suggestion/x/" + url.PathEscape(query) + ".json")
	if err := site.CheckResponse(Name, resp, err); err != nil {
		return nil, err
	}

	candidates := make([]site.RawCandidate, 0, len(result.Items))
	for _, s := range result.Items {
		if !titleIDOnly.MatchString(s.ID) || !ratableKinds[s.Kind] {
			continue
		}
		candidates = append(candidates, site.RawCandidate{TargetID: s.ID, Title: s.Name, Year: s.Year})
	}
	return candidates, nil
}

// ResolveIDs uses an IMDb identifier directly.
func (d *Destination) ResolveIDs(_ context.Context, ids map[string]string) (*site.RawCandidate, error) {
	id := strings.TrimSpace(ids["imdb"])
	if !titleIDOnly.MatchString(id) {
		return nil, nil
	}
	return &site.RawCandidate{TargetID: id}, nil
}

// Submit rates targetID. An equal or higher existing rating is a conflict.
func (d *Destination) Submit(ctx context.Context, targetID string, value int) error {
	if !titleIDOnly.MatchString(targetID) {
		return ratserrors.NewFatalError(fmt.Sprintf("imdb: invalid title id %q", targetID), nil)
	}

	var current graphQLResponse[userRatingData]
	if err := d.post(ctx, userRatingQuery, map[string]any{"titleId": targetID}, &current); err != nil {
		return err
	}
	if t := current.Data.Title; t != nil && t.UserRating != nil && t.UserRating.Value >= value {
		return ratserrors.NewConflictError(targetID, float64(t.UserRating.Value))
	}

	var rated graphQLResponse[rateTitleData]
	if err := d.post(ctx, rateTitleMutation, map[string]any{"titleId": targetID, "rating": value}, &rated); err != nil {
		return err
	}
	if rated.Data.RateTitle == nil || rated.Data.RateTitle.Rating.Value != value {
		return ratserrors.NewFatalError(fmt.Sprintf("imdb: rating for %s was not stored", targetID), nil)
	}
	return nil
}

type graphQLResult interface {
	graphQLErrors() []graphQLError
}

func (r *graphQLResponse[T]) graphQLErrors() []graphQLError { return r.Errors }

func (d *Destination) post(ctx context.Context, query string, variables map[string]any, out graphQLResult) error {
	resp, err := d.graphQL.R().
		SetContext(ctx).
		SetBody(graphQLRequest{Query: query, Variables: variables}).
		SetResult(out).
		Post("/")
	if err := site.CheckResponse(Name, resp, err); err != nil {
		return err
	}
	return classifyGraphQLErrors(out.graphQLErrors())
}

func classifyGraphQLErrors(errs []graphQLError) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	msg := "imdb: graphql: " + strings.Join(msgs, "; ")

	switch errs[0].Extensions.Code {
	case "UNAUTHENTICATED", "FORBIDDEN":
		return ratserrors.NewFatalError(msg+" (check imdb.cookie)", nil)
	case "INTERNAL_SERVER_ERROR", "SERVICE_UNAVAILABLE", "THROTTLED":
		return ratserrors.NewTransientError(msg, nil)
	default:
		return ratserrors.NewFatalError(msg, nil)
	}
}
