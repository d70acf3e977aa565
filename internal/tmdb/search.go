package tmdb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// SearchMovies performs a movie-specific search on TMDB.
// If year > 0, it is passed as a hint to TMDB; results keep the API order.
func (c *Client) SearchMovies(ctx context.Context, query string, year int) ([]Movie, error) {
	params := map[string]string{
		"query":         query,
		"include_adult": "false",
	}
	if year > 0 {
		params["year"] = strconv.Itoa(year)
	}

	var response movieList
	if _, err := c.getJSON(ctx, "/search/movie", params, &response); err != nil {
		return nil, err
	}
	return response.Results, nil
}

// FindByIMDBID finds a movie by its IMDb ID using the /find endpoint.
// Returns nil, nil if TMDB has no such movie.
func (c *Client) FindByIMDBID(ctx context.Context, imdbID string) (*Movie, error) {
	if imdbID == "" {
		return nil, nil
	}

	var response findResponse
	path := fmt.Sprintf("/find/%s", url.PathEscape(imdbID))
	if _, err := c.getJSON(ctx, path, map[string]string{"external_source": "imdb_id"}, &response); err != nil {
		return nil, err
	}
	if len(response.MovieResults) == 0 {
		return nil, nil
	}
	return &response.MovieResults[0], nil
}

// GetMovie returns the movie with the given TMDB ID, or nil, nil when the
// ID is unknown.
func (c *Client) GetMovie(ctx context.Context, id int) (*Movie, error) {
	var movie Movie
	status, err := c.getJSON(ctx, fmt.Sprintf("/movie/%d", id), nil, &movie)
	if isNotFound(status) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &movie, nil
}
