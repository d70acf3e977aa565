package tmdb

import (
	"strconv"
)

// Movie is a movie as returned by search, find and details endpoints.
type Movie struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	OriginalTitle string `json:"original_title"`
	ReleaseDate   string `json:"release_date"`
}

// YearInt returns the release year, or 0 when the date is unknown.
func (m Movie) YearInt() int {
	if len(m.ReleaseDate) >= 4 {
		if year, err := strconv.Atoi(m.ReleaseDate[:4]); err == nil {
			return year
		}
	}
	return 0
}

type movieList struct {
	Results []Movie `json:"results"`
}

type findResponse struct {
	MovieResults []Movie `json:"movie_results"`
}

type ratingBody struct {
	Value float64 `json:"value"`
}

type statusResponse struct {
	Success       bool   `json:"success"`
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}
