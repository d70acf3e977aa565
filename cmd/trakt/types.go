package trakt

import "time"

type ids struct {
	Trakt int    `json:"trakt"`
	Slug  string `json:"slug,omitempty"`
	IMDb  string `json:"imdb,omitempty"`
	TMDB  int    `json:"tmdb,omitempty"`
}

type movie struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   ids    `json:"ids"`
}

// ratedMovie is one entry of /users/{user}/ratings/movies and
// /sync/ratings/movies.
type ratedMovie struct {
	RatedAt time.Time `json:"rated_at"`
	Rating  int       `json:"rating"`
	Type    string    `json:"type"`
	Movie   movie     `json:"movie"`
}

type searchResult struct {
	Type  string  `json:"type"`
	Score float64 `json:"score"`
	Movie *movie  `json:"movie"`
}

type ratingItem struct {
	Rating int `json:"rating"`
	IDs    struct {
		Trakt int `json:"trakt"`
	} `json:"ids"`
}

type syncRatingsRequest struct {
	Movies []ratingItem `json:"movies"`
}

type syncRatingsResponse struct {
	Added struct {
		Movies int `json:"movies"`
	} `json:"added"`
	NotFound struct {
		Movies []ratingItem `json:"movies"`
	} `json:"not_found"`
}
