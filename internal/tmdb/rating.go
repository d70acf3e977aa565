package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoSession is returned by account endpoints when no session is set.
var ErrNoSession = errors.New("tmdb: a session ID is required")

type accountStates struct {
	ID    int             `json:"id"`
	Rated json.RawMessage `json:"rated"` // false, or {"value": 8.0}
}

// AccountRating returns the session user's rating of a movie, 0 when the
// movie is not rated.
func (c *Client) AccountRating(ctx context.Context, movieID int) (float64, error) {
	if !c.HasSession() {
		return 0, ErrNoSession
	}

	var states accountStates
	path := fmt.Sprintf("/movie/%d/account_states", movieID)
	if _, err := c.getJSON(ctx, path, map[string]string{"session_id": c.sessionID}, &states); err != nil {
		return 0, err
	}
	return parseRated(states.Rated)
}

func parseRated(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "false" || string(raw) == "null" {
		return 0, nil
	}
	var rated ratingBody
	if err := json.Unmarshal(raw, &rated); err != nil {
		return 0, fmt.Errorf("tmdb: unexpected rated value %s: %w", raw, err)
	}
	return rated.Value, nil
}

// RateMovie sets the session user's rating of a movie. TMDB accepts values
// from 0.5 to 10 in steps of 0.5.
func (c *Client) RateMovie(ctx context.Context, movieID int, value float64) error {
	if !c.HasSession() {
		return ErrNoSession
	}
	if value < 0.5 || value > 10 {
		return fmt.Errorf("tmdb: rating %g outside 0.5-10", value)
	}

	var response statusResponse
	path := fmt.Sprintf("/movie/%d/rating", movieID)
	if _, err := c.postJSON(ctx, path, map[string]string{"session_id": c.sessionID}, ratingBody{Value: value}, &response); err != nil {
		return err
	}
	if !response.Success {
		return fmt.Errorf("tmdb: rating rejected (%d): %s", response.StatusCode, response.StatusMessage)
	}
	return nil
}
