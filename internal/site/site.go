// Package site defines the capabilities a rating site driver can offer.
//
// A driver implements only the interfaces relevant to its role: sources list
// pages of the user's ratings, destinations search their catalog and accept
// ratings. Failures are reported with the errors package taxonomy:
// TransientError for retryable trouble, FatalError for everything that a
// retry will not fix, and ConflictError from Submit when the destination
// already holds an equal or greater rating.
package site

import (
	"context"
	"time"

	"github.com/lepinkainen/rats/internal/rating"
)

// RawEntry is one rated title as read from a source listing page, before
// scale normalization.
type RawEntry struct {
	SourceID      string
	Title         string
	OriginalTitle string
	Year          int
	Rating        float64 // In the source's native scale
	RatedAt       *time.Time
	ExternalIDs   map[string]string
}

// RawCandidate is one destination search hit.
type RawCandidate struct {
	TargetID      string `json:"targetId"`
	Title         string `json:"title"`
	OriginalTitle string `json:"originalTitle,omitempty"`
	Year          int    `json:"year,omitempty"`
}

// Driver is implemented by every site.
type Driver interface {
	Name() string
}

// Authenticator is implemented by sites that need a session before use.
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// Source lists the user's ratings page by page. Page indexes start at 0.
// An empty page means the listing is exhausted.
type Source interface {
	Driver
	ListPage(ctx context.Context, page int) ([]RawEntry, error)
	Scale() rating.Scale
}

// Destination searches its catalog and stores ratings. Submit receives the
// canonical 1-10 rating; the driver converts it to its own scale.
type Destination interface {
	Driver
	Search(ctx context.Context, title string, year int) ([]RawCandidate, error)
	Submit(ctx context.Context, targetID string, value int) error
}

// IDResolver is implemented by destinations that can look a title up
// directly by an identifier from another catalog (for example an IMDb ID).
// It returns nil, nil when none of the identifiers are known.
type IDResolver interface {
	ResolveIDs(ctx context.Context, ids map[string]string) (*RawCandidate, error)
}
