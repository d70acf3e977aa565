// Package rating holds the site-independent data model that moves through a
// transfer: rating records, match candidates and per-record outcomes.
package rating

import (
	"time"
)

// Record is one user rating extracted from a source site, normalized to the
// canonical 1-10 scale. Records are not modified after extraction.
type Record struct {
	Title         string            `json:"title"`
	OriginalTitle string            `json:"originalTitle,omitempty"`
	Year          int               `json:"year,omitempty"` // 0 when the source omits it
	Rating        int               `json:"rating"`         // Canonical 1-10
	SourceID      string            `json:"sourceId"`
	RatedAt       *time.Time        `json:"ratedAt,omitempty"`
	ExternalIDs   map[string]string `json:"externalIds,omitempty"` // e.g. "imdb" -> "tt1375666"
}

// ExternalID returns the identifier the source reported for another catalog.
func (r Record) ExternalID(catalog string) string {
	if r.ExternalIDs == nil {
		return ""
	}
	return r.ExternalIDs[catalog]
}

// Candidate is a destination search hit scored against a record.
type Candidate struct {
	TargetID string
	Title    string
	Year     int
	Score    float64 // Similarity in [0,1]
}
