package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lepinkainen/rats/internal/rating"
	"github.com/lepinkainen/rats/internal/retry"
	"github.com/lepinkainen/rats/internal/site"
)

// MatchConfig holds the matcher's decision thresholds.
type MatchConfig struct {
	AcceptThreshold    float64 // Minimum score for a match
	AmbiguityThreshold float64 // Tied top candidates at or above this are ambiguous
	YearTolerance      int     // Allowed difference between record and candidate year
}

// DefaultMatchConfig returns accept 0.6, ambiguity 0.9 and a one year tolerance.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		AcceptThreshold:    0.6,
		AmbiguityThreshold: 0.9,
		YearTolerance:      1,
	}
}

// MatchKind classifies a match attempt.
type MatchKind int

const (
	MatchFound MatchKind = iota
	MatchNone
	MatchAmbiguous
	MatchFailed
)

func (k MatchKind) String() string {
	switch k {
	case MatchFound:
		return "found"
	case MatchNone:
		return "none"
	case MatchAmbiguous:
		return "ambiguous"
	case MatchFailed:
		return "failed"
	default:
		return fmt.Sprintf("MatchKind(%d)", int(k))
	}
}

// MatchResult is the outcome of matching one record against a destination.
type MatchResult struct {
	Kind       MatchKind
	Candidate  *rating.Candidate  // Set when Kind is MatchFound
	Candidates []rating.Candidate // Scored candidates, best first
	Attempts   int                // Search attempts made
	Err        error              // Set when Kind is MatchFailed
}

// Scorer rates how well a destination candidate fits a record, in [0,1].
type Scorer func(rec rating.Record, cand site.RawCandidate) float64

// TitleScorer is the default scorer: the best title similarity across the
// record's and candidate's primary and original titles.
func TitleScorer(rec rating.Record, cand site.RawCandidate) float64 {
	best := 0.0
	for _, a := range []string{rec.Title, rec.OriginalTitle} {
		if a == "" {
			continue
		}
		for _, b := range []string{cand.Title, cand.OriginalTitle} {
			if b == "" {
				continue
			}
			if s := TitleSimilarity(a, b); s > best {
				best = s
			}
		}
	}
	return best
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithScorer replaces the title scorer.
func WithScorer(s Scorer) MatcherOption {
	return func(m *Matcher) { m.score = s }
}

// Matcher finds the destination entry corresponding to a record.
type Matcher struct {
	cfg   MatchConfig
	retry retry.Policy
	score Scorer
}

// NewMatcher creates a matcher with the given thresholds and retry policy.
func NewMatcher(cfg MatchConfig, policy retry.Policy, opts ...MatcherOption) *Matcher {
	m := &Matcher{cfg: cfg, retry: policy, score: TitleScorer}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match resolves rec on dst. Destinations that can look up shared catalog
// IDs are asked first; otherwise the destination is searched by title, then
// by original title if the first search is empty.
func (m *Matcher) Match(ctx context.Context, rec rating.Record, dst site.Destination) MatchResult {
	if resolver, ok := dst.(site.IDResolver); ok && len(rec.ExternalIDs) > 0 {
		raw, _, err := retry.Value(ctx, m.retry, "resolve "+rec.SourceID,
			func(ctx context.Context) (*site.RawCandidate, error) {
				return resolver.ResolveIDs(ctx, rec.ExternalIDs)
			})
		switch {
		case err != nil:
			slog.Debug("ID lookup failed, falling back to search", "destination", dst.Name(), "source_id", rec.SourceID, "error", err)
		case raw != nil:
			c := rating.Candidate{TargetID: raw.TargetID, Title: raw.Title, Year: raw.Year, Score: 1}
			return MatchResult{Kind: MatchFound, Candidate: &c, Candidates: []rating.Candidate{c}}
		}
	}

	raw, attempts, err := m.search(ctx, dst, rec.Title, rec.Year)
	if err != nil {
		return MatchResult{Kind: MatchFailed, Attempts: attempts, Err: err}
	}
	if len(raw) == 0 && rec.OriginalTitle != "" && !strings.EqualFold(rec.OriginalTitle, rec.Title) {
		var more int
		raw, more, err = m.search(ctx, dst, rec.OriginalTitle, rec.Year)
		attempts += more
		if err != nil {
			return MatchResult{Kind: MatchFailed, Attempts: attempts, Err: err}
		}
	}

	res := m.Rank(rec, raw)
	res.Attempts = attempts
	return res
}

func (m *Matcher) search(ctx context.Context, dst site.Destination, title string, year int) ([]site.RawCandidate, int, error) {
	return retry.Value(ctx, m.retry, "search "+title,
		func(ctx context.Context) ([]site.RawCandidate, error) {
			return dst.Search(ctx, title, year)
		})
}

// Rank scores raw search results and decides the match. It is a pure
// function of its inputs; ties keep search order.
func (m *Matcher) Rank(rec rating.Record, raw []site.RawCandidate) MatchResult {
	seen := make(map[string]bool, len(raw))
	scored := make([]rating.Candidate, 0, len(raw))
	for _, c := range raw {
		if c.TargetID == "" || seen[c.TargetID] {
			continue
		}
		seen[c.TargetID] = true
		scored = append(scored, rating.Candidate{
			TargetID: c.TargetID,
			Title:    c.Title,
			Year:     c.Year,
			Score:    m.score(rec, c),
		})
	}
	if len(scored) == 0 {
		return MatchResult{Kind: MatchNone}
	}

	candidates := m.filterYear(rec, scored)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	best := candidates[0]
	if len(candidates) > 1 && candidates[1].Score == best.Score && best.Score >= m.cfg.AmbiguityThreshold {
		return MatchResult{Kind: MatchAmbiguous, Candidates: candidates}
	}
	if best.Score < m.cfg.AcceptThreshold {
		return MatchResult{Kind: MatchNone, Candidates: candidates}
	}
	return MatchResult{Kind: MatchFound, Candidate: &best, Candidates: candidates}
}

// filterYear drops candidates outside the year tolerance. If that leaves
// nothing, all candidates are kept.
func (m *Matcher) filterYear(rec rating.Record, candidates []rating.Candidate) []rating.Candidate {
	if rec.Year <= 0 {
		return candidates
	}
	kept := make([]rating.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Year <= 0 || abs(c.Year-rec.Year) <= m.cfg.YearTolerance {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return candidates
	}
	return kept
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
