// Package transfer moves ratings from a source site to a destination site:
// extraction, cross-catalog matching and submission.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	ratserrors "github.com/lepinkainen/rats/internal/errors"
	"github.com/lepinkainen/rats/internal/rating"
	"github.com/lepinkainen/rats/internal/retry"
	"github.com/lepinkainen/rats/internal/site"
)

// Options configures a Pipeline.
type Options struct {
	MaxPages int
	Retry    retry.Policy
	Match    MatchConfig
}

// DefaultOptions returns the default page bound, retry policy and thresholds.
func DefaultOptions() Options {
	return Options{
		MaxPages: DefaultMaxPages,
		Retry:    retry.DefaultPolicy(),
		Match:    DefaultMatchConfig(),
	}
}

// Checkpoint receives the extracted records before any destination call.
type Checkpoint func(source string, records []rating.Record) error

// MappingStore remembers which destination entry a source record matched.
type MappingStore interface {
	Lookup(source, sourceID, destination string) (string, bool, error)
	Remember(source, sourceID, destination, targetID string) error
}

// Resolver picks one of several equally good candidates. A nil candidate
// leaves the record ambiguous; a StopProcessingError ends the run.
type Resolver interface {
	Resolve(ctx context.Context, rec rating.Record, candidates []rating.Candidate) (*rating.Candidate, error)
}

// Option configures optional pipeline collaborators.
type Option func(*Pipeline)

// WithCheckpoint saves extracted records, e.g. as a snapshot file.
func WithCheckpoint(c Checkpoint) Option {
	return func(p *Pipeline) { p.checkpoint = c }
}

// WithMappings reuses and records confirmed matches.
func WithMappings(m MappingStore) Option {
	return func(p *Pipeline) { p.mappings = m }
}

// WithResolver enables resolution of ambiguous matches.
func WithResolver(r Resolver) Option {
	return func(p *Pipeline) { p.resolver = r }
}

// WithMatcherOptions passes options through to the matcher.
func WithMatcherOptions(opts ...MatcherOption) Option {
	return func(p *Pipeline) { p.matcherOpts = append(p.matcherOpts, opts...) }
}

// WithClock replaces time.Now for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline composes the Extractor, Matcher and Submitter.
type Pipeline struct {
	extractor *Extractor
	matcher   *Matcher
	submitter *Submitter

	checkpoint  Checkpoint
	mappings    MappingStore
	resolver    Resolver
	matcherOpts []MatcherOption
	now         func() time.Time
}

// New creates a pipeline.
func New(opts Options, options ...Option) *Pipeline {
	p := &Pipeline{now: time.Now}
	for _, o := range options {
		o(p)
	}
	p.extractor = NewExtractor(opts.MaxPages, opts.Retry)
	p.matcher = NewMatcher(opts.Match, opts.Retry, p.matcherOpts...)
	p.submitter = NewSubmitter(opts.Retry)
	return p
}

// Run extracts every rating from src and replays it on dst. The returned
// error is reserved for failures that prevent the run from starting
// (authentication); per-record failures are outcomes and extraction
// failures are recorded on the report.
func (p *Pipeline) Run(ctx context.Context, src site.Source, dst site.Destination) (*Report, error) {
	report := p.newReport(src.Name(), dst.Name())
	slog.Info("Starting transfer", "run_id", report.RunID, "source", src.Name(), "destination", dst.Name())

	if err := authenticate(ctx, src); err != nil {
		report.FinishedAt = p.now()
		return report, err
	}

	ext := p.extractor.Extract(ctx, src)
	report.Records = ext.Records
	report.Pages = ext.Pages
	report.Skipped = ext.Skipped
	report.Truncated = ext.Truncated
	report.ExtractErr = ext.Err

	if p.checkpoint != nil && len(ext.Records) > 0 {
		if err := p.checkpoint(src.Name(), ext.Records); err != nil {
			slog.Warn("Checkpoint failed", "source", src.Name(), "error", err)
		}
	}

	if err := ctx.Err(); err != nil {
		report.Cancelled = true
		report.FinishedAt = p.now()
		return report, nil
	}

	return p.transfer(ctx, report, src.Name(), ext.Records, dst)
}

// Replay submits previously extracted records to dst.
func (p *Pipeline) Replay(ctx context.Context, source string, records []rating.Record, dst site.Destination) (*Report, error) {
	report := p.newReport(source, dst.Name())
	report.Records = records
	slog.Info("Replaying records", "run_id", report.RunID, "source", source, "destination", dst.Name(), "records", len(records))
	return p.transfer(ctx, report, source, records, dst)
}

func (p *Pipeline) newReport(source, destination string) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		Source:      source,
		Destination: destination,
		StartedAt:   p.now(),
	}
}

func authenticate(ctx context.Context, d site.Driver) error {
	auth, ok := d.(site.Authenticator)
	if !ok {
		return nil
	}
	if err := auth.Authenticate(ctx); err != nil {
		return fmt.Errorf("authenticate %s: %w", d.Name(), err)
	}
	return nil
}

func (p *Pipeline) transfer(ctx context.Context, report *Report, source string, records []rating.Record, dst site.Destination) (*Report, error) {
	defer func() { report.FinishedAt = p.now() }()

	if len(records) == 0 {
		slog.Info("Nothing to transfer", "source", source)
		return report, nil
	}
	if err := authenticate(ctx, dst); err != nil {
		return report, err
	}

	for i, rec := range records {
		if ctx.Err() != nil {
			report.Cancelled = true
			slog.Warn("Transfer cancelled", "processed", i, "remaining", len(records)-i)
			break
		}

		outcome, stop := p.transferOne(ctx, source, rec, dst)
		if ctx.Err() != nil && outcome.Status == rating.StatusSubmitFailed {
			// Interrupted mid-record; the record counts as not processed
			report.Cancelled = true
			slog.Warn("Transfer cancelled", "processed", i, "remaining", len(records)-i, "title", rec.Title)
			break
		}
		report.Outcomes = append(report.Outcomes, outcome)
		logOutcome(i+1, len(records), outcome)

		if stop {
			report.Cancelled = true
			slog.Info("Stopped by user", "processed", i+1, "remaining", len(records)-i-1)
			break
		}
	}

	slog.Info("Transfer finished", "run_id", report.RunID, "records", len(records), "outcomes", len(report.Outcomes))
	return report, nil
}

// transferOne yields exactly one outcome for rec. stop is true when the user
// asked to end the run.
func (p *Pipeline) transferOne(ctx context.Context, source string, rec rating.Record, dst site.Destination) (outcome rating.Outcome, stop bool) {
	outcome = rating.Outcome{Record: rec}

	if targetID, ok := p.lookupMapping(source, rec, dst.Name()); ok {
		res := p.submitter.Submit(ctx, dst, targetID, rec.Rating)
		outcome.Status, outcome.TargetID, outcome.Attempts = res.Status, targetID, res.Attempts
		outcome.Detail = joinDetail("cached mapping", res.Detail)
		return outcome, false
	}

	match := p.matcher.Match(ctx, rec, dst)
	outcome.Attempts = match.Attempts

	var target *rating.Candidate
	switch match.Kind {
	case MatchFailed:
		outcome.Status = rating.StatusSubmitFailed
		outcome.Detail = fmt.Sprintf("search: %v", match.Err)
		return outcome, false
	case MatchNone:
		outcome.Status = rating.StatusNoMatch
		if len(match.Candidates) > 0 {
			best := match.Candidates[0]
			outcome.Detail = fmt.Sprintf("best candidate %q (%d) scored %.2f", best.Title, best.Year, best.Score)
		}
		return outcome, false
	case MatchAmbiguous:
		chosen, err := p.resolve(ctx, rec, match.Candidates)
		if err != nil {
			outcome.Status = rating.StatusAmbiguousMatch
			outcome.Detail = describeCandidates(match.Candidates)
			return outcome, ratserrors.IsStopProcessingError(err)
		}
		if chosen == nil {
			outcome.Status = rating.StatusAmbiguousMatch
			outcome.Detail = describeCandidates(match.Candidates)
			return outcome, false
		}
		target = chosen
	case MatchFound:
		target = match.Candidate
	}

	res := p.submitter.Submit(ctx, dst, target.TargetID, rec.Rating)
	outcome.Status = res.Status
	outcome.TargetID = target.TargetID
	outcome.Detail = res.Detail
	outcome.Attempts += res.Attempts

	if res.Status.Succeeded() && p.mappings != nil {
		if err := p.mappings.Remember(source, rec.SourceID, dst.Name(), target.TargetID); err != nil {
			slog.Warn("Failed to store mapping", "source_id", rec.SourceID, "target_id", target.TargetID, "error", err)
		}
	}
	return outcome, false
}

func (p *Pipeline) lookupMapping(source string, rec rating.Record, destination string) (string, bool) {
	if p.mappings == nil {
		return "", false
	}
	targetID, ok, err := p.mappings.Lookup(source, rec.SourceID, destination)
	if err != nil {
		slog.Warn("Mapping lookup failed", "source_id", rec.SourceID, "error", err)
		return "", false
	}
	return targetID, ok
}

func (p *Pipeline) resolve(ctx context.Context, rec rating.Record, candidates []rating.Candidate) (*rating.Candidate, error) {
	if p.resolver == nil {
		return nil, nil
	}
	chosen, err := p.resolver.Resolve(ctx, rec, candidates)
	if err != nil && !ratserrors.IsStopProcessingError(err) {
		slog.Warn("Resolver failed", "title", rec.Title, "error", err)
	}
	return chosen, err
}

func describeCandidates(candidates []rating.Candidate) string {
	parts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Score < candidates[0].Score {
			break
		}
		parts = append(parts, fmt.Sprintf("%s %q (%d)", c.TargetID, c.Title, c.Year))
	}
	return "tied candidates: " + strings.Join(parts, ", ")
}

func joinDetail(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "; ")
}

func logOutcome(n, total int, o rating.Outcome) {
	attrs := []any{
		"progress", fmt.Sprintf("%d/%d", n, total),
		"title", o.Record.Title,
		"source_id", o.Record.SourceID,
		"status", string(o.Status),
	}
	if o.TargetID != "" {
		attrs = append(attrs, "target_id", o.TargetID)
	}
	if o.Detail != "" {
		attrs = append(attrs, "detail", o.Detail)
	}

	switch o.Status {
	case rating.StatusSubmitted, rating.StatusAlreadyRated:
		slog.Info("Processed", attrs...)
	default:
		slog.Warn("Processed", attrs...)
	}
}
