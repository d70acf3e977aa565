package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ratserrors "github.com/lepinkainen/rats/internal/errors"
	"github.com/lepinkainen/rats/internal/rating"
	"github.com/lepinkainen/rats/internal/site"
)

func statuses(r *Report) []rating.Status {
	out := make([]rating.Status, len(r.Outcomes))
	for i, o := range r.Outcomes {
		out[i] = o.Status
	}
	return out
}

func TestRunFiveStarRatingIsSubmittedOnTenPointScale(t *testing.T) {
	src := &fakeSource{scale: rating.FiveStar, pages: [][]site.RawEntry{
		{entry("lb-1", "Inception", 2010, 4)},
	}}
	dst := newFakeDestination()
	dst.add("Inception", candidate("tt1375666", "Inception", 2010))

	report, err := New(testOptions()).Run(context.Background(), src, dst)

	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	out := report.Outcomes[0]
	assert.Equal(t, rating.StatusSubmitted, out.Status)
	assert.Equal(t, "tt1375666", out.TargetID)
	assert.Equal(t, 8, dst.ratings["tt1375666"])
	assert.True(t, src.authed)
	assert.True(t, report.Complete())
	assert.NotEmpty(t, report.RunID)
}

func TestRunTiedCandidatesAreAmbiguousAndNotSubmitted(t *testing.T) {
	src := &fakeSource{pages: [][]site.RawEntry{{entry("1", "Inception", 2010, 8)}}}
	dst := newFakeDestination()
	dst.add("Inception",
		candidate("tt1375666", "Inception", 2010),
		candidate("tt9999999", "Inception", 2010))

	report, err := New(testOptions()).Run(context.Background(), src, dst)

	require.NoError(t, err)
	assert.Equal(t, []rating.Status{rating.StatusAmbiguousMatch}, statuses(report))
	assert.Contains(t, report.Outcomes[0].Detail, "tt1375666")
	assert.Contains(t, report.Outcomes[0].Detail, "tt9999999")
	assert.Empty(t, dst.submits)
}

func TestRunExistingRatingIsAlreadyRated(t *testing.T) {
	src := &fakeSource{pages: [][]site.RawEntry{{entry("1", "Heat", 1995, 7)}}}
	dst := newFakeDestination()
	dst.add("Heat", candidate("949", "Heat", 1995))
	dst.ratings["949"] = 9

	report, err := New(testOptions()).Run(context.Background(), src, dst)

	require.NoError(t, err)
	assert.Equal(t, []rating.Status{rating.StatusAlreadyRated}, statuses(report))
	assert.Equal(t, 9, dst.ratings["949"])
	assert.Equal(t, 2, report.Outcomes[0].Attempts, "one search plus one submit")
}

func TestRunIsIdempotent(t *testing.T) {
	src := &fakeSource{pages: [][]site.RawEntry{{
		entry("1", "Heat", 1995, 8),
		entry("2", "Ronin", 1998, 7),
		entry("3", "Missing", 1990, 5),
	}}}
	dst := newFakeDestination()
	dst.add("Heat", candidate("949", "Heat", 1995))
	dst.add("Ronin", candidate("8195", "Ronin", 1998))
	p := New(testOptions())

	first, err := p.Run(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, []rating.Status{rating.StatusSubmitted, rating.StatusSubmitted, rating.StatusNoMatch}, statuses(first))
	submitted := len(dst.submits)

	second, err := p.Run(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, []rating.Status{rating.StatusAlreadyRated, rating.StatusAlreadyRated, rating.StatusNoMatch}, statuses(second))
	assert.Len(t, dst.submits, submitted)
	assert.Equal(t, map[string]int{"949": 8, "8195": 7}, dst.ratings)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunSurvivesTransientListFailures(t *testing.T) {
	src := &fakeSource{
		pages: [][]site.RawEntry{
			{entry("1", "Heat", 1995, 8)},
			{entry("2", "Ronin", 1998, 7)},
		},
		transient: map[int]int{0: 2},
	}
	dst := newFakeDestination()
	dst.add("Heat", candidate("949", "Heat", 1995))
	dst.add("Ronin", candidate("8195", "Ronin", 1998))

	report, err := New(testOptions()).Run(context.Background(), src, dst)

	require.NoError(t, err)
	require.NoError(t, report.ExtractErr)
	assert.False(t, report.Truncated)
	assert.Equal(t, []rating.Status{rating.StatusSubmitted, rating.StatusSubmitted}, statuses(report))
}

func TestRunTransientSubmitFailures(t *testing.T) {
	src := &fakeSource{pages: [][]site.RawEntry{{
		entry("1", "Heat", 1995, 8),
		entry("2", "Ronin", 1998, 7),
	}}}
	dst := newFakeDestination()
	dst.add("Heat", candidate("949", "Heat", 1995))
	dst.add("Ronin", candidate("8195", "Ronin", 1998))
	busy := ratserrors.NewRateLimitError("too many requests", 0)
	dst.submitErrs["949"] = []error{busy, busy}
	dst.submitErrs["8195"] = []error{busy, busy, busy}

	report, err := New(testOptions()).Run(context.Background(), src, dst)

	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, rating.StatusSubmitted, report.Outcomes[0].Status)
	assert.Equal(t, 4, report.Outcomes[0].Attempts, "one search plus three submits")
	assert.Equal(t, rating.StatusSubmitFailed, report.Outcomes[1].Status)
	assert.Contains(t, report.Outcomes[1].Detail, "gave up after 3 attempts")
}

func TestRunFatalSubmitIsNotRetried(t *testing.T) {
	src := &fakeSource{pages: [][]site.RawEntry{{entry("1", "Heat", 1995, 8)}}}
	dst := newFakeDestination()
	dst.add("Heat", candidate("949", "Heat", 1995))
	dst.submitErrs["949"] = []error{ratserrors.NewFatalError("rating rejected", nil), nil}

	report, err := New(testOptions()).Run(context.Background(), src, dst)

	require.NoError(t, err)
	assert.Equal(t, []rating.Status{rating.StatusSubmitFailed}, statuses(report))
	assert.Equal(t, "rating rejected", report.Outcomes[0].Detail)
}

func TestRunSearchFailureIsSubmitFailed(t *testing.T) {
	src := &fakeSource{pages: [][]site.RawEntry{{entry("1", "Heat", 1995, 8), entry("2", "Ronin", 1998, 7)}}}
	dst := newFakeDestination()
	dst.searchErr = ratserrors.NewTransientError("search timed out", nil)

	report, err := New(testOptions()).Run(context.Background(), src, dst)

	require.NoError(t, err)
	assert.Equal(t, []rating.Status{rating.StatusSubmitFailed, rating.StatusSubmitFailed}, statuses(report))
	assert.Contains(t, report.Outcomes[0].Detail, "search:")
	assert.Len(t, dst.searches, 6)
}

func TestRunTransfersRecordsExtractedBeforeFailure(t *testing.T) {
	src := &fakeSource{
		pages: [][]site.RawEntry{{entry("1", "Heat", 1995, 8)}},
		fatal: map[int]error{1: ratserrors.NewFatalError("unrecognized page layout", nil)},
	}
	dst := newFakeDestination()
	dst.add("Heat", candidate("949", "Heat", 1995))

	report, err := New(testOptions()).Run(context.Background(), src, dst)

	require.NoError(t, err)
	assert.True(t, report.Truncated)
	assert.True(t, ratserrors.IsFatal(report.ExtractErr))
	assert.Equal(t, []rating.Status{rating.StatusSubmitted}, statuses(report))
	assert.False(t, report.Complete())
}

func TestRunSourceAuthFailure(t *testing.T) {
	src := &fakeSource{authErr: ratserrors.NewFatalError("bad password", nil)}
	dst := newFakeDestination()

	report, err := New(testOptions()).Run(context.Background(), src, dst)

	require.Error(t, err)
	assert.True(t, ratserrors.IsFatal(err))
	assert.Empty(t, src.calls)
	assert.Empty(t, report.Outcomes)
}

func TestRunCheckpointsBeforeDestinationAuth(t *testing.T) {
	src := &fakeSource{pages: [][]site.RawEntry{{entry("1", "Heat", 1995, 8)}}}
	dst := newFakeDestination()
	dst.authErr = ratserrors.NewFatalError("session expired", nil)

	var saved []rating.Record
	p := New(testOptions(), WithCheckpoint(func(source string, records []rating.Record) error {
		assert.Equal(t, "fakesource", source)
		saved = records
		return nil
	}))

	report, err := p.Run(context.Background(), src, dst)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "authenticate fakedest")
	assert.Len(t, saved, 1)
	assert.Len(t, report.Records, 1)
	assert.Empty(t, dst.searches)
}

func TestRunCheckpointFailureDoesNotStopTransfer(t *testing.T) {
	src := &fakeSource{pages: [][]site.RawEntry{{entry("1", "Heat", 1995, 8)}}}
	dst := newFakeDestination()
	dst.add("Heat", candidate("949", "Heat", 1995))
	p := New(testOptions(), WithCheckpoint(func(string, []rating.Record) error {
		return errors.New("disk full")
	}))

	report, err := p.Run(context.Background(), src, dst)

	require.NoError(t, err)
	assert.Equal(t, []rating.Status{rating.StatusSubmitted}, statuses(report))
}

func TestRunCancelledBetweenRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{pages: [][]site.RawEntry{{
		entry("1", "Heat", 1995, 8),
		entry("2", "Ronin", 1998, 7),
	}}}
	dst := newFakeDestination()
	dst.add("Heat", candidate("949", "Heat", 1995))
	dst.add("Ronin", candidate("8195", "Ronin", 1998))
	dst.onSubmit = func(string) { cancel() }

	report, err := New(testOptions()).Run(ctx, src, dst)

	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	assert.Equal(t, []rating.Status{rating.StatusSubmitted}, statuses(report))
	assert.Len(t, report.Records, 2)
}

// interruptedDestination cancels the run while a submission is failing.
type interruptedDestination struct {
	*fakeDestination
	cancel context.CancelFunc
}

func (d *interruptedDestination) Submit(context.Context, string, int) error {
	d.cancel()
	return ratserrors.NewTransientError("gateway timeout", nil)
}

func TestRunCancelledDuringSubmitRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{pages: [][]site.RawEntry{{
		entry("1", "Heat", 1995, 8),
		entry("2", "Ronin", 1998, 7),
	}}}
	fake := newFakeDestination()
	fake.add("Heat", candidate("949", "Heat", 1995))
	fake.add("Ronin", candidate("8195", "Ronin", 1998))
	dst := &interruptedDestination{fakeDestination: fake, cancel: cancel}

	report, err := New(testOptions()).Run(ctx, src, dst)

	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	assert.Empty(t, report.Outcomes)
	assert.Zero(t, report.Counts()[rating.StatusSubmitFailed])
	assert.Equal(t, []string{"Heat"}, fake.searches)
}

func TestRunReusesMappings(t *testing.T) {
	src := &fakeSource{pages: [][]site.RawEntry{{entry("1", "Heat", 1995, 8)}}}
	dst := newFakeDestination()
	dst.add("Heat", candidate("949", "Heat", 1995))
	mappings := newMemoryMappings()
	p := New(testOptions(), WithMappings(mappings))

	_, err := p.Run(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Len(t, dst.searches, 1)

	target, ok, err := mappings.Lookup("fakesource", "1", "fakedest")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "949", target)

	report, err := p.Run(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Len(t, dst.searches, 1, "mapped record is not searched again")
	assert.Equal(t, rating.StatusAlreadyRated, report.Outcomes[0].Status)
	assert.Contains(t, report.Outcomes[0].Detail, "cached mapping")
}

func TestRunResolverPicksAmbiguousCandidate(t *testing.T) {
	src := &fakeSource{pages: [][]site.RawEntry{{entry("1", "Inception", 2010, 8)}}}
	dst := newFakeDestination()
	dst.add("Inception", candidate("a", "Inception", 2010), candidate("b", "Inception", 2010))

	resolver := resolverFunc(func(_ context.Context, _ rating.Record, c []rating.Candidate) (*rating.Candidate, error) {
		return &c[1], nil
	})
	report, err := New(testOptions(), WithResolver(resolver)).Run(context.Background(), src, dst)

	require.NoError(t, err)
	assert.Equal(t, rating.StatusSubmitted, report.Outcomes[0].Status)
	assert.Equal(t, "b", report.Outcomes[0].TargetID)
}

func TestRunResolverSkipAndStop(t *testing.T) {
	src := &fakeSource{pages: [][]site.RawEntry{{
		entry("1", "Inception", 2010, 8),
		entry("2", "Inception", 2010, 6),
		entry("3", "Heat", 1995, 8),
	}}}
	dst := newFakeDestination()
	dst.add("Inception", candidate("a", "Inception", 2010), candidate("b", "Inception", 2010))
	dst.add("Heat", candidate("949", "Heat", 1995))

	calls := 0
	resolver := resolverFunc(func(context.Context, rating.Record, []rating.Candidate) (*rating.Candidate, error) {
		calls++
		if calls == 1 {
			return nil, nil
		}
		return nil, ratserrors.NewStopProcessingError("user quit")
	})
	report, err := New(testOptions(), WithResolver(resolver)).Run(context.Background(), src, dst)

	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	assert.Equal(t, []rating.Status{rating.StatusAmbiguousMatch, rating.StatusAmbiguousMatch}, statuses(report))
	assert.Empty(t, dst.submits)
}

func TestReplay(t *testing.T) {
	records := []rating.Record{
		{Title: "Heat", Year: 1995, Rating: 8, SourceID: "1"},
		{Title: "Nope", Year: 2000, Rating: 3, SourceID: "2"},
	}
	dst := newFakeDestination()
	dst.add("Heat", candidate("949", "Heat", 1995))
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := New(testOptions(), WithClock(func() time.Time { return clock }))

	report, err := p.Replay(context.Background(), "trakt", records, dst)

	require.NoError(t, err)
	assert.Equal(t, "trakt", report.Source)
	assert.Equal(t, clock, report.StartedAt)
	assert.Equal(t, []rating.Status{rating.StatusSubmitted, rating.StatusNoMatch}, statuses(report))
	assert.Equal(t, map[rating.Status]int{
		rating.StatusSubmitted:      1,
		rating.StatusAlreadyRated:   0,
		rating.StatusNoMatch:        1,
		rating.StatusAmbiguousMatch: 0,
		rating.StatusSubmitFailed:   0,
	}, report.Counts())
	assert.Len(t, report.Failed(), 1)
}

func TestReplayEmpty(t *testing.T) {
	dst := newFakeDestination()
	dst.authErr = errors.New("never called")

	report, err := New(testOptions()).Replay(context.Background(), "trakt", nil, dst)

	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)
	assert.True(t, report.Complete())
}
