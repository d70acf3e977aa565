package transfer

import (
	"context"
	"strings"
	"time"

	ratserrors "github.com/lepinkainen/rats/internal/errors"
	"github.com/lepinkainen/rats/internal/rating"
	"github.com/lepinkainen/rats/internal/retry"
	"github.com/lepinkainen/rats/internal/site"
)

func fastPolicy() retry.Policy {
	return retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, Factor: 2, MaxDelay: 2 * time.Millisecond}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Retry = fastPolicy()
	return opts
}

// fakeSource serves fixed pages. Pages past the end are empty.
type fakeSource struct {
	name      string
	scale     rating.Scale
	pages     [][]site.RawEntry
	transient map[int]int   // page -> remaining transient failures
	fatal     map[int]error // page -> permanent failure
	calls     []int
	authErr   error
	authed    bool
}

func (s *fakeSource) Name() string {
	if s.name == "" {
		return "fakesource"
	}
	return s.name
}

func (s *fakeSource) Scale() rating.Scale {
	if s.scale.Max == 0 {
		return rating.TenPoint
	}
	return s.scale
}

func (s *fakeSource) Authenticate(context.Context) error {
	s.authed = true
	return s.authErr
}

func (s *fakeSource) ListPage(_ context.Context, page int) ([]site.RawEntry, error) {
	s.calls = append(s.calls, page)
	if err, ok := s.fatal[page]; ok {
		return nil, err
	}
	if s.transient[page] > 0 {
		s.transient[page]--
		return nil, ratserrors.NewTransientError("listing timed out", nil)
	}
	if page >= len(s.pages) {
		return nil, nil
	}
	return s.pages[page], nil
}

// fakeDestination keeps ratings in memory and refuses to lower or repeat one.
type fakeDestination struct {
	name       string
	results    map[string][]site.RawCandidate // lower-cased title -> results
	ratings    map[string]int
	searches   []string
	submits    []string
	searchErr  error
	submitErrs map[string][]error // target -> errors returned before succeeding
	authErr    error
	onSubmit   func(targetID string)
}

func newFakeDestination() *fakeDestination {
	return &fakeDestination{
		results:    make(map[string][]site.RawCandidate),
		ratings:    make(map[string]int),
		submitErrs: make(map[string][]error),
	}
}

func (d *fakeDestination) Name() string {
	if d.name == "" {
		return "fakedest"
	}
	return d.name
}

func (d *fakeDestination) Authenticate(context.Context) error { return d.authErr }

func (d *fakeDestination) add(title string, candidates ...site.RawCandidate) {
	d.results[strings.ToLower(title)] = candidates
}

func (d *fakeDestination) Search(_ context.Context, title string, _ int) ([]site.RawCandidate, error) {
	d.searches = append(d.searches, title)
	if d.searchErr != nil {
		return nil, d.searchErr
	}
	return d.results[strings.ToLower(title)], nil
}

func (d *fakeDestination) Submit(_ context.Context, targetID string, value int) error {
	if errs := d.submitErrs[targetID]; len(errs) > 0 {
		d.submitErrs[targetID] = errs[1:]
		return errs[0]
	}
	if existing, ok := d.ratings[targetID]; ok && existing >= value {
		return ratserrors.NewConflictError(targetID, float64(existing))
	}
	d.ratings[targetID] = value
	d.submits = append(d.submits, targetID)
	if d.onSubmit != nil {
		d.onSubmit(targetID)
	}
	return nil
}

// resolvingDestination also looks up IMDb IDs directly.
type resolvingDestination struct {
	*fakeDestination
	byIMDb map[string]site.RawCandidate
}

func (d *resolvingDestination) ResolveIDs(_ context.Context, ids map[string]string) (*site.RawCandidate, error) {
	if c, ok := d.byIMDb[ids["imdb"]]; ok {
		return &c, nil
	}
	return nil, nil
}

type memoryMappings struct {
	m map[string]string
}

func newMemoryMappings() *memoryMappings {
	return &memoryMappings{m: make(map[string]string)}
}

func (s *memoryMappings) key(source, sourceID, destination string) string {
	return source + "|" + sourceID + "|" + destination
}

func (s *memoryMappings) Lookup(source, sourceID, destination string) (string, bool, error) {
	v, ok := s.m[s.key(source, sourceID, destination)]
	return v, ok, nil
}

func (s *memoryMappings) Remember(source, sourceID, destination, targetID string) error {
	s.m[s.key(source, sourceID, destination)] = targetID
	return nil
}

type resolverFunc func(ctx context.Context, rec rating.Record, candidates []rating.Candidate) (*rating.Candidate, error)

func (f resolverFunc) Resolve(ctx context.Context, rec rating.Record, candidates []rating.Candidate) (*rating.Candidate, error) {
	return f(ctx, rec, candidates)
}

func entry(id, title string, year int, value float64) site.RawEntry {
	return site.RawEntry{SourceID: id, Title: title, Year: year, Rating: value}
}

func candidate(id, title string, year int) site.RawCandidate {
	return site.RawCandidate{TargetID: id, Title: title, Year: year}
}
