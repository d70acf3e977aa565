package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lepinkainen/rats/internal/site"
)

// CachedDestination serves repeated searches from the cache. Other calls go
// straight to the wrapped destination.
type CachedDestination struct {
	site.Destination
	c   *CacheDB
	ttl time.Duration
}

// WrapDestination adds search caching to dst.
func WrapDestination(dst site.Destination, c *CacheDB, ttl time.Duration) *CachedDestination {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedDestination{Destination: dst, c: c, ttl: ttl}
}

func searchKey(destination, title string, year int) string {
	return strings.Join([]string{destination, strings.ToLower(strings.TrimSpace(title)), strconv.Itoa(year)}, "|")
}

// Search returns cached results for the same destination, title and year.
// Empty results are kept for a shorter time. Errors are never cached.
func (d *CachedDestination) Search(ctx context.Context, title string, year int) ([]site.RawCandidate, error) {
	results, _, err := GetOrFetch(d.c, SearchTable, searchKey(d.Name(), title, year), d.ttl,
		func() ([]site.RawCandidate, error) {
			return d.Destination.Search(ctx, title, year)
		},
		SelectNegativeCacheTTL(d.ttl, func(r []site.RawCandidate) bool { return len(r) == 0 }),
	)
	return results, err
}

// Authenticate forwards to the wrapped destination when it needs a session.
func (d *CachedDestination) Authenticate(ctx context.Context) error {
	if auth, ok := d.Destination.(site.Authenticator); ok {
		return auth.Authenticate(ctx)
	}
	return nil
}

// ResolveIDs forwards to the wrapped destination when it can resolve IDs.
func (d *CachedDestination) ResolveIDs(ctx context.Context, ids map[string]string) (*site.RawCandidate, error) {
	if r, ok := d.Destination.(site.IDResolver); ok {
		return r.ResolveIDs(ctx, ids)
	}
	return nil, nil
}

// Unwrap returns the wrapped destination.
func (d *CachedDestination) Unwrap() site.Destination { return d.Destination }

func (d *CachedDestination) String() string {
	return fmt.Sprintf("cached(%s)", d.Name())
}
