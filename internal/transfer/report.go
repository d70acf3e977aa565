package transfer

import (
	"time"

	"github.com/lepinkainen/rats/internal/rating"
)

// Report aggregates the outcomes of one run.
type Report struct {
	RunID       string
	Source      string
	Destination string
	StartedAt   time.Time
	FinishedAt  time.Time

	Records  []rating.Record // Records extracted or replayed
	Outcomes []rating.Outcome
	Pages    int
	Skipped  int

	Truncated  bool  // Extraction did not reach the end of the listing
	ExtractErr error // Why extraction stopped early
	Cancelled  bool  // Processing stopped before every record had an outcome
}

// Counts returns the number of outcomes per status. Every status is present.
func (r *Report) Counts() map[rating.Status]int {
	counts := make(map[rating.Status]int, len(rating.AllStatuses))
	for _, s := range rating.AllStatuses {
		counts[s] = 0
	}
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// Failed returns outcomes whose rating did not reach the destination.
func (r *Report) Failed() []rating.Outcome {
	var failed []rating.Outcome
	for _, o := range r.Outcomes {
		if !o.Status.Succeeded() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Complete reports whether every extracted record got an outcome from a
// listing that was read to its end.
func (r *Report) Complete() bool {
	return !r.Truncated && !r.Cancelled && len(r.Outcomes) == len(r.Records)
}
