package transfer

import (
	"context"
	"fmt"

	ratserrors "github.com/lepinkainen/rats/internal/errors"
	"github.com/lepinkainen/rats/internal/rating"
	"github.com/lepinkainen/rats/internal/retry"
	"github.com/lepinkainen/rats/internal/site"
)

// SubmitResult is the classified result of one rating submission.
type SubmitResult struct {
	Status   rating.Status
	Detail   string
	Attempts int
}

// Submitter writes ratings to a destination under the retry policy.
type Submitter struct {
	retry retry.Policy
}

// NewSubmitter creates a submitter.
func NewSubmitter(policy retry.Policy) *Submitter {
	return &Submitter{retry: policy}
}

// Submit sets targetID to the canonical value on dst. An existing rating at
// or above the value is reported as AlreadyRated.
func (s *Submitter) Submit(ctx context.Context, dst site.Destination, targetID string, value int) SubmitResult {
	attempts, err := retry.Do(ctx, s.retry, "submit "+targetID, func(ctx context.Context) error {
		return dst.Submit(ctx, targetID, value)
	})

	switch {
	case err == nil:
		return SubmitResult{Status: rating.StatusSubmitted, Attempts: attempts}
	case ratserrors.IsConflict(err):
		return SubmitResult{Status: rating.StatusAlreadyRated, Detail: err.Error(), Attempts: attempts}
	case ratserrors.IsTransient(err):
		return SubmitResult{
			Status:   rating.StatusSubmitFailed,
			Detail:   fmt.Sprintf("gave up after %d attempts: %v", attempts, err),
			Attempts: attempts,
		}
	default:
		return SubmitResult{Status: rating.StatusSubmitFailed, Detail: err.Error(), Attempts: attempts}
	}
}
