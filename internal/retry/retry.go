// Package retry runs site operations under the shared bounded exponential
// backoff policy. Only transient errors are retried.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	ratserrors "github.com/lepinkainen/rats/internal/errors"
)

const (
	defaultAttempts  = 3
	defaultBaseDelay = 1 * time.Second
	defaultFactor    = 2.0
	defaultMaxDelay  = 30 * time.Second
)

// Policy bounds how often and how patiently an operation is retried.
type Policy struct {
	Attempts  int           // Total attempts including the first one
	BaseDelay time.Duration // Delay before the second attempt
	Factor    float64       // Multiplier applied to each following delay
	MaxDelay  time.Duration // Upper bound for a single delay
}

// DefaultPolicy returns 3 attempts with 1s, 2s delays.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  defaultAttempts,
		BaseDelay: defaultBaseDelay,
		Factor:    defaultFactor,
		MaxDelay:  defaultMaxDelay,
	}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.Factor < 1 {
		p.Factor = def.Factor
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = def.MaxDelay
		if p.MaxDelay < p.BaseDelay {
			p.MaxDelay = p.BaseDelay
		}
	}
	return p
}

// Delays returns the sleep schedule between attempts, without jitter.
func (p Policy) Delays() []time.Duration {
	p = p.normalized()
	delays := make([]time.Duration, 0, p.Attempts-1)
	delay := p.BaseDelay
	for i := 1; i < p.Attempts; i++ {
		delays = append(delays, delay)
		delay = time.Duration(float64(delay) * p.Factor)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return delays
}

// hintedBackOff waits at least as long as the last Retry-After hint.
type hintedBackOff struct {
	backoff.BackOff
	hint time.Duration
	max  time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	next := h.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if h.hint > next {
		next = min(h.hint, h.max)
	}
	h.hint = 0
	return next
}

func (p Policy) backOff(ctx context.Context) (backoff.BackOff, *hintedBackOff) {
	p = p.normalized()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Factor
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	hinted := &hintedBackOff{BackOff: b, max: p.MaxDelay}
	return backoff.WithContext(backoff.WithMaxRetries(hinted, uint64(p.Attempts-1)), ctx), hinted
}

// Do calls op until it succeeds, returns a non-transient error, the attempts
// run out, or ctx is done. It returns the number of attempts made and the
// last error. Sleeps between attempts are real timers that honor ctx.
func Do(ctx context.Context, p Policy, name string, op func(ctx context.Context) error) (int, error) {
	attempts := 0
	bo, hinted := p.backOff(ctx)
	operation := func() error {
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !ratserrors.IsTransient(err) {
			return backoff.Permanent(err)
		}
		hinted.hint = ratserrors.RetryAfter(err)
		return err
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("Transient failure, retrying", "operation", name, "attempt", attempts, "wait", wait, "error", err)
	}

	err := backoff.RetryNotify(operation, bo, notify)
	return attempts, err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, name string, op func(ctx context.Context) (T, error)) (T, int, error) {
	var result T
	attempts, err := Do(ctx, p, name, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, attempts, err
}
