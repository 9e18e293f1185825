// Package retry runs operations under the configured retry policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"blsdata/internal/config"
)

// ErrPermanent marks an error that must not be retried.
var ErrPermanent = errors.New("permanent failure")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string        { return e.err.Error() }
func (e *permanentError) Unwrap() error        { return e.err }
func (e *permanentError) Is(target error) bool { return target == ErrPermanent }

// Permanent wraps err so that Attempt returns it without retrying. The
// message of err is kept as is.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
}

// Policy repeats an operation with exponential backoff.
type Policy struct {
	policy config.RetryPolicy
	// OnRetry is called before each repeat with the failed attempt number.
	OnRetry func(attempt int, err error, delay time.Duration)
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a policy from the retry configuration.
func New(policy config.RetryPolicy) *Policy {
	return &Policy{policy: policy, sleep: sleep}
}

// MaxAttempts returns the number of attempts, at least one.
func (p *Policy) MaxAttempts() int {
	if p.policy.MaxAttempts < 1 {
		return 1
	}

	return p.policy.MaxAttempts
}

// Attempt runs op until it succeeds, returns a permanent error, the context
// ends or the attempts are used up. The last error is returned.
func (p *Policy) Attempt(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	maxAttempts := p.MaxAttempts()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if errors.Is(lastErr, ErrPermanent) || attempt == maxAttempts || ctx.Err() != nil {
			break
		}

		// The first retry is immediate; later ones back off.
		delay := p.policy.GetRetryDelay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, lastErr, delay)
		}

		if err := p.sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry aborted after attempt %d: %w", attempt, lastErr)
		}
	}

	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
