package retry

import (
	"context"
	"time"

	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
)

// Op is a single attempt. attempt is 1-based.
type Op func(ctx context.Context, attempt int) error

// Options tune Do. The zero value retries every error that
// errors.IsRetryable reports as retryable.
type Options struct {
	// ShouldRetry overrides the retryability decision.
	ShouldRetry func(err error) bool
	// OnRetry is called before sleeping for the next attempt.
	OnRetry func(attempt int, delay time.Duration, err error)
	// Sleep replaces the context-aware timer, mainly for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do runs op until it succeeds, returns a non-retryable error, or the
// policy's retry budget is exhausted. The last error is returned unchanged so
// callers keep its classification.
func Do(ctx context.Context, p Policy, opts Options, op Op) error {
	shouldRetry := opts.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = errors.IsRetryable
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx, attempt); err == nil {
			return nil
		}
		if attempt > p.MaxRetries || !shouldRetry(err) {
			return err
		}
		delay := p.Delay(attempt)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return err
		}
	}
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
