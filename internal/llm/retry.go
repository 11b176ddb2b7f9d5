package llm

import (
	"context"
	"math/rand"
	"time"

	"github.com/junyaoz/solace/backend/internal/fault"
)

const (
	defaultBaseDelay = 500 * time.Millisecond
	maxDelay         = 8 * time.Second
)

// Policy retries an operation for transient fault kinds only, with
// exponential backoff and jitter between attempts. Whether to retry is a pure
// function of the fault kind.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// sleep is a test seam; nil means a context-aware timer.
	sleep func(ctx context.Context, d time.Duration) error
}

// Do runs op up to MaxAttempts times. Non-retryable faults, untagged errors
// and context cancellation surface immediately.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}

		f, ok := fault.As(err)
		if !ok || !f.Kind.Retryable() || attempt == attempts {
			return err
		}

		delay := p.backoff(attempt)
		if f.RetryAfter > 0 {
			delay = f.RetryAfter
		}
		if serr := p.wait(ctx, delay); serr != nil {
			return err
		}
	}
	return err
}

func (p Policy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
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

// backoff doubles the base delay per attempt, caps it, and spreads attempts
// out with up to ±25% jitter.
func (p Policy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}

	d := base << (attempt - 1)
	if d > maxDelay || d <= 0 {
		d = maxDelay
	}

	jitter := time.Duration(rand.Int63n(int64(d)/2+1)) - d/4
	return d + jitter
}
