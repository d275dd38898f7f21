package deployment

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/codekiln/langstar/internal/controlplane"
)

// retrier retries transient control plane failures a bounded number of times.
type retrier struct {
	retries  int
	delay    time.Duration
	observer Observer
	logger   zerolog.Logger
}

// RetryOption customises how the resolver, cache and URL resolver retry
// transient failures.
type RetryOption func(*retrier)

// WithRetries sets how many times a failed read is retried and how long to
// wait between attempts.
func WithRetries(retries int, delay time.Duration) RetryOption {
	return func(r *retrier) {
		if retries >= 0 {
			r.retries = retries
		}
		if delay >= 0 {
			r.delay = delay
		}
	}
}

// WithRetryLogger sets the logger that records retried failures.
func WithRetryLogger(logger zerolog.Logger) RetryOption {
	return func(r *retrier) {
		r.logger = logger
	}
}

func newRetrier(opts ...RetryOption) retrier {
	r := retrier{
		retries:  DefaultTransientRetries,
		delay:    DefaultRetryDelay,
		observer: nopObserver{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// retryBounds decides what a retry loop returns when it runs out of time or
// is cancelled. A zero until means no deadline.
type retryBounds interface {
	until() time.Time
	timeout() error
	cancelled(err error) error
}

// callBounds limits a single read by its context only.
type callBounds struct{}

func (callBounds) until() time.Time          { return time.Time{} }
func (callBounds) timeout() error            { return context.DeadlineExceeded }
func (callBounds) cancelled(err error) error { return err }

// retry calls fn, retrying transient failures up to r.retries times. Other
// failures are returned at once, wrapped with op. An exhausted budget becomes
// a TransientNetworkError.
func retry[T any](ctx context.Context, r retrier, b retryBounds, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	attempts := r.retries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, b.cancelled(ctxErr)
		}
		if !controlplane.IsTransient(err) {
			return zero, fmt.Errorf("%s: %w", op, err)
		}

		lastErr = err
		r.observer.ObserveTransientError()
		r.logger.Warn().Err(err).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msgf("%s failed, retrying", op)

		if attempt == attempts {
			break
		}
		if until := b.until(); !until.IsZero() && time.Now().Add(r.delay).After(until) {
			return zero, b.timeout()
		}
		if err := sleep(ctx, r.delay); err != nil {
			return zero, b.cancelled(err)
		}
	}

	return zero, &TransientNetworkError{Op: op, Attempts: attempts, Err: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
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
