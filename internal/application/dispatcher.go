// Package application contains use-case orchestration built on the API client.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ericfisherdev/gosheets/internal/domain/model"
	"github.com/ericfisherdev/gosheets/internal/domain/port/driven"
)

// DefaultRetryWait is the pause between attempts of a rate-limited request.
const DefaultRetryWait = time.Second

// Compile-time interface satisfaction check.
var _ driven.Requester = (*RetryingDispatcher)(nil)

// Sleeper blocks for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// RetryingDispatcher wraps a Requester and transparently retries requests that
// the API rejected with a too-many-requests error body. Every other outcome is
// returned to the caller untouched.
type RetryingDispatcher struct {
	next       driven.Requester
	newBackOff func() backoff.BackOff
	maxRetries uint64
	sleep      Sleeper
	logger     *slog.Logger
}

// DispatcherOption configures a RetryingDispatcher.
type DispatcherOption func(*RetryingDispatcher)

// WithFixedWait waits d between attempts.
func WithFixedWait(d time.Duration) DispatcherOption {
	return func(r *RetryingDispatcher) {
		r.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(d) }
	}
}

// WithExponentialBackoff grows the wait from initial up to maxWait with jitter.
// It never gives up on its own; use WithMaxRetries to bound the loop.
func WithExponentialBackoff(initial, maxWait time.Duration) DispatcherOption {
	return func(r *RetryingDispatcher) {
		r.newBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			b.MaxInterval = maxWait
			b.MaxElapsedTime = 0
			b.Reset()
			return b
		}
	}
}

// WithMaxRetries gives up after n retries of the same request. Zero means
// retry for as long as the API keeps answering with a rate-limit error.
func WithMaxRetries(n uint64) DispatcherOption {
	return func(r *RetryingDispatcher) { r.maxRetries = n }
}

// WithSleeper replaces the function used to wait between attempts.
func WithSleeper(s Sleeper) DispatcherOption {
	return func(r *RetryingDispatcher) { r.sleep = s }
}

// WithDispatcherLogger sets the logger used to report retries.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(r *RetryingDispatcher) { r.logger = l }
}

// NewRetryingDispatcher wraps next. Without options it waits DefaultRetryWait
// between attempts and retries without limit.
func NewRetryingDispatcher(next driven.Requester, opts ...DispatcherOption) *RetryingDispatcher {
	r := &RetryingDispatcher{
		next:   next,
		sleep:  sleepContext,
		logger: slog.Default(),
	}
	WithFixedWait(DefaultRetryWait)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Request sends req through the wrapped Requester. A response or an error that
// is not a rate-limit error is returned exactly as received. A rate-limit error
// triggers a wait and an identical retry.
func (r *RetryingDispatcher) Request(ctx context.Context, req model.Request) (*model.Response, error) {
	b := r.newBackOff()
	if r.maxRetries > 0 {
		b = backoff.WithMaxRetries(b, r.maxRetries)
	}
	b.Reset()

	for attempt := 1; ; attempt++ {
		resp, err := r.next.Request(ctx, req)
		if err == nil || !isRateLimited(err) {
			return resp, err
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return nil, fmt.Errorf("%w after %d attempts: %w", model.ErrRetriesExhausted, attempt, err)
		}

		r.logger.Warn("rate limited, retrying",
			"method", req.Method,
			"path", req.Path,
			"attempt", attempt,
			"wait", wait,
		)

		if err := r.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("waiting to retry %s %s: %w", req.Method, req.Path, err)
		}
	}
}

// Middleware returns a function that wraps any Requester in a dispatcher
// configured with opts.
func Middleware(opts ...DispatcherOption) func(driven.Requester) driven.Requester {
	return func(next driven.Requester) driven.Requester {
		return NewRetryingDispatcher(next, opts...)
	}
}

func isRateLimited(err error) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.RateLimited()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
