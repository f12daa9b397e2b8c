package application_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/gosheets/internal/application"
	"github.com/ericfisherdev/gosheets/internal/domain/model"
)

// --- Test doubles ---

// scriptedRequester returns its outcomes in order and records every call.
type scriptedRequester struct {
	outcomes []outcome
	calls    []model.Request
}

type outcome struct {
	resp *model.Response
	err  error
}

func (s *scriptedRequester) Request(_ context.Context, req model.Request) (*model.Response, error) {
	i := len(s.calls)
	s.calls = append(s.calls, req)
	if i >= len(s.outcomes) {
		i = len(s.outcomes) - 1
	}
	return s.outcomes[i].resp, s.outcomes[i].err
}

// recordingSleeper records requested waits without sleeping.
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
	return nil
}

func ok(body string) outcome {
	return outcome{resp: &model.Response{StatusCode: http.StatusOK, Body: []byte(body)}}
}

func apiErr(status int, body string) outcome {
	return outcome{err: model.NewAPIError(status, []byte(body))}
}

var getSpreadsheet = model.Request{Method: http.MethodGet, Path: "spreadsheets/abc"}

// --- Tests ---

func TestRetryingDispatcher_SuccessFirstAttempt(t *testing.T) {
	want := ok(`{"status":"ok"}`)
	next := &scriptedRequester{outcomes: []outcome{want}}
	sleeper := &recordingSleeper{}

	d := application.NewRetryingDispatcher(next, application.WithSleeper(sleeper.Sleep))
	resp, err := d.Request(context.Background(), getSpreadsheet)

	require.NoError(t, err)
	assert.Same(t, want.resp, resp)
	assert.Len(t, next.calls, 1)
	assert.Empty(t, sleeper.waits)
}

func TestRetryingDispatcher_RateLimitedOnceThenSuccess(t *testing.T) {
	want := ok(`{"status":"ok"}`)
	next := &scriptedRequester{outcomes: []outcome{
		apiErr(http.StatusTooManyRequests, `{"error":{"code":429}}`),
		want,
	}}
	sleeper := &recordingSleeper{}

	d := application.NewRetryingDispatcher(next, application.WithSleeper(sleeper.Sleep))
	resp, err := d.Request(context.Background(), getSpreadsheet)

	require.NoError(t, err)
	assert.Same(t, want.resp, resp)
	assert.Equal(t, []time.Duration{application.DefaultRetryWait}, sleeper.waits)
	require.Len(t, next.calls, 2)
	assert.Equal(t, next.calls[0], next.calls[1], "retry must reuse identical arguments")
}

func TestRetryingDispatcher_NonRateLimitErrorReturnedUnchanged(t *testing.T) {
	forbidden := apiErr(http.StatusForbidden, `{"error":{"code":403}}`)
	next := &scriptedRequester{outcomes: []outcome{forbidden}}
	sleeper := &recordingSleeper{}

	d := application.NewRetryingDispatcher(next, application.WithSleeper(sleeper.Sleep))
	resp, err := d.Request(context.Background(), getSpreadsheet)

	assert.Nil(t, resp)
	assert.Same(t, forbidden.err, err)
	assert.Len(t, next.calls, 1)
	assert.Empty(t, sleeper.waits)
}

func TestRetryingDispatcher_PlainErrorReturnedUnchanged(t *testing.T) {
	boom := errors.New("connection reset")
	next := &scriptedRequester{outcomes: []outcome{{err: boom}}}
	sleeper := &recordingSleeper{}

	d := application.NewRetryingDispatcher(next, application.WithSleeper(sleeper.Sleep))
	_, err := d.Request(context.Background(), getSpreadsheet)

	assert.Same(t, boom, err)
	assert.Empty(t, sleeper.waits)
}

func TestRetryingDispatcher_HTTP429WithoutBodyCodeNotRetried(t *testing.T) {
	// Only the code in the structured body decides; the HTTP status alone does not.
	next := &scriptedRequester{outcomes: []outcome{apiErr(http.StatusTooManyRequests, `Too Many Requests`)}}
	sleeper := &recordingSleeper{}

	d := application.NewRetryingDispatcher(next, application.WithSleeper(sleeper.Sleep))
	_, err := d.Request(context.Background(), getSpreadsheet)

	var e *model.APIError
	require.ErrorAs(t, err, &e)
	assert.Len(t, next.calls, 1)
	assert.Empty(t, sleeper.waits)
}

func TestRetryingDispatcher_NWaitsForNRateLimits(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		outcomes := make([]outcome, 0, n+1)
		for range n {
			outcomes = append(outcomes, apiErr(http.StatusTooManyRequests, `{"error":{"code":429}}`))
		}
		outcomes = append(outcomes, ok(`{"status":"ok"}`))

		next := &scriptedRequester{outcomes: outcomes}
		sleeper := &recordingSleeper{}

		d := application.NewRetryingDispatcher(next, application.WithSleeper(sleeper.Sleep))
		_, err := d.Request(context.Background(), getSpreadsheet)

		require.NoError(t, err)
		assert.Len(t, sleeper.waits, n)
		for _, w := range sleeper.waits {
			assert.Equal(t, time.Second, w)
		}
		assert.Len(t, next.calls, n+1)
	}
}

func TestRetryingDispatcher_FixedWaitOverride(t *testing.T) {
	next := &scriptedRequester{outcomes: []outcome{
		apiErr(http.StatusTooManyRequests, `{"error":{"code":429}}`),
		ok(`{}`),
	}}
	sleeper := &recordingSleeper{}

	d := application.NewRetryingDispatcher(next,
		application.WithSleeper(sleeper.Sleep),
		application.WithFixedWait(250*time.Millisecond),
	)
	_, err := d.Request(context.Background(), getSpreadsheet)

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, sleeper.waits)
}

func TestRetryingDispatcher_MaxRetriesExhausted(t *testing.T) {
	next := &scriptedRequester{outcomes: []outcome{apiErr(http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota"}}`)}}
	sleeper := &recordingSleeper{}

	d := application.NewRetryingDispatcher(next,
		application.WithSleeper(sleeper.Sleep),
		application.WithMaxRetries(3),
	)
	_, err := d.Request(context.Background(), getSpreadsheet)

	require.ErrorIs(t, err, model.ErrRetriesExhausted)
	var e *model.APIError
	require.ErrorAs(t, err, &e)
	assert.True(t, e.RateLimited())
	assert.Len(t, next.calls, 4)
	assert.Len(t, sleeper.waits, 3)
}

func TestRetryingDispatcher_MaxRetriesResetPerRequest(t *testing.T) {
	next := &scriptedRequester{outcomes: []outcome{
		apiErr(http.StatusTooManyRequests, `{"error":{"code":429}}`),
		ok(`{}`),
	}}
	sleeper := &recordingSleeper{}

	d := application.NewRetryingDispatcher(next,
		application.WithSleeper(sleeper.Sleep),
		application.WithMaxRetries(1),
	)

	_, err := d.Request(context.Background(), getSpreadsheet)
	require.NoError(t, err)

	next.calls = nil
	_, err = d.Request(context.Background(), getSpreadsheet)
	require.NoError(t, err)
}

func TestRetryingDispatcher_CancelledDuringWait(t *testing.T) {
	next := &scriptedRequester{outcomes: []outcome{apiErr(http.StatusTooManyRequests, `{"error":{"code":429}}`)}}
	ctx, cancel := context.WithCancel(context.Background())

	d := application.NewRetryingDispatcher(next, application.WithSleeper(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))
	_, err := d.Request(ctx, getSpreadsheet)

	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, next.calls, 1)
}

func TestRetryingDispatcher_DefaultSleeperHonoursContext(t *testing.T) {
	next := &scriptedRequester{outcomes: []outcome{apiErr(http.StatusTooManyRequests, `{"error":{"code":429}}`)}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	d := application.NewRetryingDispatcher(next, application.WithFixedWait(time.Hour))

	start := time.Now()
	_, err := d.Request(ctx, getSpreadsheet)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRetryingDispatcher_ExponentialBackoffBounds(t *testing.T) {
	outcomes := make([]outcome, 0, 7)
	for range 6 {
		outcomes = append(outcomes, apiErr(http.StatusTooManyRequests, `{"error":{"code":429}}`))
	}
	outcomes = append(outcomes, ok(`{}`))
	next := &scriptedRequester{outcomes: outcomes}
	sleeper := &recordingSleeper{}

	initial, maxWait := 100*time.Millisecond, 400*time.Millisecond
	d := application.NewRetryingDispatcher(next,
		application.WithSleeper(sleeper.Sleep),
		application.WithExponentialBackoff(initial, maxWait),
	)
	_, err := d.Request(context.Background(), getSpreadsheet)

	require.NoError(t, err)
	require.Len(t, sleeper.waits, 6)
	for _, w := range sleeper.waits {
		assert.Positive(t, w)
		// Jitter spreads each wait by at most half the interval.
		assert.LessOrEqual(t, w, maxWait+maxWait/2)
	}
}

func TestMiddleware_WrapsRequester(t *testing.T) {
	next := &scriptedRequester{outcomes: []outcome{
		apiErr(http.StatusTooManyRequests, `{"error":{"code":429}}`),
		ok(`{}`),
	}}
	sleeper := &recordingSleeper{}

	wrapped := application.Middleware(application.WithSleeper(sleeper.Sleep))(next)
	_, err := wrapped.Request(context.Background(), getSpreadsheet)

	require.NoError(t, err)
	assert.Len(t, sleeper.waits, 1)
}
