package fetch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/flarebyte/crous-sync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTimer records requested sleeps and fires immediately.
type fakeTimer struct {
	sleeps []time.Duration
	ch     chan time.Time
}

func (t *fakeTimer) Start(d time.Duration) {
	t.sleeps = append(t.sleeps, d)
	t.ch = make(chan time.Time, 1)
	t.ch <- time.Now()
}

func (t *fakeTimer) Stop() {}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func newTestFetcher(attempts int, base time.Duration) (*Fetcher, *fakeTimer) {
	ft := &fakeTimer{}
	return &Fetcher{Attempts: attempts, BaseDelay: base, Logger: logging.Discard(), Timer: ft}, ft
}

func TestDoSucceedsOnThirdAttempt(t *testing.T) {
	f, timer := newTestFetcher(3, time.Second)
	var counter Counter
	calls := 0
	got, err := Do(context.Background(), f, &counter, Operation{Kind: ListRegions}, func(ctx context.Context) ([]string, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("503 service unavailable")
		}
		return []string{"Paris"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Paris"}, got)
	assert.Equal(t, int64(3), counter.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, timer.sleeps)
}

func TestDoReturnsImmediatelyOnSuccess(t *testing.T) {
	f, timer := newTestFetcher(3, time.Second)
	var counter Counter
	_, err := Do(context.Background(), f, &counter, Operation{Kind: ListRegions}, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), counter.Load())
	assert.Empty(t, timer.sleeps)
}

func TestDoExhaustionTagsOperationAndAttempts(t *testing.T) {
	f, timer := newTestFetcher(3, 10*time.Millisecond)
	var counter Counter
	last := errors.New("third failure")
	calls := 0
	op := Operation{Kind: ListMenus, RegionID: 4, RestaurantID: 1234}
	_, err := Do(context.Background(), f, &counter, op, func(ctx context.Context) (int, error) {
		calls++
		if calls == 3 {
			return 0, last
		}
		return 0, errors.New("transient")
	})
	require.Error(t, err)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 3, fe.Attempts)
	assert.Equal(t, op.String(), fe.Op)
	assert.ErrorIs(t, err, last)
	assert.True(t, strings.Contains(err.Error(), "region=4,restaurant=1234"))
	assert.Equal(t, int64(3), counter.Load())
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, timer.sleeps)
}

func TestRetrySingleAttemptDoesNotSleep(t *testing.T) {
	f, timer := newTestFetcher(1, time.Second)
	err := f.Retry(context.Background(), "menu.replace", nil, func(ctx context.Context) error {
		return errors.New("nope")
	})
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 1, fe.Attempts)
	assert.Empty(t, timer.sleeps)
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	f, _ := newTestFetcher(5, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := f.Retry(ctx, "list-regions", nil, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("down")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestLinearBackOff(t *testing.T) {
	l := newLinear(time.Second, 4)
	assert.Equal(t, time.Second, l.NextBackOff())
	assert.Equal(t, 2*time.Second, l.NextBackOff())
	assert.Equal(t, 3*time.Second, l.NextBackOff())
	assert.Equal(t, time.Duration(-1), l.NextBackOff())
	l.Reset()
	assert.Equal(t, time.Second, l.NextBackOff())
}

func TestZeroFetcherUsesDefaults(t *testing.T) {
	var f Fetcher
	assert.Equal(t, DefaultAttempts, f.attempts())
	assert.Equal(t, DefaultBaseDelay, f.baseDelay())
	g := Fetcher{Attempts: 2}
	assert.Equal(t, time.Duration(0), g.baseDelay())
}
