// Package fetch wraps upstream calls with bounded retry and linear backoff.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultAttempts  = 3
	DefaultBaseDelay = time.Second
)

// Kind names one upstream endpoint.
type Kind string

const (
	ListRegions     Kind = "list-regions"
	ListRestaurants Kind = "list-restaurants"
	ListMenus       Kind = "list-menus"
)

// Operation identifies a single upstream call for logging and errors.
type Operation struct {
	Kind         Kind
	RegionID     int
	RestaurantID int
}

func (o Operation) String() string {
	switch o.Kind {
	case ListRestaurants:
		return fmt.Sprintf("%s(region=%d)", o.Kind, o.RegionID)
	case ListMenus:
		return fmt.Sprintf("%s(region=%d,restaurant=%d)", o.Kind, o.RegionID, o.RestaurantID)
	}
	return string(o.Kind)
}

// RequestCounter is incremented once per issued upstream call.
type RequestCounter interface {
	AddRequest()
}

// Counter is a goroutine-safe RequestCounter.
type Counter struct {
	n atomic.Int64
}

func (c *Counter) AddRequest() { c.n.Add(1) }

// Load returns the number of requests counted so far.
func (c *Counter) Load() int64 { return c.n.Load() }

// Error reports an operation that failed on every attempt.
type Error struct {
	Op       string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fetcher holds the retry policy. The zero value retries DefaultAttempts
// times with DefaultBaseDelay.
type Fetcher struct {
	Attempts  int
	BaseDelay time.Duration
	Logger    *slog.Logger
	// Timer drives backoff sleeps; nil uses a real timer.
	Timer backoff.Timer
}

// New returns a Fetcher with the given policy.
func New(attempts int, baseDelay time.Duration, logger *slog.Logger) *Fetcher {
	return &Fetcher{Attempts: attempts, BaseDelay: baseDelay, Logger: logger}
}

func (f *Fetcher) attempts() int {
	if f == nil || f.Attempts < 1 {
		return DefaultAttempts
	}
	return f.Attempts
}

func (f *Fetcher) baseDelay() time.Duration {
	switch {
	case f == nil, f.Attempts == 0 && f.BaseDelay == 0:
		return DefaultBaseDelay
	case f.BaseDelay < 0:
		return 0
	}
	return f.BaseDelay
}

func (f *Fetcher) logger() *slog.Logger {
	if f == nil || f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}

func (f *Fetcher) timer() backoff.Timer {
	if f == nil {
		return nil
	}
	return f.Timer
}

// Retry runs fn until it succeeds or the attempts are exhausted, sleeping
// baseDelay × attempt between tries. before is invoked ahead of every attempt.
func (f *Fetcher) Retry(ctx context.Context, label string, before func(), fn func(ctx context.Context) error) error {
	limit := f.attempts()
	log := f.logger()
	attempt := 0
	op := func() error {
		attempt++
		if before != nil {
			before()
		}
		log.Debug("attempt", "op", label, "attempt", attempt, "of", limit)
		return fn(ctx)
	}
	notify := func(err error, next time.Duration) {
		log.Warn("attempt failed", "op", label, "attempt", attempt, "of", limit, "retry_in", next, "err", err)
	}
	b := backoff.WithContext(newLinear(f.baseDelay(), limit), ctx)
	if err := backoff.RetryNotifyWithTimer(op, b, notify, f.timer()); err != nil {
		log.Warn("giving up", "op", label, "attempts", attempt, "err", err)
		return &Error{Op: label, Attempts: attempt, Err: err}
	}
	return nil
}

// Do performs one upstream call through f, counting every issued attempt on counter.
func Do[T any](ctx context.Context, f *Fetcher, counter RequestCounter, op Operation, call func(ctx context.Context) (T, error)) (T, error) {
	var out T
	var before func()
	if counter != nil {
		before = counter.AddRequest
	}
	err := f.Retry(ctx, op.String(), before, func(ctx context.Context) error {
		v, err := call(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
