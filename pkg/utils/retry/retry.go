package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrRetry = errors.New("retry")

// Backoff is a (blocking) function returning when to retry.
//
// # Args
//
// - context: context. If context is canceled, Backoff should return ctx.Err().
//
// # Returns
//
// - error: nil if retry, non-nil if not.
type Backoff func(context.Context) error

// StaticBackoff returns a Backoff function that waits for a fixed interval.
var StaticBackoff = func(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1, 0)
}

// LinearBackoff returns a Backoff function whose N-th call (1 origin)
// waits for `interval * N`, or for context to be done.
var LinearBackoff = func(interval time.Duration) Backoff {
	n := 0
	return func(ctx context.Context) error {
		n += 1
		return wait(ctx, time.Duration(int64(interval)*int64(n)))
	}
}

// ExponentialBackoff returns a Backoff function that waits with
// exponential backoff.
//
// # Args
//
// - initialInterval: initial interval.
//
// - r: multiplier of interval.
//
// - cap: upper bound of a single wait. Zero means unbounded.
//
// # Returns
//
// Backoff function.
// For N-th call, it waits for `min(initialInterval * r^N, cap)`
// or context to be done.
var ExponentialBackoff = func(initialInterval time.Duration, r float64, cap time.Duration) Backoff {
	interval := initialInterval
	return func(ctx context.Context) error {
		d := interval
		if 0 < cap && cap < d {
			d = cap
		}
		if err := wait(ctx, d); err != nil {
			return err
		}
		interval = time.Duration(int64(float64(interval) * r))
		return nil
	}
}

func wait(ctx context.Context, interval time.Duration) error {
	timer := time.NewTimer(interval)
	defer func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Blocking calls f until it returns nil or non-retry error.
//
// # Args
//
// - ctx: context
//
// - b: backoff function, called before each attempt
//
// - f: function to be called. If f returns ErrRetry, Blocking calls f
// again after backoff.
//
// # Returns
//
// - T: last return value of f
//
// - error: error returned by f
func Blocking[T any](ctx context.Context, b Backoff, f func() (T, error)) (T, error) {
	last := *new(T)
	for {
		if err := b(ctx); err != nil {
			return last, err
		}

		var err error
		last, err = f()
		if err == nil {
			return last, nil
		}
		if errors.Is(err, ErrRetry) {
			continue
		}
		return last, err
	}
}

type Result[T any] struct {
	Value T
	Err   error
}

type Promise[T any] <-chan Result[T]

func Failed[T any](err error) Promise[T] {
	ch := make(chan Result[T], 1)
	ch <- Result[T]{Err: err}
	close(ch)
	return ch
}

func Ok[T any](value T) Promise[T] {
	ch := make(chan Result[T], 1)
	ch <- Result[T]{Value: value}
	close(ch)
	return ch
}

// Go retries function f in a background goroutine.
//
// # Args
//
// - ctx: context
//
// - b: backoff function
//
// - f: function to be called. If f returns ErrRetry, it calls f again
// after backoff.
//
// # Returns
//
// - Promise[T]: channel to receive the single result.
func Go[T any](ctx context.Context, b Backoff, f func() (T, error)) Promise[T] {
	ch := make(chan Result[T], 1)

	go func() {
		defer close(ch)
		defer func() {
			r := recover()
			var err error
			switch rr := r.(type) {
			case nil:
				return
			case error:
				err = rr
			default:
				err = fmt.Errorf("%+v", rr)
			}

			select {
			case ch <- Result[T]{Err: err}:
			default:
				panic(r)
			}
		}()

		ret, err := Blocking(ctx, b, f)
		ch <- Result[T]{Value: ret, Err: err}
	}()

	return ch
}
