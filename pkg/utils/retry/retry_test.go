package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opsline/trainyard/pkg/utils/retry"
)

func immediately(context.Context) error { return nil }

func TestBlocking(t *testing.T) {
	t.Run("it retries until f stops returning ErrRetry", func(t *testing.T) {
		ctx := context.Background()

		calls := 0
		got, err := retry.Blocking(ctx, immediately, func() (int, error) {
			calls += 1
			if calls < 3 {
				return 0, retry.ErrRetry
			}
			return 42, nil
		})

		if err != nil {
			t.Fatal(err)
		}
		if got != 42 || calls != 3 {
			t.Errorf("unexpected result: got=%d calls=%d", got, calls)
		}
	})

	t.Run("it stops on non-retry error", func(t *testing.T) {
		ctx := context.Background()
		fatal := errors.New("fatal")

		calls := 0
		_, err := retry.Blocking(ctx, immediately, func() (int, error) {
			calls += 1
			return 0, fatal
		})

		if !errors.Is(err, fatal) {
			t.Errorf("unexpected error: %v", err)
		}
		if calls != 1 {
			t.Errorf("f called %d times, expected once", calls)
		}
	})

	t.Run("it stops when context is canceled during backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := retry.Blocking(
			ctx, retry.StaticBackoff(time.Hour),
			func() (int, error) { return 0, retry.ErrRetry },
		)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestBackoff(t *testing.T) {
	t.Run("ExponentialBackoff doubles intervals up to cap", func(t *testing.T) {
		ctx := context.Background()
		b := retry.ExponentialBackoff(time.Millisecond, 2, 4*time.Millisecond)

		// waits should be 1ms, 2ms, 4ms, 4ms, 4ms (capped)
		start := time.Now()
		for i := 0; i < 5; i++ {
			if err := b(ctx); err != nil {
				t.Fatal(err)
			}
		}
		elapsed := time.Since(start)

		if elapsed < 15*time.Millisecond {
			t.Errorf("backoff waited too little: %s", elapsed)
		}
		if 150*time.Millisecond < elapsed {
			t.Errorf("backoff waited too long: %s", elapsed)
		}
	})

	t.Run("LinearBackoff grows by one interval per call", func(t *testing.T) {
		ctx := context.Background()
		b := retry.LinearBackoff(time.Millisecond)

		start := time.Now()
		for i := 0; i < 3; i++ { // 1ms + 2ms + 3ms
			if err := b(ctx); err != nil {
				t.Fatal(err)
			}
		}
		elapsed := time.Since(start)

		if elapsed < 6*time.Millisecond {
			t.Errorf("backoff waited too little: %s", elapsed)
		}
	})
}

func TestGo(t *testing.T) {
	t.Run("it delivers the result over the promise", func(t *testing.T) {
		ctx := context.Background()

		p := retry.Go(ctx, immediately, func() (string, error) {
			return "done", nil
		})

		r := <-p
		if r.Err != nil {
			t.Fatal(r.Err)
		}
		if r.Value != "done" {
			t.Errorf("unexpected value: %s", r.Value)
		}
	})

	t.Run("Failed and Ok build resolved promises", func(t *testing.T) {
		oops := errors.New("oops")

		if r := <-retry.Failed[int](oops); !errors.Is(r.Err, oops) {
			t.Errorf("unexpected error: %v", r.Err)
		}
		if r := <-retry.Ok(7); r.Err != nil || r.Value != 7 {
			t.Errorf("unexpected result: %+v", r)
		}
	})
}
