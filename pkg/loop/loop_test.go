package loop_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opsline/trainyard/pkg/loop"
	"github.com/opsline/trainyard/pkg/utils/try"
)

func TestStart(t *testing.T) {
	t.Run("it repeats tasks until the task breaks", func(t *testing.T) {
		ctx := context.Background()

		actual := try.To(loop.Start(
			ctx, 0, func(_ context.Context, v int) (int, loop.Next) {
				v += 1
				if 10 <= v {
					return v, loop.Break(nil)
				}
				return v, loop.Continue(0)
			},
		)).OrFatal(t)

		if actual != 10 {
			t.Errorf("task ran wrong number of cycles: %d (expected 10)", actual)
		}
	})

	t.Run("it breaks with the error passed to Break", func(t *testing.T) {
		ctx := context.Background()
		expectedErr := errors.New("fake error")

		value, err := loop.Start(
			ctx, 0, func(_ context.Context, v int) (int, loop.Next) {
				if 3 <= v {
					return v, loop.Break(expectedErr)
				}
				return v + 1, loop.Continue(0)
			},
		)

		if !errors.Is(err, expectedErr) {
			t.Errorf("unexpected error: %v", err)
		}
		if value != 3 {
			t.Errorf("unexpected last value: %d", value)
		}
	})

	t.Run("it breaks with ctx.Err() when context is canceled between cycles", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		_, err := loop.Start(
			ctx, 0, func(_ context.Context, v int) (int, loop.Next) {
				cancel()
				return v + 1, loop.Continue(time.Hour)
			},
		)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got: %v", err)
		}
	})

	t.Run("it passes deadlined context when WithTimeout is passed", func(t *testing.T) {
		ctx := context.Background()
		timeout := 100 * time.Millisecond

		try.To(loop.Start(
			ctx, 1, func(ctx context.Context, v int) (int, loop.Next) {
				now := time.Now()

				if deadline, ok := ctx.Deadline(); !ok {
					t.Errorf("deadline is not set")
				} else if !(deadline.Sub(now) <= timeout) {
					t.Errorf(
						"unexpected deadline\n===actual===\n%s\n===expected===\n(near) %s",
						deadline, now.Add(timeout),
					)
				}

				if 3 <= v {
					return v + 1, loop.Break(nil)
				}
				return v + 1, loop.Continue(0)
			},
			loop.WithTimeout(timeout),
		)).OrFatal(t)
	})

	t.Run("when context has been done before starting, it does nothing", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		_, err := loop.Start(
			ctx, 0, func(_ context.Context, v int) (int, loop.Next) {
				called = true
				return v, loop.Break(nil)
			},
		)

		if called {
			t.Error("task is called with done context")
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got: %v", err)
		}
	})
}
