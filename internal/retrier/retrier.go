// Package retrier runs remote calls with a fixed attempt budget and a
// constant delay between attempts.
package retrier

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
)

const (
	DefaultAttempts = 5
	DefaultDelay    = 5 * time.Second
)

// Executor wraps a single fallible call. It is safe for concurrent use.
type Executor struct {
	Attempts int
	Delay    time.Duration
	Clock    clock.Clock
	Logger   *slog.Logger

	// Transient reports whether err is a temporary server condition.
	// It only changes how a failed attempt is logged: every failure
	// is retried until the budget runs out.
	Transient func(error) bool

	// Permanent reports errors that retrying cannot fix, such as rejected
	// credentials. They are returned after the first attempt.
	Permanent func(error) bool
}

func New(attempts int, delay time.Duration, logger *slog.Logger, transient func(error) bool) *Executor {
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		Attempts:  attempts,
		Delay:     delay,
		Clock:     clock.WallClock,
		Logger:    logger,
		Transient: transient,
	}
}

// Do calls fn until it succeeds, fails permanently or the attempt budget is
// spent, and returns the error of the last attempt unchanged.
func (e *Executor) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			lastErr = fn(ctx)
			return lastErr
		},
		IsFatalError: func(err error) bool {
			if isContextErr(err) {
				return true
			}
			if e.Permanent != nil && e.Permanent(err) {
				e.Logger.Error("Operation failed, not retrying", "op", op, "error", err)
				return true
			}
			return false
		},
		NotifyFunc: func(err error, attempt int) {
			e.notify(op, err, attempt)
		},
		Attempts: e.Attempts,
		Delay:    e.Delay,
		Clock:    e.Clock,
		Stop:     ctx.Done(),
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if lastErr != nil {
		return lastErr
	}
	return err
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (e *Executor) notify(op string, err error, attempt int) {
	switch {
	case attempt >= e.Attempts:
		e.Logger.Error("Operation failed",
			"op", op, "attempts", e.Attempts, "error", err)
	case e.Transient != nil && e.Transient(err):
		e.Logger.Info("Attempt failed with transient server error, retrying",
			"op", op, "attempt", attempt, "delay", e.Delay, "error", err)
	default:
		e.Logger.Info("Attempt failed with an exception, retrying",
			"op", op, "attempt", attempt, "delay", e.Delay, "error", err)
	}
}

// Value runs fn through e and returns its result.
func Value[T any](ctx context.Context, e *Executor, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := e.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
