package retrier

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

var (
	errUnavailable = errors.New("503 service unavailable")
	errBroken      = errors.New("connection reset")
)

func isUnavailable(err error) bool {
	return errors.Is(err, errUnavailable)
}

func newTestExecutor(attempts int) (*Executor, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return New(attempts, time.Millisecond, logger, isUnavailable), &buf
}

// failing returns an operation that fails with errs in order and then succeeds.
func failing(calls *int, errs ...error) func(context.Context) error {
	return func(context.Context) error {
		*calls++
		if *calls <= len(errs) {
			return errs[*calls-1]
		}
		return nil
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	tests := []struct {
		name     string
		failures int
	}{
		{"No failures", 0},
		{"One failure", 1},
		{"Budget minus one", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestExecutor(5)
			errs := make([]error, tt.failures)
			for i := range errs {
				errs[i] = errUnavailable
			}

			calls := 0
			if err := e.Do(context.Background(), "op", failing(&calls, errs...)); err != nil {
				t.Fatalf("Do() error = %v", err)
			}
			if calls != tt.failures+1 {
				t.Errorf("Do() made %d attempts, want %d", calls, tt.failures+1)
			}
		})
	}
}

func TestDoPropagatesAfterBudget(t *testing.T) {
	e, logs := newTestExecutor(5)

	calls := 0
	err := e.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return errUnavailable
	})
	if !errors.Is(err, errUnavailable) {
		t.Fatalf("Do() error = %v, want %v", err, errUnavailable)
	}
	if calls != 5 {
		t.Errorf("Do() made %d attempts, want 5", calls)
	}
	if got := strings.Count(logs.String(), "transient server error"); got != 4 {
		t.Errorf("logged %d transient retries, want 4", got)
	}
	if !strings.Contains(logs.String(), "Operation failed") {
		t.Errorf("final failure not logged: %s", logs.String())
	}
}

func TestDoNonTransientMidBudget(t *testing.T) {
	e, logs := newTestExecutor(3)

	calls := 0
	if err := e.Do(context.Background(), "op", failing(&calls, errBroken)); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("Do() made %d attempts, want 2", calls)
	}
	if !strings.Contains(logs.String(), "failed with an exception") {
		t.Errorf("retry of non-transient error not logged: %s", logs.String())
	}
	if !strings.Contains(logs.String(), "attempt=1") {
		t.Errorf("attempt number not logged: %s", logs.String())
	}
}

func TestDoNonTransientOnFinalAttempt(t *testing.T) {
	e, _ := newTestExecutor(3)

	calls := 0
	err := e.Do(context.Background(), "op", failing(&calls, errUnavailable, errUnavailable, errBroken))
	if !errors.Is(err, errBroken) {
		t.Fatalf("Do() error = %v, want %v", err, errBroken)
	}
	if calls != 3 {
		t.Errorf("Do() made %d attempts, want 3", calls)
	}
}

func TestDoSingleAttempt(t *testing.T) {
	e, _ := newTestExecutor(1)

	calls := 0
	err := e.Do(context.Background(), "op", failing(&calls, errBroken))
	if !errors.Is(err, errBroken) {
		t.Fatalf("Do() error = %v, want %v", err, errBroken)
	}
	if calls != 1 {
		t.Errorf("Do() made %d attempts, want 1", calls)
	}
}

func TestDoStopsOnCancel(t *testing.T) {
	e, _ := newTestExecutor(5)
	e.Delay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- e.Do(ctx, "op", func(context.Context) error {
			calls++
			return errUnavailable
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Do() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do() did not return after cancel")
	}
	if calls != 1 {
		t.Errorf("Do() made %d attempts, want 1", calls)
	}
}

func TestValue(t *testing.T) {
	e, _ := newTestExecutor(3)

	calls := 0
	got, err := Value(context.Background(), e, "op", func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errUnavailable
		}
		return "payload", nil
	})
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if got != "payload" {
		t.Errorf("Value() = %q, want payload", got)
	}
}

func TestNewDefaults(t *testing.T) {
	e := New(0, 0, nil, nil)
	if e.Attempts != DefaultAttempts {
		t.Errorf("Attempts = %d, want %d", e.Attempts, DefaultAttempts)
	}
	if e.Delay != DefaultDelay {
		t.Errorf("Delay = %s, want %s", e.Delay, DefaultDelay)
	}
	if e.Logger == nil || e.Clock == nil {
		t.Errorf("New() left Logger or Clock nil")
	}
}

func TestDoPermanentError(t *testing.T) {
	e, logs := newTestExecutor(5)
	errDenied := errors.New("invalid client secret")
	e.Permanent = func(err error) bool { return errors.Is(err, errDenied) }

	calls := 0
	err := e.Do(context.Background(), "authenticate", failing(&calls, errUnavailable, errDenied))
	if !errors.Is(err, errDenied) {
		t.Fatalf("Do() error = %v, want %v", err, errDenied)
	}
	if calls != 2 {
		t.Errorf("Do() made %d attempts, want 2", calls)
	}
	if !strings.Contains(logs.String(), "not retrying") {
		t.Errorf("permanent failure not logged: %s", logs.String())
	}
}
