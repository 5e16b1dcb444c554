package httpclient

import (
	"context"
	"time"
)

// BackoffPolicy returns how long to wait after the failed attempt with the
// given zero-based index before issuing the next one.
type BackoffPolicy func(attempt int) time.Duration

// LinearBackoff waits step, 2*step, 3*step, ... after attempts 0, 1, 2, ...
func LinearBackoff(step time.Duration) BackoffPolicy {
	return func(attempt int) time.Duration {
		return time.Duration(attempt+1) * step
	}
}

// ConstantBackoff always waits d.
func ConstantBackoff(d time.Duration) BackoffPolicy {
	return func(int) time.Duration {
		return d
	}
}

// NoBackoff retries immediately.
func NoBackoff(int) time.Duration {
	return 0
}

// Sleeper waits between attempts. Sleep returns ctx.Err() if ctx ends first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

type timerSleeper struct{}

// TimerSleeper returns the real-time Sleeper used by default.
func TimerSleeper() Sleeper {
	return timerSleeper{}
}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
