// Package async provides functionality for waiting on things that take a
// while to become ready
package async

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Retry retries the given function until it doesn't fail. It doubles the
// period between attempts each time. Cancelling the context stops the
// retrying early.
func Retry(ctx context.Context, attempts int, sleep time.Duration, fn func(ctx context.Context) error) error {
	return retry(ctx, attempts, sleep, 2, fn)
}

// RetryNoBackoff retries the given function until it doesn't fail. It keeps
// the amount of time between attempts constant.
func RetryNoBackoff(ctx context.Context, attempts int, sleep time.Duration, fn func(ctx context.Context) error) error {
	return retry(ctx, attempts, sleep, 1, fn)
}

func retry(ctx context.Context, attempts int, sleep time.Duration, factor time.Duration, fn func(ctx context.Context) error) error {
	start := time.Now()
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrapf(ctx.Err(), "gave up after %d attempts, last error: %v", attempt, err)
		case <-timer.C:
		}
		sleep *= factor
	}
	return errors.Wrapf(err,
		"failed after %d attempts and %s total duration",
		attempts, time.Since(start))
}

// Await attempts the given condition the specified amount of times, doubling
// the amount of time between each attempt. If the condition doesn't succeed,
// it returns an error saying how many times we tried and how much time it
// took altogether.
func Await(ctx context.Context, attempts int, sleep time.Duration, fn func(ctx context.Context) bool, msgs ...string) error {
	errNotYet := errors.New("condition not true yet")
	err := Retry(ctx, attempts, sleep, func(ctx context.Context) error {
		if fn(ctx) {
			return nil
		}
		return errNotYet
	})
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf("condition was not true after %d attempts", attempts)
	if len(msgs) != 0 {
		msg += ": " + strings.Join(msgs, " ")
	}
	return errors.Wrap(err, msg)
}
