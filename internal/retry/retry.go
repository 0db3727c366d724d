// Package retry repeatedly invokes unreliable operations until they yield a
// satisfactory result, a stop strategy decides enough attempts have been
// made, or an unsuppressed error ends the retrying.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// GaveUpError is returned by Policy.Call when the stop strategy decides no
// further attempts are to be made. It signals that the policy gave up, not
// that the last concrete failure was fatal by nature.
type GaveUpError struct {
	// Op names the operation that was retried.
	Op string
	// Attempts is the total number of failed attempts made.
	Attempts int
	// Last is the error observed on the most recent attempt, if any. A nil
	// Last means the last attempt returned an unsatisfactory result rather
	// than an error.
	Last error
}

func (e *GaveUpError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("%s: gave up after %d failed attempt(s): %v", e.Op, e.Attempts, e.Last)
	}
	return fmt.Sprintf("%s: gave up after %d failed attempt(s)", e.Op, e.Attempts)
}

func (e *GaveUpError) Unwrap() error { return e.Last }

// Policy bundles the strategies that govern one kind of retried operation.
// A Policy is a value: it holds no state between calls, so one Policy can be
// reused across many concurrent Call invocations. Each Call owns its own
// attempt counter and start time.
//
// The zero value retries indefinitely with no delay, accepts any non-error
// result, and propagates the first error.
type Policy[T any] struct {
	// Accept decides whether a returned value counts as success. A nil
	// Accept treats any non-error return as success. A rejected value is a
	// failed attempt, not an error.
	Accept func(T) bool

	// Delay determines the wait between attempts. Nil means no delay.
	Delay DelayStrategy

	// Stop determines when to give up. Nil means never.
	Stop StopStrategy

	// Errors decides which attempt errors are suppressed. Nil is a distinct
	// sentinel meaning "suppress nothing": any error propagates immediately,
	// bypassing the stop strategy.
	Errors ErrorStrategy

	// OnRetry, if set, is invoked before each between-attempt delay with the
	// number of failed attempts so far and the upcoming delay.
	OnRetry func(op string, attempts int, delay time.Duration)

	// Log receives per-attempt debug events. Nil discards them.
	Log *slog.Logger
}

// Call invokes op repeatedly until (1) it returns a value satisfying Accept,
// (2) the stop strategy gives up, yielding a *GaveUpError, or (3) op returns
// an error the error strategy does not suppress, which is returned as-is.
// The between-attempt wait honors ctx cancellation; an attempt already in
// flight is never interrupted by the policy itself.
func (p Policy[T]) Call(ctx context.Context, op string, fn func(context.Context) (T, error)) (T, error) {
	log := p.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	var zero T
	start := time.Now()
	attempts := 0
	for {
		attempts++
		log.Debug("attempting call", "op", op, "attempt", attempts)

		result, err := fn(ctx)
		if err == nil {
			if p.Accept == nil || p.Accept(result) {
				log.Debug("call succeeded", "op", op, "attempts", attempts)
				return result, nil
			}
			log.Debug("call returned unsatisfactory result", "op", op, "attempt", attempts)
			err = nil
		} else {
			if p.Errors == nil || !p.Errors.ShouldSuppress(err) {
				return zero, err
			}
			log.Debug("call failed, error suppressed", "op", op, "attempt", attempts, "error", err)
		}

		if p.Stop != nil && !p.Stop.ShouldContinue(attempts, time.Since(start)) {
			return zero, &GaveUpError{Op: op, Attempts: attempts, Last: err}
		}

		var delay time.Duration
		if p.Delay != nil {
			delay = p.Delay.NextDelay(attempts)
		}
		if p.OnRetry != nil {
			p.OnRetry(op, attempts, delay)
		}
		if delay > 0 {
			log.Debug("waiting before next attempt", "op", op, "delay", delay)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		} else if err := ctx.Err(); err != nil {
			return zero, err
		}
	}
}
