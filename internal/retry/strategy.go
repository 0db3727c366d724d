package retry

import (
	"math"
	"time"
)

// DelayStrategy determines how long to wait after a failed attempt before
// the next one.
type DelayStrategy interface {
	// NextDelay returns the delay to introduce before the next attempt,
	// given the total number of failed attempts performed so far.
	NextDelay(attempts int) time.Duration
}

// StopStrategy determines for how long a retried call should keep going.
// It is consulted only after a failed attempt.
type StopStrategy interface {
	// ShouldContinue reports whether another attempt is warranted given the
	// number of failed attempts so far and the time elapsed since the first.
	ShouldContinue(attempts int, elapsed time.Duration) bool
}

// ErrorStrategy decides which errors raised by an attempt are suppressed
// (keep retrying) and which end the retrying by propagating.
type ErrorStrategy interface {
	ShouldSuppress(err error) bool
}

type fixedDelay struct {
	delay time.Duration
}

func (s fixedDelay) NextDelay(int) time.Duration { return s.delay }

// FixedDelay returns a DelayStrategy that produces the same delay between
// every attempt.
func FixedDelay(d time.Duration) DelayStrategy { return fixedDelay{delay: d} }

// NoDelay returns a DelayStrategy that doesn't introduce any delay between
// attempts.
func NoDelay() DelayStrategy { return fixedDelay{} }

type exponentialBackoff struct {
	initial time.Duration
}

func (s exponentialBackoff) NextDelay(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	return time.Duration(float64(s.initial) * math.Pow(2, float64(attempts-1)))
}

// ExponentialBackoff returns a DelayStrategy that doubles the delay with
// every attempt: initial, 2*initial, 4*initial, and so on. There is no cap
// and no jitter.
func ExponentialBackoff(initial time.Duration) DelayStrategy {
	return exponentialBackoff{initial: initial}
}

type neverStop struct{}

func (neverStop) ShouldContinue(int, time.Duration) bool { return true }

// NeverStop returns a StopStrategy that never gives up. The caller is
// responsible for bounding the runtime externally.
func NeverStop() StopStrategy { return neverStop{} }

type maxRetries struct {
	max int
}

func (s maxRetries) ShouldContinue(attempts int, _ time.Duration) bool {
	return attempts <= s.max
}

// MaxRetries returns a StopStrategy that gives up after a certain number of
// retries. The total number of attempts made is max+1: the original attempt
// plus max retries. MaxRetries(0) permits exactly one attempt.
func MaxRetries(max int) StopStrategy { return maxRetries{max: max} }

type suppressAll struct{}

func (suppressAll) ShouldSuppress(error) bool { return true }

// SuppressAll returns an ErrorStrategy that suppresses every error raised by
// an attempt. Note that a nil ErrorStrategy on a Policy means the opposite:
// suppress nothing, propagate the first error immediately.
func SuppressAll() ErrorStrategy { return suppressAll{} }
