package step

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Delays used when a retry policy names no schedule.
const (
	DefaultBackoffInitial = time.Second
	DefaultBackoffMax     = 30 * time.Second
)

// BackoffFactory creates a fresh delay schedule for one step invocation.
type BackoffFactory func() backoff.BackOff

// Exponential returns delays of initial*2^(n-1) for the n-th retry, capped
// at max. A zero max means no cap.
func Exponential(initial, max time.Duration) BackoffFactory {
	return func() backoff.BackOff {
		return &exponential{initial: initial, max: max}
	}
}

// Constant waits the same delay before every retry.
func Constant(d time.Duration) BackoffFactory {
	return func() backoff.BackOff {
		return backoff.NewConstantBackOff(d)
	}
}

// Jittered is an exponential schedule randomized by factor (0 < factor < 1)
// around each delay. A zero max means no cap, as with Exponential.
func Jittered(initial, max time.Duration, factor float64) BackoffFactory {
	if max <= 0 {
		max = time.Duration(math.MaxInt64)
	}
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = max
		b.Multiplier = 2
		b.RandomizationFactor = factor
		b.Reset()
		return b
	}
}

type exponential struct {
	initial time.Duration
	max     time.Duration
	n       int
}

func (e *exponential) NextBackOff() time.Duration {
	d := e.initial
	for i := 0; i < e.n; i++ {
		if e.max > 0 && d >= e.max {
			break
		}
		if d > math.MaxInt64/2 {
			d = math.MaxInt64
			break
		}
		d *= 2
	}
	e.n++
	if e.max > 0 && d > e.max {
		d = e.max
	}
	return d
}

func (e *exponential) Reset() { e.n = 0 }
