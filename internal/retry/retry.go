// Package retry implements bounded retries with jittered exponential
// backoff. It is used during process startup only; the sealing request path
// is deliberately retry-free.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ErrInvalidPolicyParam indicates that one or more Backoff parameters are
// invalid (e.g., fall outside accepted intervals).
var ErrInvalidPolicyParam = errors.New("invalid policy param")

// Backoff describes a jittered exponential backoff schedule. Multiple
// goroutines may use a given Backoff instance concurrently.
type Backoff struct {
	// Base is the initial delay between attempts.
	Base time.Duration
	// Growth is the multiplicative growth factor used to increase the delay
	// on successive attempts, and must be greater than or equal to 1.
	Growth float64
	// Jitter is the fractional amplitude of the random jitter applied to the
	// delay each time Do sleeps, and must be in the interval [0, 1].
	Jitter float64
	sleep  func(time.Duration) // overridden in tests
}

func (b *Backoff) validate() error {
	if b.Growth < 1.0 {
		return fmt.Errorf("delay growth factor is less than 1: %w", ErrInvalidPolicyParam)
	}
	if b.Jitter < 0.0 {
		return fmt.Errorf("delay jitter amplitude is negative: %w", ErrInvalidPolicyParam)
	}
	if b.Jitter > 1.0 {
		return fmt.Errorf("delay jitter amplitude is greater than 1: %w", ErrInvalidPolicyParam)
	}
	return nil
}

// scale scales the duration d by f, truncated to integer nanoseconds.
func scale(d time.Duration, f float64) time.Duration {
	return time.Duration(float64(d.Nanoseconds())*f) * time.Nanosecond
}

// Do invokes fn up to n times, sleeping according to the backoff schedule
// between attempts. It returns nil on the first success, the context error
// if ctx is done before the next attempt, or an error wrapping the last
// attempt's failure once the budget is exhausted.
func (b Backoff) Do(ctx context.Context, n int, fn func() error) error {
	if err := b.validate(); err != nil {
		return err
	}
	sleep := b.sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	d := b.Base
	var err error
	for i := 1; i <= n; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < n {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			// Note: Jitter is actually over the interval [1-J, 1+J).
			sleep(scale(d, 1.0+b.Jitter*(2*rand.Float64()-1.0)))
			d = scale(d, b.Growth)
		}
	}
	return fmt.Errorf("exhausted %d attempts, latest error: %w", n, err)
}
