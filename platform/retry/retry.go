// Package retry provides the polling policies that govern the saga's
// interactions with external systems. Each polling loop owns a distinct
// Policy instance; delays grow by a multiplier and are capped, so the
// delay sequence is monotonically non-decreasing.
package retry

import (
	"context"
	"time"
)

// Policy describes a bounded polling loop: how many attempts to make and how
// long to wait between them. A Multiplier of 1 (or 0) yields fixed delays.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// Fixed returns a policy with a constant delay between attempts.
func Fixed(maxAttempts int, delay time.Duration) Policy {
	return Policy{MaxAttempts: maxAttempts, InitialDelay: delay, Multiplier: 1, MaxDelay: delay}
}

// Exponential returns a policy whose delay doubles (or grows by multiplier)
// each attempt, capped at maxDelay.
func Exponential(maxAttempts int, initial time.Duration, multiplier float64, maxDelay time.Duration) Policy {
	return Policy{MaxAttempts: maxAttempts, InitialDelay: initial, Multiplier: multiplier, MaxDelay: maxDelay}
}

// Delay returns the wait before the given attempt (zero-based: the delay
// after attempt 0 is the initial delay). The sequence never decreases and
// never exceeds MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	d := p.InitialDelay
	mult := p.Multiplier
	if mult <= 1 {
		if p.MaxDelay > 0 && d > p.MaxDelay {
			return p.MaxDelay
		}
		return d
	}

	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * mult)
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Wait sleeps for the delay of the given attempt, returning early with the
// context's error if it is cancelled.
func (p Policy) Wait(ctx context.Context, attempt int) error {
	d := p.Delay(attempt)
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
