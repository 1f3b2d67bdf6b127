package backoff

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Backoff implements exponential backoff with configurable parameters.
// It is used to pace reconnect attempts of policy watchers.
type Backoff struct {
	clock        clock.Clock
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	currentDelay time.Duration
}

// New creates a new Backoff driven by the wall clock.
// initialDelay is the delay before the first retry.
// maxDelay is the maximum delay between retries.
// multiplier is the factor by which the delay increases after each retry.
func New(initialDelay, maxDelay time.Duration, multiplier float64) *Backoff {
	return NewWithClock(clock.New(), initialDelay, maxDelay, multiplier)
}

// NewWithClock creates a Backoff that waits on the given clock.
func NewWithClock(clk clock.Clock, initialDelay, maxDelay time.Duration, multiplier float64) *Backoff {
	if multiplier < 1 {
		multiplier = 1
	}
	return &Backoff{
		clock:        clk,
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		multiplier:   multiplier,
		currentDelay: initialDelay,
	}
}

// Wait waits for the current backoff duration, respecting context cancellation.
// Returns nil if the wait completed successfully, or ctx.Err() if the context was cancelled.
// After a successful wait, the backoff duration is increased for the next call.
func (b *Backoff) Wait(ctx context.Context) error {
	timer := b.clock.Timer(b.currentDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		b.currentDelay = time.Duration(float64(b.currentDelay) * b.multiplier)
		if b.currentDelay > b.maxDelay {
			b.currentDelay = b.maxDelay
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset resets the backoff to its initial delay, typically after a watch was
// re-established successfully.
func (b *Backoff) Reset() {
	b.currentDelay = b.initialDelay
}

// CurrentDelay returns the current backoff delay.
func (b *Backoff) CurrentDelay() time.Duration {
	return b.currentDelay
}
