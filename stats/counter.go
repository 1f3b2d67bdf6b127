package stats

import (
	"math"
	"sync/atomic"
)

// minSnapshotSamples is the number of successes a snapshot window needs before its
// average replaces the cached one.
const minSnapshotSamples = 10

// Counter tracks request outcomes for one endpoint and request key.
// All elapsed values are in milliseconds. Every method is lock-free.
type Counter struct {
	active              atomic.Int64
	total               atomic.Int64
	failed              atomic.Int64
	totalElapsed        atomic.Int64
	failedElapsed       atomic.Int64
	maxElapsed          atomic.Int64
	failedMaxElapsed    atomic.Int64
	succeededMaxElapsed atomic.Int64

	snapshot atomic.Pointer[CounterSnapshot]
}

// NewCounter creates a counter with an empty baseline snapshot.
func NewCounter() *Counter {
	c := &Counter{}
	c.snapshot.Store(&CounterSnapshot{counter: c})
	return c
}

// Begin admits a new in-flight request if doing so keeps the active count within
// max. A max <= 0 means unbounded. Returns false when the request is not admitted.
func (c *Counter) Begin(max int64) bool {
	for {
		cur := c.active.Load()
		if cur == math.MaxInt64 {
			return false
		}
		next := cur + 1
		if max > 0 && next > max {
			return false
		}
		if c.active.CompareAndSwap(cur, next) {
			return true
		}
	}
}

// End records the completion of a request admitted by Begin.
func (c *Counter) End(elapsed int64, succeeded bool) {
	c.active.Add(-1)
	// total is bumped before failed and read after it, so Succeeded never goes negative.
	c.total.Add(1)
	c.totalElapsed.Add(elapsed)
	updateMax(&c.maxElapsed, elapsed)
	if succeeded {
		updateMax(&c.succeededMaxElapsed, elapsed)
		return
	}
	c.failed.Add(1)
	c.failedElapsed.Add(elapsed)
	updateMax(&c.failedMaxElapsed, elapsed)
}

// Success is End(elapsed, true).
func (c *Counter) Success(elapsed int64) {
	c.End(elapsed, true)
}

// Fail is End(elapsed, false).
func (c *Counter) Fail(elapsed int64) {
	c.End(elapsed, false)
}

// updateMax stores value into v if it is larger than the current value.
func updateMax(v *atomic.Int64, value int64) {
	for {
		cur := v.Load()
		if value <= cur {
			return
		}
		if v.CompareAndSwap(cur, value) {
			return
		}
	}
}

// Active returns the number of in-flight requests
func (c *Counter) Active() int64 { return c.active.Load() }

// Total returns the number of completed requests
func (c *Counter) Total() int64 { return c.total.Load() }

// Failed returns the number of failed requests
func (c *Counter) Failed() int64 { return c.failed.Load() }

// Succeeded returns the number of successful requests
func (c *Counter) Succeeded() int64 {
	failed := c.failed.Load()
	return c.total.Load() - failed
}

// TotalElapsed returns the summed elapsed time of all completed requests
func (c *Counter) TotalElapsed() int64 { return c.totalElapsed.Load() }

// FailedElapsed returns the summed elapsed time of failed requests
func (c *Counter) FailedElapsed() int64 { return c.failedElapsed.Load() }

// SucceededElapsed returns the summed elapsed time of successful requests
func (c *Counter) SucceededElapsed() int64 {
	failedElapsed := c.failedElapsed.Load()
	return c.totalElapsed.Load() - failedElapsed
}

// MaxElapsed returns the largest elapsed time seen
func (c *Counter) MaxElapsed() int64 { return c.maxElapsed.Load() }

// FailedMaxElapsed returns the largest elapsed time of a failed request
func (c *Counter) FailedMaxElapsed() int64 { return c.failedMaxElapsed.Load() }

// SucceededMaxElapsed returns the largest elapsed time of a successful request
func (c *Counter) SucceededMaxElapsed() int64 { return c.succeededMaxElapsed.Load() }

// AverageElapsed returns the lifetime average elapsed time, 0 without samples
func (c *Counter) AverageElapsed() int64 {
	return average(c.TotalElapsed(), c.Total())
}

// FailedAverageElapsed returns the lifetime average elapsed time of failures
func (c *Counter) FailedAverageElapsed() int64 {
	return average(c.FailedElapsed(), c.Failed())
}

// SucceededAverageElapsed returns the lifetime average elapsed time of successes
func (c *Counter) SucceededAverageElapsed() int64 {
	return average(c.SucceededElapsed(), c.Succeeded())
}

// AverageTps returns completed requests per second of accumulated elapsed time.
// Below one second of accumulated time it is the raw total.
func (c *Counter) AverageTps() float64 {
	total := c.Total()
	elapsed := c.TotalElapsed()
	if elapsed < 1000 {
		return float64(total)
	}
	return float64(total) / (float64(elapsed) / 1000)
}

func average(elapsed, count int64) int64 {
	if count <= 0 {
		return 0
	}
	return elapsed / count
}

// GetSnapshot returns the current snapshot.
func (c *Counter) GetSnapshot() *CounterSnapshot {
	if s := c.snapshot.Load(); s != nil {
		return s
	}
	// zero-value Counter
	c.snapshot.CompareAndSwap(nil, &CounterSnapshot{counter: c})
	return c.snapshot.Load()
}

// Snapshot starts a new averaging window. The window that just closed becomes the
// cached average only when it saw at least minSnapshotSamples successes; otherwise
// the previous cached average is carried forward.
func (c *Counter) Snapshot() {
	for {
		last := c.GetSnapshot()
		succeeded := c.Succeeded()
		succeededElapsed := c.SucceededElapsed()

		cached := last.lastSucceededAverageElapsed
		if samples := succeeded - last.succeededOffset; samples >= minSnapshotSamples {
			cached = (succeededElapsed - last.succeededElapsedOffset) / samples
		}

		next := &CounterSnapshot{
			counter:                     c,
			succeededOffset:             succeeded,
			succeededElapsedOffset:      succeededElapsed,
			lastSucceededAverageElapsed: cached,
		}
		if c.snapshot.CompareAndSwap(last, next) {
			return
		}
	}
}

// CounterSnapshot is an immutable baseline used to compute averages over the
// window that started when it was taken.
type CounterSnapshot struct {
	counter                     *Counter
	succeededOffset             int64
	succeededElapsedOffset      int64
	lastSucceededAverageElapsed int64
}

// SucceededOffset returns the success count at the time of the snapshot
func (s *CounterSnapshot) SucceededOffset() int64 { return s.succeededOffset }

// SucceededElapsedOffset returns the success elapsed sum at the time of the snapshot
func (s *CounterSnapshot) SucceededElapsedOffset() int64 { return s.succeededElapsedOffset }

// LastSucceededAverageElapsed returns the cached average carried by this snapshot
func (s *CounterSnapshot) LastSucceededAverageElapsed() int64 {
	return s.lastSucceededAverageElapsed
}

// SucceededAverageElapsed returns the average elapsed time of successes since the
// snapshot was taken, or the cached average when there are none yet.
func (s *CounterSnapshot) SucceededAverageElapsed() int64 {
	samples := s.counter.Succeeded() - s.succeededOffset
	if samples <= 0 {
		return s.lastSucceededAverageElapsed
	}
	return (s.counter.SucceededElapsed() - s.succeededElapsedOffset) / samples
}

// EstimateResponse approximates the response time a new request would observe:
// the windowed success latency scaled by the queue it would join. Lower is better.
func (s *CounterSnapshot) EstimateResponse() int64 {
	return s.SucceededAverageElapsed() * (s.counter.Active() + 1)
}
