package stats

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Registry is the process-wide root of all counters: service -> endpoint -> request key.
type Registry struct {
	maxEndpoints int
	clock        clock.Clock
	services     sync.Map // service name -> *ServiceCounter
}

// NewRegistry creates a registry. maxEndpoints bounds endpoints per service
// (DefaultMaxEndpoints when <= 0); a nil clock means wall time.
func NewRegistry(maxEndpoints int, clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.New()
	}
	return &Registry{
		maxEndpoints: maxEndpoints,
		clock:        clk,
	}
}

// Clock returns the clock used for access times
func (r *Registry) Clock() clock.Clock { return r.clock }

// GetOrCreateService returns the service counter for name, creating it if needed.
func (r *Registry) GetOrCreateService(name string) *ServiceCounter {
	if sc, ok := r.services.Load(name); ok {
		return sc.(*ServiceCounter)
	}
	actual, _ := r.services.LoadOrStore(name, NewServiceCounter(name, r.maxEndpoints, r.clock))
	return actual.(*ServiceCounter)
}

// Service returns the service counter for name or nil.
func (r *Registry) Service(name string) *ServiceCounter {
	if sc, ok := r.services.Load(name); ok {
		return sc.(*ServiceCounter)
	}
	return nil
}

// Counter is a shortcut for service -> endpoint -> request counter, creating
// every level on demand.
func (r *Registry) Counter(service, endpoint, uri string) *Counter {
	return r.GetOrCreateService(service).GetOrCreateEndpoint(endpoint).GetOrCreateCounter(uri)
}

// Lookup returns an existing counter without creating anything.
func (r *Registry) Lookup(service, endpoint, uri string) *Counter {
	sc := r.Service(service)
	if sc == nil {
		return nil
	}
	ep := sc.GetEndpoint(endpoint)
	if ep == nil {
		return nil
	}
	return ep.GetCounter(uri)
}

// Range calls fn for every service until fn returns false.
func (r *Registry) Range(fn func(sc *ServiceCounter) bool) {
	r.services.Range(func(_, v any) bool {
		return fn(v.(*ServiceCounter))
	})
}

// Snapshot rotates snapshots of every counter.
func (r *Registry) Snapshot() {
	r.Range(func(sc *ServiceCounter) bool {
		sc.Snapshot()
		return true
	})
}

// EvictIdle drops endpoints idle for at least idle and returns how many were dropped.
func (r *Registry) EvictIdle(idle time.Duration) int {
	removed := 0
	r.Range(func(sc *ServiceCounter) bool {
		removed += sc.EvictIdle(idle)
		return true
	})
	return removed
}
