package stats

import (
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xiaonanln/liveroute/util/logger"
)

// DefaultMaxEndpoints bounds the endpoints tracked per service when no limit is given.
const DefaultMaxEndpoints = 4096

// ServiceCounter tracks the endpoints of one service. The set is bounded; the least
// recently used endpoint is dropped when the bound is exceeded.
type ServiceCounter struct {
	name      string
	clock     clock.Clock
	endpoints *lru.Cache[string, *EndpointCounter]
	logger    *logger.Logger
}

// NewServiceCounter creates a service counter holding at most maxEndpoints endpoints.
func NewServiceCounter(name string, maxEndpoints int, clk clock.Clock) *ServiceCounter {
	if maxEndpoints <= 0 {
		maxEndpoints = DefaultMaxEndpoints
	}
	if clk == nil {
		clk = clock.New()
	}
	sc := &ServiceCounter{
		name:   name,
		clock:  clk,
		logger: logger.NewLogger("ServiceCounter"),
	}
	// Only errors on a non-positive size.
	sc.endpoints, _ = lru.NewWithEvict(maxEndpoints, func(id string, _ *EndpointCounter) {
		sc.logger.Debugf("Dropped endpoint %s of service %s", id, name)
	})
	return sc
}

// Name returns the service name
func (sc *ServiceCounter) Name() string { return sc.name }

// GetOrCreateEndpoint returns the endpoint counter for id, creating it if needed.
func (sc *ServiceCounter) GetOrCreateEndpoint(id string) *EndpointCounter {
	if ep, ok := sc.endpoints.Get(id); ok {
		return ep
	}
	ep := NewEndpointCounter(sc.name, id, sc.clock)
	if prev, ok, _ := sc.endpoints.PeekOrAdd(id, ep); ok {
		return prev
	}
	return ep
}

// GetEndpoint returns the endpoint counter for id or nil.
func (sc *ServiceCounter) GetEndpoint(id string) *EndpointCounter {
	ep, _ := sc.endpoints.Peek(id)
	return ep
}

// Len returns the number of tracked endpoints
func (sc *ServiceCounter) Len() int {
	return sc.endpoints.Len()
}

// Range calls fn for every endpoint until fn returns false.
func (sc *ServiceCounter) Range(fn func(ep *EndpointCounter) bool) {
	for _, ep := range sc.endpoints.Values() {
		if !fn(ep) {
			return
		}
	}
}

// Snapshot rotates snapshots of all endpoints.
func (sc *ServiceCounter) Snapshot() {
	for _, ep := range sc.endpoints.Values() {
		ep.Snapshot()
	}
}

// EvictIdle removes endpoints not accessed within idle and returns how many were removed.
// Endpoints with in-flight calls are kept so their pending End lands on a live counter.
func (sc *ServiceCounter) EvictIdle(idle time.Duration) int {
	now := sc.clock.Now()
	removed := 0
	for _, id := range sc.endpoints.Keys() {
		ep, ok := sc.endpoints.Peek(id)
		if ok && ep.IsIdle(now, idle) && !ep.HasActive() {
			if sc.endpoints.Remove(id) {
				removed++
			}
		}
	}
	return removed
}
