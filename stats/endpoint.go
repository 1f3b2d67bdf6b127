package stats

import (
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// RequestKey normalizes a request URI into a counter key: the path with trailing
// slashes removed, followed by "?method=<m>" when a method query parameter is set.
func RequestKey(uri string) string {
	path, method := uri, ""
	if u, err := url.Parse(uri); err == nil {
		path = u.Path
		method = u.Query().Get("method")
	}
	path = strings.TrimRight(path, "/")
	if method != "" {
		return path + "?method=" + method
	}
	return path
}

// EndpointCounter owns the counters of one endpoint, keyed by request key.
type EndpointCounter struct {
	service    string
	id         string
	clock      clock.Clock
	accessTime atomic.Int64 // unix nanoseconds
	counters   sync.Map     // request key -> *Counter
}

// NewEndpointCounter creates an endpoint counter. A nil clock means wall time.
func NewEndpointCounter(service, id string, clk clock.Clock) *EndpointCounter {
	if clk == nil {
		clk = clock.New()
	}
	e := &EndpointCounter{
		service: service,
		id:      id,
		clock:   clk,
	}
	e.touch()
	return e
}

// Service returns the owning service name
func (e *EndpointCounter) Service() string { return e.service }

// ID returns the endpoint id
func (e *EndpointCounter) ID() string { return e.id }

func (e *EndpointCounter) touch() {
	e.accessTime.Store(e.clock.Now().UnixNano())
}

// AccessTime returns when the endpoint was last accessed
func (e *EndpointCounter) AccessTime() time.Time {
	return time.Unix(0, e.accessTime.Load())
}

// IsIdle reports whether the endpoint has not been accessed for at least idle.
func (e *EndpointCounter) IsIdle(now time.Time, idle time.Duration) bool {
	return now.Sub(e.AccessTime()) >= idle
}

// HasActive reports whether any counter of the endpoint has an in-flight call.
func (e *EndpointCounter) HasActive() bool {
	active := false
	e.Range(func(_ string, c *Counter) bool {
		active = c.Active() > 0
		return !active
	})
	return active
}

// GetOrCreateCounter returns the counter for uri, creating it on first access.
func (e *EndpointCounter) GetOrCreateCounter(uri string) *Counter {
	e.touch()
	key := RequestKey(uri)
	if c, ok := e.counters.Load(key); ok {
		return c.(*Counter)
	}
	actual, _ := e.counters.LoadOrStore(key, NewCounter())
	return actual.(*Counter)
}

// GetCounter returns the counter for uri or nil if none was created.
func (e *EndpointCounter) GetCounter(uri string) *Counter {
	if c, ok := e.counters.Load(RequestKey(uri)); ok {
		return c.(*Counter)
	}
	return nil
}

// Range calls fn for every counter until fn returns false.
func (e *EndpointCounter) Range(fn func(key string, c *Counter) bool) {
	e.counters.Range(func(k, v any) bool {
		return fn(k.(string), v.(*Counter))
	})
}

// Snapshot rotates the snapshot of every counter of the endpoint.
func (e *EndpointCounter) Snapshot() {
	e.counters.Range(func(_, v any) bool {
		v.(*Counter).Snapshot()
		return true
	})
}
