package route

import (
	"math/rand/v2"

	"github.com/xiaonanln/liveroute/policy"
	"github.com/xiaonanln/liveroute/stats"
	"github.com/xiaonanln/liveroute/tag"
	"github.com/xiaonanln/liveroute/util/logger"
	"github.com/xiaonanln/liveroute/util/metrics"
)

// Endpoint is a routable instance of a service.
type Endpoint struct {
	ID      string
	Address string
	Tags    tag.Tags
}

// Key returns the name the endpoint is counted under: its ID, or its address when the ID is empty.
func (e *Endpoint) Key() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Address
}

// Decision is the result of routing one request.
type Decision struct {
	// Matched is true when a tag rule matched the request.
	Matched     bool
	Rule        *tag.TagRule
	Destination *tag.TagDestination
	// Endpoint is nil when no candidate qualifies.
	Endpoint *Endpoint
}

// Router picks an endpoint for a request: the published tag rules narrow the
// candidates and the live stats choose the least loaded of them.
type Router struct {
	store    *policy.Store
	registry *stats.Registry
	rnd      func(n int) int
	logger   *logger.Logger
}

// NewRouter creates a router. rnd(n) must return a value in [0, n); nil uses math/rand/v2.
func NewRouter(store *policy.Store, registry *stats.Registry, rnd func(n int) int) *Router {
	if rnd == nil {
		rnd = rand.IntN
	}
	return &Router{
		store:    store,
		registry: registry,
		rnd:      rnd,
		logger:   logger.NewLogger("Router"),
	}
}

// Route chooses an endpoint of service for a request carrying the given tags.
// Without a matching rule every candidate qualifies.
func (r *Router) Route(service string, request tag.Tags, candidates []Endpoint, uri string) Decision {
	var d Decision

	eligible := candidates
	if rule := r.store.RuleSet().Match(request); rule != nil {
		d.Matched = true
		d.Rule = rule
		d.Destination = rule.SelectDestination(r.rnd)
		if d.Destination != nil {
			eligible = filter(candidates, &d.Destination.TagGroup)
		}
	}

	d.Endpoint = LeastResponse(eligible, func(ep *Endpoint) int64 {
		return r.estimate(service, ep, uri)
	}, r.rnd)

	if d.Endpoint == nil && len(candidates) > 0 {
		r.logger.Debugf("No candidate of %s qualifies for %s (%d candidates)", service, uri, len(candidates))
	}
	metrics.RecordRouteDecision(service, d.Matched, d.Endpoint != nil)
	return d
}

func (r *Router) estimate(service string, ep *Endpoint, uri string) int64 {
	c := r.registry.Lookup(service, ep.Key(), uri)
	if c == nil {
		return 0
	}
	return c.GetSnapshot().EstimateResponse()
}

func filter(candidates []Endpoint, group *tag.TagGroup) []Endpoint {
	out := make([]Endpoint, 0, len(candidates))
	for _, ep := range candidates {
		if group.Match(ep.Tags) {
			out = append(out, ep)
		}
	}
	return out
}

// LeastResponse returns the candidate with the lowest estimate. Ties are broken
// uniformly at random. It returns nil for an empty slice. The result points into candidates.
func LeastResponse(candidates []Endpoint, estimate func(ep *Endpoint) int64, rnd func(n int) int) *Endpoint {
	if rnd == nil {
		rnd = rand.IntN
	}
	var best *Endpoint
	var bestEstimate int64
	ties := 0
	for i := range candidates {
		ep := &candidates[i]
		e := estimate(ep)
		switch {
		case best == nil || e < bestEstimate:
			best, bestEstimate, ties = ep, e, 1
		case e == bestEstimate:
			ties++
			if rnd(ties) == 0 {
				best = ep
			}
		}
	}
	return best
}
