package tag

import (
	"math"
	"math/rand/v2"
	"regexp"
)

// Tags holds the tags of a request or an endpoint. A key may carry several values.
// It has the same shape as gRPC metadata.MD.
type Tags map[string][]string

// FromMap converts single-valued tags.
func FromMap(m map[string]string) Tags {
	tags := make(Tags, len(m))
	for k, v := range m {
		tags[k] = []string{v}
	}
	return tags
}

// Get returns the values of key.
func (t Tags) Get(key string) []string {
	if t == nil {
		return nil
	}
	return t[key]
}

// RelationType combines the conditions of a group.
type RelationType string

const (
	RelationAnd RelationType = "AND"
	RelationOr  RelationType = "OR"
)

// TagCondition matches the values of one tag key.
type TagCondition struct {
	Key    string   `json:"key" yaml:"key"`
	Values []string `json:"values" yaml:"values"`
	OpType OpType   `json:"opType" yaml:"opType"`
	// Type names where the caller reads the tag from (header, query, cookie...).
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	patterns []*regexp.Regexp
}

func (c *TagCondition) cache() {
	if c.OpType == OpRegular {
		c.patterns = compilePatterns(c.Values)
	}
}

// Match reports whether target satisfies the condition.
func (c *TagCondition) Match(target string) bool {
	return c.OpType.isMatch(c.Values, target, c.patterns)
}

// MatchAny reports whether any of targets satisfies the condition.
func (c *TagCondition) MatchAny(targets []string) bool {
	for _, target := range targets {
		if c.Match(target) {
			return true
		}
	}
	return false
}

// TagGroup is a set of conditions joined by AND or OR.
// An empty AND group matches everything; an empty OR group matches nothing.
type TagGroup struct {
	Conditions []TagCondition `json:"conditions" yaml:"conditions"`
	Relation   RelationType   `json:"relationType,omitempty" yaml:"relationType,omitempty"`
	Order      int            `json:"order" yaml:"order"`
}

// IsOr reports whether the group uses OR. Anything else is AND.
func (g *TagGroup) IsOr() bool {
	return g.Relation == RelationOr
}

// Match evaluates the group against tags.
func (g *TagGroup) Match(tags Tags) bool {
	if g.IsOr() {
		for i := range g.Conditions {
			c := &g.Conditions[i]
			if c.MatchAny(tags.Get(c.Key)) {
				return true
			}
		}
		return false
	}
	for i := range g.Conditions {
		c := &g.Conditions[i]
		if !c.MatchAny(tags.Get(c.Key)) {
			return false
		}
	}
	return true
}

func (g *TagGroup) cache() {
	for i := range g.Conditions {
		g.Conditions[i].cache()
	}
}

// TagDestination is a weighted target group of a rule.
type TagDestination struct {
	TagGroup `yaml:",inline"`
	Weight   int `json:"weight" yaml:"weight"`
}

// TagRule routes requests matching its group to one of its destinations.
type TagRule struct {
	TagGroup     `yaml:",inline"`
	Destinations []*TagDestination `json:"destinations" yaml:"destinations"`
}

func (r *TagRule) cache() {
	r.TagGroup.cache()
	for _, d := range r.Destinations {
		if d != nil {
			d.cache()
		}
	}
}

// SelectDestination draws a destination with probability proportional to its weight.
// Destinations with weight <= 0 are never drawn unless every weight is <= 0, in which
// case the draw is uniform. rnd(n) must return a value in [0, n); nil uses math/rand/v2.
func (r *TagRule) SelectDestination(rnd func(n int) int) *TagDestination {
	candidates := make([]*TagDestination, 0, len(r.Destinations))
	total := 0
	for _, d := range r.Destinations {
		if d == nil {
			continue
		}
		candidates = append(candidates, d)
		if d.Weight > 0 {
			// saturate so huge weights cannot wrap the sum negative
			if total > math.MaxInt-d.Weight {
				total = math.MaxInt
			} else {
				total += d.Weight
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	if rnd == nil {
		rnd = rand.IntN
	}
	if total == 0 {
		return candidates[rnd(len(candidates))]
	}

	n := rnd(total)
	for _, d := range candidates {
		if d.Weight <= 0 {
			continue
		}
		if n < d.Weight {
			return d
		}
		n -= d.Weight
	}
	// unreachable with a well-behaved rnd
	return candidates[len(candidates)-1]
}
