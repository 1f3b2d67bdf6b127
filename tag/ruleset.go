package tag

import (
	"encoding/json"
	"fmt"
	"sort"
)

// RuleSet is one published version of tag rules.
type RuleSet struct {
	ID      string     `json:"id" yaml:"id"`
	Version int64      `json:"version" yaml:"version"`
	Rules   []*TagRule `json:"rules" yaml:"rules"`

	cached bool
}

// Decode parses a JSON rule set pushed by the control plane.
func Decode(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule set: %w", err)
	}
	return &rs, nil
}

// Cache orders the rules by ascending Order (stable for equal orders) and compiles
// regular expressions. It must be called once before the rule set is published.
func (rs *RuleSet) Cache() {
	rules := make([]*TagRule, 0, len(rs.Rules))
	for _, r := range rs.Rules {
		if r != nil {
			r.cache()
			rules = append(rules, r)
		}
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Order < rules[j].Order
	})
	rs.Rules = rules
	rs.cached = true
}

// IsCached reports whether Cache has run.
func (rs *RuleSet) IsCached() bool {
	return rs.cached
}

// Match returns the first rule, in order, whose group matches tags, or nil.
func (rs *RuleSet) Match(tags Tags) *TagRule {
	if rs == nil {
		return nil
	}
	for _, r := range rs.Rules {
		if r != nil && r.Match(tags) {
			return r
		}
	}
	return nil
}

// Route matches tags and draws a destination of the matching rule.
// It returns nil when no rule matches or the rule has no destinations.
func (rs *RuleSet) Route(tags Tags, rnd func(n int) int) *TagDestination {
	r := rs.Match(tags)
	if r == nil {
		return nil
	}
	return r.SelectDestination(rnd)
}
