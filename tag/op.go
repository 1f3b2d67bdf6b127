package tag

import (
	"regexp"
	"strings"
)

// OpType is the comparison a TagCondition applies between its values and a target.
type OpType string

const (
	OpEqual    OpType = "EQUAL"
	OpNotEqual OpType = "NOT_EQUAL"
	OpIn       OpType = "IN"
	OpNotIn    OpType = "NOT_IN"
	OpPrefix   OpType = "PREFIX"
	OpRegular  OpType = "REGULAR"
)

// Valid reports whether o is a known operator.
func (o OpType) Valid() bool {
	switch o {
	case OpEqual, OpNotEqual, OpIn, OpNotIn, OpPrefix, OpRegular:
		return true
	}
	return false
}

// IsMatch applies the operator to target. An empty target never matches.
// REGULAR patterns are compiled on every call here; conditions cache them.
func (o OpType) IsMatch(values []string, target string) bool {
	return o.isMatch(values, target, nil)
}

func (o OpType) isMatch(values []string, target string, patterns []*regexp.Regexp) bool {
	if target == "" {
		return false
	}
	switch o {
	case OpEqual, OpIn:
		return contains(values, target)
	case OpNotEqual, OpNotIn:
		return !contains(values, target)
	case OpPrefix:
		for _, v := range values {
			if v != "" && strings.HasPrefix(target, v) {
				return true
			}
		}
		return false
	case OpRegular:
		if patterns == nil {
			patterns = compilePatterns(values)
		}
		for _, re := range patterns {
			if re != nil && re.MatchString(target) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// compilePatterns compiles anchored regexps; invalid patterns become nil entries.
func compilePatterns(values []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(values))
	for i, v := range values {
		patterns[i] = compileAnchored(v)
	}
	return patterns
}

// compileAnchored returns nil unless v is a valid regexp on its own, so a value
// like "a)|(?:.*" cannot close the anchoring group and match everything.
func compileAnchored(v string) *regexp.Regexp {
	if _, err := regexp.Compile(v); err != nil {
		return nil
	}
	re, err := regexp.Compile("^(?:" + v + ")$")
	if err != nil {
		return nil
	}
	return re
}
