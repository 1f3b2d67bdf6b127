package config

import (
	"fmt"
	"regexp"
	"strings"
)

// AdmissionRule sets the in-flight limit for calls of matching services and methods
type AdmissionRule struct {
	Service   string `yaml:"service"`    // Pattern: literal string or /regexp/
	Method    string `yaml:"method"`     // Pattern: literal string or /regexp/
	MaxActive int64  `yaml:"max_active"` // 0 means unlimited
}

// PatternMatcher matches strings either exactly or via regexp
type PatternMatcher interface {
	Match(s string) bool
}

type literalMatcher string

func (m literalMatcher) Match(s string) bool {
	return string(m) == s
}

type regexpMatcher struct {
	re *regexp.Regexp
}

func (m *regexpMatcher) Match(s string) bool {
	return m.re.MatchString(s)
}

// parsePattern returns a matcher for literal strings or /regexp/ patterns.
// Regexp patterns are anchored to match the full string.
func parsePattern(pattern string) (PatternMatcher, error) {
	if len(pattern) > 1 && strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") {
		expr := pattern[1 : len(pattern)-1]
		if _, err := regexp.Compile(expr); err != nil {
			return nil, err
		}
		re, err := regexp.Compile("^(?:" + expr + ")$")
		if err != nil {
			return nil, err
		}
		return &regexpMatcher{re: re}, nil
	}
	return literalMatcher(pattern), nil
}

type compiledRule struct {
	service   PatternMatcher
	method    PatternMatcher
	maxActive int64
}

// AdmissionLimits resolves the in-flight limit of a call. Rules are evaluated top
// to bottom and the first match wins; unmatched calls get the default limit.
type AdmissionLimits struct {
	rules      []*compiledRule
	defaultMax int64
}

// NewAdmissionLimits compiles rules. It fails on an invalid pattern or a negative limit.
func NewAdmissionLimits(rules []AdmissionRule, defaultMax int64) (*AdmissionLimits, error) {
	l := &AdmissionLimits{
		rules:      make([]*compiledRule, 0, len(rules)),
		defaultMax: defaultMax,
	}

	for i, rule := range rules {
		compiled := &compiledRule{maxActive: rule.MaxActive}
		var err error

		if compiled.service, err = parsePattern(rule.Service); err != nil {
			return nil, fmt.Errorf("invalid service pattern in admission rule %d: %w", i, err)
		}
		if compiled.method, err = parsePattern(rule.Method); err != nil {
			return nil, fmt.Errorf("invalid method pattern in admission rule %d: %w", i, err)
		}
		if rule.MaxActive < 0 {
			return nil, fmt.Errorf("invalid max_active in admission rule %d: %d", i, rule.MaxActive)
		}

		l.rules = append(l.rules, compiled)
	}
	return l, nil
}

// MaxActive returns the in-flight limit for method calls of service
func (l *AdmissionLimits) MaxActive(service, method string) int64 {
	if l == nil {
		return 0
	}
	for _, rule := range l.rules {
		if rule.service.Match(service) && rule.method.Match(method) {
			return rule.maxActive
		}
	}
	return l.defaultMax
}
