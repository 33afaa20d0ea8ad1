// Package sanitize applies regex-based redaction to result cell values
// before they are rendered, previewed, or exported.
package sanitize

import (
	"fmt"
	"regexp"
)

// Rule is the sanitizer's own rule type.
type Rule struct {
	Pattern     string
	Replacement string
}

type compiledRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Sanitizer rewrites textual cell values through its rules in order.
type Sanitizer struct {
	rules []compiledRule
}

// New creates a Sanitizer. Returns an error on invalid regex patterns.
func New(rules []Rule) (*Sanitizer, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("sanitize: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, replacement: r.Replacement}
	}
	return &Sanitizer{rules: compiled}, nil
}

// HasRules reports whether any rules are configured.
func (s *Sanitizer) HasRules() bool {
	return len(s.rules) > 0
}

// Value rewrites string and byte-slice cells through every rule in order.
// Numeric, boolean, nil, and timestamp cells pass through untouched.
func (s *Sanitizer) Value(v any) any {
	switch val := v.(type) {
	case string:
		return s.apply(val)
	case []byte:
		return []byte(s.apply(string(val)))
	default:
		return v
	}
}

func (s *Sanitizer) apply(text string) string {
	for _, rule := range s.rules {
		text = rule.pattern.ReplaceAllString(text, rule.replacement)
	}
	return text
}
