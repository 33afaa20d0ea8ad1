// Package timeout resolves per-statement execution timeouts from pattern
// rules, falling back to a default.
package timeout

import (
	"fmt"
	"regexp"
	"time"
)

// Rule pairs a statement pattern with the timeout applied when it matches.
type Rule struct {
	Pattern string
	Timeout time.Duration
}

// Config is the resolver's own config type.
type Config struct {
	Default time.Duration
	Rules   []Rule
}

type compiledRule struct {
	pattern *regexp.Regexp
	timeout time.Duration
}

// Resolver picks the execution timeout for a statement. First matching rule
// wins; statements matching no rule get the default.
type Resolver struct {
	rules    []compiledRule
	fallback time.Duration
}

// NewResolver compiles the rule patterns. Returns an error on an invalid
// pattern or a non-positive default.
func NewResolver(config Config) (*Resolver, error) {
	if config.Default <= 0 {
		return nil, fmt.Errorf("timeout: default must be > 0, got %s", config.Default)
	}
	compiled := make([]compiledRule, len(config.Rules))
	for i, r := range config.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("timeout: invalid regex pattern %q: %v", r.Pattern, err)
		}
		if r.Timeout <= 0 {
			return nil, fmt.Errorf("timeout: rule %q must have a positive timeout", r.Pattern)
		}
		compiled[i] = compiledRule{pattern: re, timeout: r.Timeout}
	}
	return &Resolver{rules: compiled, fallback: config.Default}, nil
}

// Resolve returns the timeout for the given statement along with the
// pattern that decided it, empty when the default applied.
func (r *Resolver) Resolve(sql string) (time.Duration, string) {
	for _, rule := range r.rules {
		if rule.pattern.MatchString(sql) {
			return rule.timeout, rule.pattern.String()
		}
	}
	return r.fallback, ""
}
