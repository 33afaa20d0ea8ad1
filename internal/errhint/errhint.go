// Package errhint appends remediation guidance to error messages that match
// known failure patterns, steering agent callers toward a working query
// instead of a retry loop.
package errhint

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule maps an error-text pattern to the guidance shown for it.
type Rule struct {
	Pattern string
	Hint    string
}

type compiledRule struct {
	pattern *regexp.Regexp
	hint    string
}

// Hinter checks error messages against patterns and collects guidance.
type Hinter struct {
	rules []compiledRule
}

// New compiles the rules. Returns an error on invalid regex patterns.
func New(rules []Rule) (*Hinter, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("errhint: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, hint: r.Hint}
	}
	return &Hinter{rules: compiled}, nil
}

// Hint checks errText against all rules (top to bottom) and returns the
// matching hints joined with newlines. Returns empty string if no match.
func (h *Hinter) Hint(errText string) string {
	var hints []string
	for _, rule := range h.rules {
		if rule.pattern.MatchString(errText) {
			hints = append(hints, rule.hint)
		}
	}
	return strings.Join(hints, "\n")
}

// Patterns returns which rule patterns matched errText, for logging. Nil if
// no match.
func (h *Hinter) Patterns(errText string) []string {
	var patterns []string
	for _, rule := range h.rules {
		if rule.pattern.MatchString(errText) {
			patterns = append(patterns, rule.pattern.String())
		}
	}
	return patterns
}

// Defaults returns the built-in IoTDB-facing rules. They seed the
// error_hints list of a freshly written config file; an engine uses exactly
// the rules its config carries.
func Defaults() []Rule {
	return []Rule{
		{
			Pattern: `(?i)path .* does not exist`,
			Hint:    "The series path does not exist. Use SHOW TIMESERIES <prefix pattern> to list the paths available under a prefix.",
		},
		{
			Pattern: `(?i)database .*(does not exist|is not set)`,
			Hint:    "The database is missing or not selected. SHOW DATABASES lists the ones available.",
		},
		{
			Pattern: `connection pool exhausted`,
			Hint:    "Every pooled session is busy. Retry shortly, or narrow the query so sessions free up faster.",
		},
		{
			Pattern: `unsupported statement`,
			Hint:    "This server only forwards read statements. Rewrite the query to start with one of the permitted prefixes.",
		},
	}
}
