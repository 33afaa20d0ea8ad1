// Package classify maps raw statements to their recognized family by
// leading-keyword prefix. It never parses past the prefix: a statement is
// judged by how it begins, nothing more. That boundary is deliberate and
// matches the server's read-only allowlists.
package classify

import (
	"errors"
	"fmt"
	"strings"
)

// Class is the recognized statement family of a raw query.
type Class int

const (
	// Unsupported is the zero value; Classify never returns it with a nil
	// error.
	Unsupported Class = iota

	// MetadataShow covers tree-dialect schema statements (SHOW DATABASES,
	// SHOW TIMESERIES, COUNT DEVICES, ...).
	MetadataShow

	// TreeSelect covers SELECT against the tree model.
	TreeSelect

	// TableSelect covers SELECT against the table model.
	TableSelect

	// TableDescribe covers DESCRIBE and DESC against the table model.
	TableDescribe

	// TableShow covers SHOW against the table model.
	TableShow
)

// String returns the class name used in logs and error messages.
func (c Class) String() string {
	switch c {
	case MetadataShow:
		return "metadata-show"
	case TreeSelect:
		return "tree-select"
	case TableSelect:
		return "table-select"
	case TableDescribe:
		return "table-describe"
	case TableShow:
		return "table-show"
	default:
		return "unsupported"
	}
}

// Set is the group of classes a tool accepts, in the order they should be
// tried.
type Set []Class

// Contains reports whether c is in the set.
func (s Set) Contains(c Class) bool {
	for _, have := range s {
		if have == c {
			return true
		}
	}
	return false
}

// ErrUnsupportedStatement is returned when a statement's prefix matches no
// permitted class.
var ErrUnsupportedStatement = errors.New("unsupported statement")

// rule pairs one class with one upper-case statement prefix. Order matters:
// the specific metadata prefixes come before the generic table SHOW, and
// DESCRIBE before its DESC shorthand.
type rule struct {
	class  Class
	prefix string
}

var rules = []rule{
	{MetadataShow, "SHOW DATABASES"},
	{MetadataShow, "SHOW TIMESERIES"},
	{MetadataShow, "SHOW CHILD PATHS"},
	{MetadataShow, "SHOW CHILD NODES"},
	{MetadataShow, "SHOW DEVICES"},
	{MetadataShow, "COUNT TIMESERIES"},
	{MetadataShow, "COUNT NODES"},
	{MetadataShow, "COUNT DEVICES"},
	{TreeSelect, "SELECT"},
	{TableSelect, "SELECT"},
	{TableDescribe, "DESCRIBE"},
	{TableDescribe, "DESC"},
	{TableShow, "SHOW"},
}

// Classify trims and upper-cases raw, then returns the first class from the
// rule table whose prefix matches and which `allowed` permits. A prefix
// match on a class outside the set keeps scanning, so "SHOW DEVICES" is
// metadata-show for a tree tool but plain table-show for a table tool.
// Returns ErrUnsupportedStatement (wrapped) when nothing matches.
func Classify(raw string, allowed Set) (Class, error) {
	norm := strings.ToUpper(strings.TrimSpace(raw))
	for _, r := range rules {
		if strings.HasPrefix(norm, r.prefix) && allowed.Contains(r.class) {
			return r.class, nil
		}
	}
	return Unsupported, fmt.Errorf("%w: query must start with one of [%s], got %q",
		ErrUnsupportedStatement, strings.Join(prefixesFor(allowed), ", "), truncate(raw, 80))
}

// prefixesFor lists the permitted prefixes in rule-table order, for error
// messages.
func prefixesFor(allowed Set) []string {
	var prefixes []string
	for _, r := range rules {
		if allowed.Contains(r.class) {
			prefixes = append(prefixes, r.prefix)
		}
	}
	return prefixes
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
