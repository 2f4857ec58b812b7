// Package filter decides which activity announcements reach chat rooms.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"squadbot/internal/model"
)

// Item is an announcement to be matched against filters.
type Item struct {
	Title string
	Body  string
}

type rule struct {
	model.Filter
	re *regexp.Regexp
}

// Engine holds a compiled set of filter rules.
// Include rules use OR logic (at least one must match).
// Exclude rules use AND logic (none must match).
type Engine struct {
	rules []rule
}

// New compiles filters into an Engine.
func New(filters []model.Filter) (*Engine, error) {
	e := &Engine{rules: make([]rule, 0, len(filters))}
	for _, f := range filters {
		r := rule{Filter: f}
		if f.Kind == model.FilterIncludeRe || f.Kind == model.FilterExcludeRe {
			re, err := compile(f.Value)
			if err != nil {
				return nil, err
			}
			r.re = re
		}
		e.rules = append(e.rules, r)
	}
	return e, nil
}

// Match reports whether item passes the engine's rules. An engine without
// rules passes everything.
func (e *Engine) Match(item Item) bool {
	if e == nil || len(e.rules) == 0 {
		return true
	}

	hasIncludes := false
	anyIncludeMatched := false

	for _, r := range e.rules {
		switch r.Kind {
		case model.FilterInclude, model.FilterIncludeRe:
			hasIncludes = true
			if r.matches(item) {
				anyIncludeMatched = true
			}
		case model.FilterExclude, model.FilterExcludeRe:
			if r.matches(item) {
				return false
			}
		}
	}

	return !hasIncludes || anyIncludeMatched
}

func (r rule) matches(item Item) bool {
	text := textForScope(item, r.Scope)
	if r.re != nil {
		return r.re.MatchString(text)
	}
	return strings.Contains(text, strings.ToLower(r.Value))
}

func textForScope(item Item, scope model.FilterScope) string {
	switch scope {
	case model.ScopeTitle:
		return strings.ToLower(item.Title)
	case model.ScopeContent:
		return strings.ToLower(item.Body)
	default:
		return strings.ToLower(item.Title + " " + item.Body)
	}
}

// ValidateRegex checks whether a pattern is a valid regular expression.
func ValidateRegex(pattern string) error {
	_, err := compile(pattern)
	return err
}

func compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return re, nil
}
