package errhint

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule pairs an error message pattern with operator guidance.
type Rule struct {
	Pattern string
	Message string
}

type compiledRule struct {
	pattern *regexp.Regexp
	message string
}

// Matcher appends guidance to error messages that match configured patterns.
type Matcher struct {
	rules []compiledRule
}

// NewMatcher creates a new Matcher. Returns an error on invalid regex patterns.
func NewMatcher(rules []Rule) (*Matcher, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("errhint: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, message: r.Message}
	}
	return &Matcher{rules: compiled}, nil
}

// Hints returns the messages of every rule matching errMsg, top to bottom.
func (m *Matcher) Hints(errMsg string) []string {
	var hints []string
	for _, rule := range m.rules {
		if rule.pattern.MatchString(errMsg) {
			hints = append(hints, rule.message)
		}
	}
	return hints
}

// Patterns returns the regex patterns that matched errMsg, for logging.
func (m *Matcher) Patterns(errMsg string) []string {
	var patterns []string
	for _, rule := range m.rules {
		if rule.pattern.MatchString(errMsg) {
			patterns = append(patterns, rule.pattern.String())
		}
	}
	return patterns
}

// Annotate returns errMsg followed by a blank line and the matching hints,
// or errMsg unchanged when nothing matches.
func (m *Matcher) Annotate(errMsg string) string {
	hints := m.Hints(errMsg)
	if len(hints) == 0 {
		return errMsg
	}
	return errMsg + "\n\n" + strings.Join(hints, "\n")
}
