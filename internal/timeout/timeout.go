package timeout

import (
	"fmt"
	"regexp"
	"time"
)

// Rule maps a table name pattern to a timeout.
type Rule struct {
	Pattern string
	Timeout time.Duration
}

// Config is the timeout manager's own config type.
type Config struct {
	DefaultTimeout time.Duration
	Rules          []Rule
}

type compiledRule struct {
	pattern *regexp.Regexp
	timeout time.Duration
}

// Manager resolves per-table operation timeouts.
type Manager struct {
	rules          []compiledRule
	defaultTimeout time.Duration
}

// NewManager creates a new Manager. Returns an error on invalid regex patterns.
func NewManager(config Config) (*Manager, error) {
	compiled := make([]compiledRule, len(config.Rules))
	for i, r := range config.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("timeout: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, timeout: r.Timeout}
	}
	return &Manager{rules: compiled, defaultTimeout: config.DefaultTimeout}, nil
}

// GetTimeout returns the timeout for operations on table.
// First matching rule wins. Falls back to default.
func (m *Manager) GetTimeout(table string) time.Duration {
	d, _ := m.GetTimeoutWithPattern(table)
	return d
}

// GetTimeoutWithPattern is GetTimeout that also reports the matching
// pattern, or "" when the default applied.
func (m *Manager) GetTimeoutWithPattern(table string) (time.Duration, string) {
	for _, rule := range m.rules {
		if rule.pattern.MatchString(table) {
			return rule.timeout, rule.pattern.String()
		}
	}
	return m.defaultTimeout, ""
}
