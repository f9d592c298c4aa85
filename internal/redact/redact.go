package redact

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rickchristie/postgres-admin/internal/coerce"
)

// DefaultMarker replaces masked column values.
const DefaultMarker = "[REDACTED]"

// Rule is a regex rewrite applied to text values of every table.
type Rule struct {
	Pattern     string
	Replacement string
}

// Policy selects what is hidden from non-raw reads.
type Policy struct {
	Marker  string
	Tables  []string
	Columns []string
	Rules   []Rule
}

type compiledRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Redactor applies a Policy to row values. It is immutable after
// construction and safe for concurrent use.
type Redactor struct {
	marker  string
	tables  map[string]struct{}
	columns map[string]struct{}
	rules   []compiledRule
}

// NewRedactor compiles p. Table and column names match case-insensitively.
// Returns an error on invalid regex patterns.
func NewRedactor(p Policy) (*Redactor, error) {
	r := &Redactor{
		marker:  p.Marker,
		tables:  make(map[string]struct{}, len(p.Tables)),
		columns: make(map[string]struct{}, len(p.Columns)),
		rules:   make([]compiledRule, len(p.Rules)),
	}
	if r.marker == "" {
		r.marker = DefaultMarker
	}
	for _, t := range p.Tables {
		r.tables[strings.ToLower(t)] = struct{}{}
	}
	for _, c := range p.Columns {
		r.columns[strings.ToLower(c)] = struct{}{}
	}
	for i, rule := range p.Rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redact: invalid regex pattern %q: %v", rule.Pattern, err)
		}
		r.rules[i] = compiledRule{pattern: re, replacement: rule.Replacement}
	}
	return r, nil
}

// Marker returns the replacement string for masked columns.
func (r *Redactor) Marker() string {
	return r.marker
}

// CoversTable reports whether table is subject to column masking.
func (r *Redactor) CoversTable(table string) bool {
	_, ok := r.tables[strings.ToLower(table)]
	return ok
}

// Masks reports whether column of table is replaced by the marker.
func (r *Redactor) Masks(table, column string) bool {
	if !r.CoversTable(table) {
		return false
	}
	_, ok := r.columns[strings.ToLower(column)]
	return ok
}

// HasRules returns true if any regex rules are configured.
func (r *Redactor) HasRules() bool {
	return len(r.rules) > 0
}

// Apply returns the value a non-raw read of table.column shows. Masked
// columns become the marker unless the stored value is null; other text
// values go through the regex rules in order.
func (r *Redactor) Apply(table, column string, v coerce.Value) coerce.Value {
	if v.IsNull() || v.IsUnset() {
		return v
	}
	if r.Masks(table, column) {
		return coerce.Text(r.marker)
	}
	s, ok := v.Text()
	if !ok || len(r.rules) == 0 {
		return v
	}
	for _, rule := range r.rules {
		s = rule.pattern.ReplaceAllString(s, rule.replacement)
	}
	return coerce.Text(s)
}
