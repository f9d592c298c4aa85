package pgadmin

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Policy is the checked-in YAML file holding the cascade registry and the
// redaction policy.
//
//	cascade:
//	  visitors:
//	    - {table: users, column: visitor_id}
//	redaction:
//	  tables: [users, inbox_messages]
//	  columns: [message, profile_pic, token, password]
type Policy struct {
	Cascade   CascadeRegistry  `yaml:"cascade"`
	Redaction *RedactionConfig `yaml:"redaction"`
}

// LoadPolicy reads and validates the policy file at path.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy parses policy YAML. Unknown keys are an error.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.UnmarshalStrict(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that every cascade reference names a table and column.
func (p *Policy) Validate() error {
	for table, refs := range p.Cascade {
		if table == "" {
			return fmt.Errorf("policy: cascade entry with empty table name")
		}
		for i, ref := range refs {
			if ref.Table == "" || ref.Column == "" {
				return fmt.Errorf("policy: cascade.%s[%d] must set table and column", table, i)
			}
		}
	}
	return nil
}

// Apply overlays the policy onto cfg. Sections absent from the file leave
// cfg untouched.
func (p *Policy) Apply(cfg *Config) {
	if p.Cascade != nil {
		cfg.Cascade = p.Cascade.Clone()
	}
	if p.Redaction != nil {
		cfg.Redaction = *p.Redaction
	}
}
