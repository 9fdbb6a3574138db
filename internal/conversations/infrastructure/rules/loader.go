// Package rules loads extra escalation rules from a YAML file.
package rules

import (
	"fmt"

	"github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/security"
	"gopkg.in/yaml.v3"
)

// File is the on-disk layout:
//
//	replace_defaults: false
//	rules:
//	  - reason: competitor mention
//	    phrases: ["another offer"]
//	    patterns: ['competing\s+offers?']
type File struct {
	ReplaceDefaults bool          `yaml:"replace_defaults"`
	Rules           []domain.Rule `yaml:"rules"`
}

// Parse decodes a rules document.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("failed to parse escalation rules: %w", err)
	}
	return f, nil
}

// LoadDetector builds a detector from the built-in rules plus the rules in
// path. File rules are checked after the built-ins unless they replace them.
// An empty path yields the default detector.
func LoadDetector(path string) (*domain.Detector, error) {
	if path == "" {
		return domain.NewDefaultDetector(), nil
	}

	data, err := security.ReadConfigFile(path, ".yaml", ".yml")
	if err != nil {
		return nil, fmt.Errorf("failed to read escalation rules: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}

	rules := f.Rules
	if !f.ReplaceDefaults {
		rules = append(domain.DefaultRules(), f.Rules...)
	}
	return domain.NewDetector(rules)
}
