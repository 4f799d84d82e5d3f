package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RulesFile is an operator-maintained heuristics override, kept separate from
// the main config so analysts can tune word lists and weights without touching
// service settings.
type RulesFile struct {
	Weights            map[string]float64 `yaml:"weights"`
	SuspiciousTLDs     []string           `yaml:"suspicious_tlds"`
	SuspiciousKeywords []string           `yaml:"suspicious_keywords"`
	BrandKeywords      []string           `yaml:"brand_keywords"`
	Whitelist          []string           `yaml:"whitelist"`
}

// LoadRules reads a heuristics YAML file from disk.
func LoadRules(path string) (*RulesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rules RulesFile
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	return &rules, nil
}

// ApplyRules merges a rules file into the detection configuration. Weight
// entries are merged per kind; list fields replace the configured lists
// outright when present, and whitelist entries are appended.
func (d *DetectionConfig) ApplyRules(rules *RulesFile) {
	if rules == nil {
		return
	}

	if len(rules.Weights) > 0 {
		if d.Weights == nil {
			d.Weights = make(map[string]float64, len(rules.Weights))
		}
		for kind, w := range rules.Weights {
			d.Weights[kind] = w
		}
	}
	if len(rules.SuspiciousTLDs) > 0 {
		d.SuspiciousTLDs = rules.SuspiciousTLDs
	}
	if len(rules.SuspiciousKeywords) > 0 {
		d.SuspiciousKeywords = rules.SuspiciousKeywords
	}
	if len(rules.BrandKeywords) > 0 {
		d.BrandKeywords = rules.BrandKeywords
	}
	if len(rules.Whitelist) > 0 {
		d.Whitelist = append(d.Whitelist, rules.Whitelist...)
	}
}
