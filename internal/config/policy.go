package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tolerance bounds the accepted difference between two numbers.
// A number matches when either bound holds.
type Tolerance struct {
	Absolute float64 `yaml:"absolute"`
	Relative float64 `yaml:"relative"`
}

type ComparisonPolicy struct {
	Tolerance Tolerance `yaml:"tolerance"`
	// Keys overrides the tolerance per top-level result key
	Keys map[string]Tolerance `yaml:"keys"`
}

// PromotionPolicy decides automatic promotion once a batch is sealed
type PromotionPolicy struct {
	// FirstBatch promotes a sealed batch of a suite that has no baseline
	FirstBatch bool `yaml:"firstBatch"`
	// AllPass promotes a sealed batch whose elements all passed
	AllPass bool `yaml:"allPass"`
}

type Policy struct {
	Comparison ComparisonPolicy `yaml:"comparison"`
	Promotion  PromotionPolicy  `yaml:"promotion"`
}

func DefaultPolicy() *Policy {
	return &Policy{
		Comparison: ComparisonPolicy{Keys: map[string]Tolerance{}},
		Promotion:  PromotionPolicy{FirstBatch: true},
	}
}

// LoadPolicy reads a YAML policy file. An empty path yields the defaults.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return ParsePolicy(data)
}

func ParsePolicy(data []byte) (*Policy, error) {
	policy := DefaultPolicy()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(policy); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	if err := policy.validate(); err != nil {
		return nil, err
	}
	if policy.Comparison.Keys == nil {
		policy.Comparison.Keys = map[string]Tolerance{}
	}
	return policy, nil
}

func (p *Policy) validate() error {
	check := func(name string, t Tolerance) error {
		if t.Absolute < 0 || t.Relative < 0 {
			return fmt.Errorf("policy: negative tolerance for %s", name)
		}
		return nil
	}
	if err := check("default", p.Comparison.Tolerance); err != nil {
		return err
	}
	for k, t := range p.Comparison.Keys {
		if err := check(k, t); err != nil {
			return err
		}
	}
	return nil
}

// ToleranceFor returns the tolerance of a top-level key
func (c ComparisonPolicy) ToleranceFor(key string) Tolerance {
	if t, ok := c.Keys[key]; ok {
		return t
	}
	return c.Tolerance
}
