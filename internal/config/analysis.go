package config

import (
	"fmt"
	"math"
	"os"

	"gobiodiv/internal/errors"

	"gopkg.in/yaml.v3"
)

const (
	DefaultNMin  = 5.0
	DefaultNPerm = 200
)

// AnalysisConfig holds the parameters of a biodiversity analysis
type AnalysisConfig struct {
	GroupColumn string   `yaml:"group_column"`
	Levels      []string `yaml:"levels"`
	NMin        float64  `yaml:"n_min"`
	NPerm       int      `yaml:"nperm"`
	Seed        int64    `yaml:"seed"`
	Workers     int      `yaml:"workers"`
	UnbiasedPIE bool     `yaml:"unbiased_pie"`
}

// DefaultAnalysis returns the built-in analysis parameters. Seed 0 means a
// fresh seed per run; Workers 0 means one per CPU.
func DefaultAnalysis() AnalysisConfig {
	return AnalysisConfig{
		GroupColumn: "group",
		NMin:        DefaultNMin,
		NPerm:       DefaultNPerm,
	}
}

// LoadAnalysis reads a YAML file over the defaults
func LoadAnalysis(path string) (*AnalysisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.UnreadableInput(path, err)
	}
	cfg := DefaultAnalysis()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), fmt.Sprintf("parse %s", path))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks parameter ranges
func (c AnalysisConfig) Validate() error {
	if math.IsNaN(c.NMin) || math.IsInf(c.NMin, 0) || c.NMin <= 0 {
		return errors.ConfigInvalid(fmt.Sprintf("n_min must be positive, got %g", c.NMin))
	}
	if c.NPerm < 1 {
		return errors.ConfigInvalid(fmt.Sprintf("nperm must be at least 1, got %d", c.NPerm))
	}
	if c.Workers < 0 {
		return errors.ConfigInvalid(fmt.Sprintf("workers must not be negative, got %d", c.Workers))
	}
	seen := make(map[string]bool, len(c.Levels))
	for _, l := range c.Levels {
		if seen[l] {
			return errors.ConfigInvalid(fmt.Sprintf("level %q listed twice", l))
		}
		seen[l] = true
	}
	return nil
}
