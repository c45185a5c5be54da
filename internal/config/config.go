// Package config describes simulation runs as YAML documents: which
// mechanism to build, its numeric parameters, and how to integrate it.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDt       = 0.01
	DefaultDuration = 10.0
)

type Config struct {
	Model            string             `yaml:"model"`
	Integrator       string             `yaml:"integrator"`
	Dt               float64            `yaml:"dt"`
	Duration         float64            `yaml:"duration"`
	Seed             int64              `yaml:"seed"`
	CorrectionPasses int                `yaml:"correction_passes"`
	Params           map[string]float64 `yaml:"params"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:      "pendulum",
		Integrator: "rk4",
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Params:     map[string]float64{},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model must be set")
	}
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %v", c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", c.Duration)
	}
	if c.CorrectionPasses < 0 {
		return fmt.Errorf("correction_passes must not be negative, got %d", c.CorrectionPasses)
	}
	return nil
}

// Merge overlays non-zero fields of other onto a copy of c. Params merge
// key by key, with other winning.
func (c *Config) Merge(other *Config) *Config {
	out := *c
	out.Params = map[string]float64{}
	for k, v := range c.Params {
		out.Params[k] = v
	}
	if other == nil {
		return &out
	}
	if other.Model != "" {
		out.Model = other.Model
	}
	if other.Integrator != "" {
		out.Integrator = other.Integrator
	}
	if other.Dt != 0 {
		out.Dt = other.Dt
	}
	if other.Duration != 0 {
		out.Duration = other.Duration
	}
	if other.Seed != 0 {
		out.Seed = other.Seed
	}
	if other.CorrectionPasses != 0 {
		out.CorrectionPasses = other.CorrectionPasses
	}
	for k, v := range other.Params {
		out.Params[k] = v
	}
	return &out
}
