package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/climsim/internal/dynamo"
)

const (
	DefaultNumYears     = 50
	DefaultDaysPerYear  = 365
	DefaultOutputDir    = "./outputs/control"
	DefaultICsPath      = "./params/initial_conditions.json"
	DefaultParamsPath   = "./params/ODE_params.json"
	DefaultLogLevel     = "info"
	DefaultRtol         = 1e-3
	DefaultAtol         = 1e-6
	DefaultMaxSteps     = 100000
	DefaultDataDir      = ".climsim"
	DefaultPlotFileMode = 0644
)

// Config is the run configuration. File paths select which initial
// conditions and parameters feed the model; Preset, when set, replaces both.
type Config struct {
	NumYears          int          `yaml:"num_years"`
	DaysPerYear       int          `yaml:"days_per_year"`
	InitialConditions string       `yaml:"initial_conditions"`
	Parameters        string       `yaml:"parameters"`
	Preset            string       `yaml:"preset,omitempty"`
	OutputDir         string       `yaml:"output_dir"`
	DataDir           string       `yaml:"data_dir"`
	Plots             bool         `yaml:"plots"`
	LogLevel          string       `yaml:"log_level"`
	Solver            SolverConfig `yaml:"solver"`
}

type SolverConfig struct {
	Rtol     float64 `yaml:"rtol"`
	Atol     float64 `yaml:"atol"`
	MaxSteps int     `yaml:"max_steps"`
}

func DefaultConfig() *Config {
	return &Config{
		NumYears:          DefaultNumYears,
		DaysPerYear:       DefaultDaysPerYear,
		InitialConditions: DefaultICsPath,
		Parameters:        DefaultParamsPath,
		OutputDir:         DefaultOutputDir,
		DataDir:           DefaultDataDir,
		Plots:             true,
		LogLevel:          DefaultLogLevel,
		Solver: SolverConfig{
			Rtol:     DefaultRtol,
			Atol:     DefaultAtol,
			MaxSteps: DefaultMaxSteps,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		if ce, ok := err.(*dynamo.ConfigError); ok {
			ce.Source = path
		}
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, DefaultPlotFileMode)
}

func (c *Config) Validate() error {
	switch {
	case c.NumYears < 0:
		return &dynamo.ConfigError{Field: "num_years", Value: c.NumYears, Range: ">= 0"}
	case c.DaysPerYear < 1:
		return &dynamo.ConfigError{Field: "days_per_year", Value: c.DaysPerYear, Range: ">= 1"}
	case c.Solver.Rtol <= 0:
		return &dynamo.ConfigError{Field: "solver.rtol", Value: c.Solver.Rtol, Range: "> 0"}
	case c.Solver.Atol <= 0:
		return &dynamo.ConfigError{Field: "solver.atol", Value: c.Solver.Atol, Range: "> 0"}
	case c.Solver.MaxSteps < 1:
		return &dynamo.ConfigError{Field: "solver.max_steps", Value: c.Solver.MaxSteps, Range: ">= 1"}
	}
	return nil
}
