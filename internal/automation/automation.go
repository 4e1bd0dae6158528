package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/climsim/internal/config"
	"github.com/san-kum/climsim/internal/dynamo"
	"github.com/san-kum/climsim/internal/experiment"
	"github.com/san-kum/climsim/internal/sim"
)

// Scenario is a scripted sequence of runs executed one after another.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is a single run. Preset, or the file pair, picks the
// starting point; Params then overrides individual parameters.
type ScenarioStep struct {
	Name              string             `yaml:"name"`
	Preset            string             `yaml:"preset"`
	InitialConditions string             `yaml:"initial_conditions"`
	Parameters        string             `yaml:"parameters"`
	NumYears          *int               `yaml:"num_years"`
	Params            map[string]float64 `yaml:"params"`
}

// StepResult is the outcome of one step. Err is set when the run failed;
// Trajectory then holds whatever was computed before the failure.
type StepResult struct {
	Step       ScenarioStep
	Config     experiment.Config
	Trajectory *sim.Trajectory
	Err        error
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("%s: scenario has no steps", path)
	}
	for i, step := range scenario.Steps {
		if step.Preset == "" && (step.InitialConditions == "" || step.Parameters == "") {
			return nil, fmt.Errorf("%s: step %d needs a preset or both initial_conditions and parameters", path, i+1)
		}
	}
	return &scenario, nil
}

// Resolve builds the experiment config for a step on top of base.
func (s ScenarioStep) Resolve(base *config.Config) (experiment.Config, error) {
	rc := *base
	rc.Preset = s.Preset
	if s.InitialConditions != "" {
		rc.InitialConditions = s.InitialConditions
	}
	if s.Parameters != "" {
		rc.Parameters = s.Parameters
	}
	if s.NumYears != nil {
		rc.NumYears = *s.NumYears
	}
	if err := rc.Validate(); err != nil {
		return experiment.Config{}, err
	}

	cfg, err := experiment.FromRunConfig(&rc)
	if err != nil {
		return cfg, err
	}
	cfg, err = cfg.WithOverrides(s.Params)
	if err != nil {
		return cfg, err
	}
	if s.Name != "" {
		cfg.Name = s.Name
	}
	return cfg, nil
}

// RunScenario executes every step in order. A failed step is recorded and
// the next step still runs; cancellation stops the whole scenario.
func RunScenario(ctx context.Context, scenario *Scenario, base *config.Config, logger *slog.Logger) ([]StepResult, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, err)
		}
		logger.Info("running step", "step", i+1, "of", len(scenario.Steps), "name", step.Name, "preset", step.Preset)

		res := StepResult{Step: step}
		cfg, err := step.Resolve(base)
		if err != nil {
			res.Err = fmt.Errorf("step %d: %w", i+1, err)
			results = append(results, res)
			continue
		}
		res.Config = cfg

		exp := experiment.New(cfg, logger)
		if err := exp.Setup(); err != nil {
			res.Err = fmt.Errorf("step %d setup: %w", i+1, err)
			results = append(results, res)
			continue
		}

		res.Trajectory, err = exp.Run(ctx)
		if err != nil {
			res.Err = fmt.Errorf("step %d run: %w", i+1, err)
		}
		results = append(results, res)

		if errors.Is(err, dynamo.ErrContextCanceled) {
			return results, res.Err
		}
	}

	return results, nil
}
