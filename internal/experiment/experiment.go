package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/climsim/internal/climate"
	"github.com/san-kum/climsim/internal/config"
	"github.com/san-kum/climsim/internal/dynamo"
	"github.com/san-kum/climsim/internal/integrators"
	"github.com/san-kum/climsim/internal/logging"
	"github.com/san-kum/climsim/internal/metrics"
	"github.com/san-kum/climsim/internal/sim"
)

// Config is everything one run needs, already resolved from files or a
// preset.
type Config struct {
	Name    string
	Initial climate.InitialConditions
	Params  climate.Params
	Sim     sim.Config
	Solver  config.SolverConfig
}

// FromRunConfig resolves the initial conditions and parameters named by a
// run config. A preset takes precedence over the file paths.
func FromRunConfig(rc *config.Config) (Config, error) {
	cfg := Config{
		Sim:    sim.Config{NumYears: rc.NumYears, DaysPerYear: rc.DaysPerYear},
		Solver: rc.Solver,
	}

	if rc.Preset != "" {
		p, err := config.GetPreset(rc.Preset)
		if err != nil {
			return cfg, err
		}
		cfg.Name = rc.Preset
		cfg.Initial = p.Initial
		cfg.Params = p.Params
		return cfg, nil
	}

	ic, err := config.LoadInitialConditions(rc.InitialConditions)
	if err != nil {
		return cfg, fmt.Errorf("initial conditions: %w", err)
	}
	params, err := config.LoadParams(rc.Parameters)
	if err != nil {
		return cfg, fmt.Errorf("parameters: %w", err)
	}
	cfg.Name = "custom"
	cfg.Initial = ic
	cfg.Params = params
	return cfg, nil
}

// WithOverrides returns a copy of cfg with the named parameters replaced.
func (c Config) WithOverrides(overrides map[string]float64) (Config, error) {
	for name, v := range overrides {
		p, err := c.Params.With(name, v)
		if err != nil {
			if s := config.Suggest(name, climate.ParamNames); s != "" && s != name {
				return c, fmt.Errorf("%w (did you mean %q?)", err, s)
			}
			return c, err
		}
		c.Params = p
	}
	return c, nil
}

type Experiment struct {
	cfg       Config
	simulator *sim.Simulator
	logger    *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Experiment {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Experiment{cfg: cfg, logger: logger}
}

// Setup builds the model, the solver and the default metrics. Extra metrics
// are attached after the defaults.
func (e *Experiment) Setup(extra ...dynamo.Metric) error {
	model, err := climate.New(e.cfg.Params)
	if err != nil {
		return err
	}
	if err := e.cfg.Initial.Validate(); err != nil {
		return err
	}

	solver := integrators.NewRK45().WithTolerance(e.cfg.Solver.Rtol, e.cfg.Solver.Atol)
	if e.cfg.Solver.MaxSteps > 0 {
		solver.MaxSteps = e.cfg.Solver.MaxSteps
	}

	e.simulator = sim.New(model, solver, sim.WithLogger(e.logger))
	for _, m := range metrics.Defaults() {
		e.simulator.AddMetric(m)
	}
	for _, m := range extra {
		e.simulator.AddMetric(m)
	}
	e.simulator.AddObserver(&traceObserver{logger: e.logger})
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Trajectory, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return e.simulator.Run(ctx, e.cfg.Initial, e.cfg.Sim)
}

func (e *Experiment) Config() Config { return e.cfg }

// GetSimulator returns the underlying simulator for adding observers
func (e *Experiment) GetSimulator() *sim.Simulator {
	return e.simulator
}

type traceObserver struct {
	logger *slog.Logger
}

func (o *traceObserver) OnSegment(seg sim.Segment, tr *sim.Trajectory) {
	if !o.logger.Enabled(context.Background(), logging.LevelTrace) {
		return
	}
	x := tr.States[seg.Last]
	o.logger.Log(context.Background(), logging.LevelTrace, "year state",
		"year", seg.Year,
		"r", x[climate.IdxR],
		"p", x[climate.IdxP],
		"I_r", x[climate.IdxIr],
		"I_p", x[climate.IdxIp],
		"c", x[climate.IdxC],
	)
}
