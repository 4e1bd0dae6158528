package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/san-kum/climsim/internal/climate"
	"github.com/san-kum/climsim/internal/dynamo"
)

// Simulator drives the climate model one year at a time. Each year is a
// separate solver call so that disasters, which are discontinuities in r and
// p, always fall on a call boundary.
type Simulator struct {
	model     *climate.Model
	solver    dynamo.Solver
	metrics   []dynamo.Metric
	observers []Observer
	logger    *slog.Logger
}

type Option func(*Simulator)

func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(model *climate.Model, solver dynamo.Solver, opts ...Option) *Simulator {
	s := &Simulator{
		model:     model,
		solver:    solver,
		metrics:   make([]dynamo.Metric, 0),
		observers: make([]Observer, 0),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) AddMetric(m dynamo.Metric) { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer)    { s.observers = append(s.observers, o) }

// Run simulates years 0..cfg.NumYears inclusive. On failure the trajectory
// built so far is returned together with the error.
func (s *Simulator) Run(ctx context.Context, ic climate.InitialConditions, cfg Config) (*Trajectory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ic.Validate(); err != nil {
		return nil, err
	}

	tr := newTrajectory(cfg)
	tr.append(0, ic.State())

	days := float64(cfg.DaysPerYear)

	for year := 0; year <= cfg.NumYears; year++ {
		select {
		case <-ctx.Done():
			return tr, fmt.Errorf("year %d: %w: %w", year, dynamo.ErrContextCanceled, ctx.Err())
		default:
		}

		span := dynamo.Span{Start: float64(year) * days, End: float64(year+1) * days}
		tEval := dynamo.Linspace(span.Start, span.End, cfg.DaysPerYear+1)
		initial := tr.Last().Clone()

		sol, err := s.solver.Solve(ctx, s.model, span, initial, tEval)
		if err != nil {
			return tr, s.segmentError(year, span, err)
		}
		if len(sol.States) != len(tEval) {
			return tr, &dynamo.SolverError{
				Year:    year,
				Span:    span,
				Wrapped: fmt.Errorf("solver returned %d points, want %d", len(sol.States), len(tEval)),
			}
		}

		seg := Segment{
			Year:        year,
			Span:        span,
			First:       tr.Len(),
			Initial:     initial,
			Steps:       sol.Steps,
			Rejected:    sol.Rejected,
			Evaluations: sol.Evaluations,
		}

		// The first output point is the segment's initial condition, which
		// is already the trajectory's last point.
		for i := 1; i < len(sol.States); i++ {
			if name, v, bad := s.model.Diagnose(sol.States[i]); bad {
				return tr, &dynamo.DivergenceError{Year: year, Time: sol.Times[i], Component: name, Value: v}
			}
			tr.append(sol.Times[i], sol.States[i])
		}
		seg.Last = tr.Len() - 1

		if s.model.IsShockYear(year) {
			if err := s.applyShock(tr, year); err != nil {
				return tr, err
			}
		}

		tr.Segments = append(tr.Segments, seg)
		s.logger.Debug("segment complete",
			"year", year,
			"t_end", span.End,
			"steps", sol.Steps,
			"rejected", sol.Rejected,
			"evals", sol.Evaluations,
		)
		for _, obs := range s.observers {
			obs.OnSegment(seg, tr)
		}
	}

	for _, m := range s.metrics {
		m.Reset()
		for i, x := range tr.States {
			m.Observe(x, tr.Times[i])
		}
		tr.Metrics[m.Name()] = m.Value()
	}

	return tr, nil
}

// applyShock reduces r and p of the trajectory's last point. Both losses
// are computed from the same pre-shock snapshot.
func (s *Simulator) applyShock(tr *Trajectory, year int) error {
	idx := tr.Len() - 1
	x := tr.States[idx]
	t := tr.Times[idx]
	r, p, c := x[climate.IdxR], x[climate.IdxP], x[climate.IdxC]

	if r <= 0 {
		return &dynamo.DivergenceError{Year: year, Time: t, Component: "r", Value: r}
	}
	if p <= 0 {
		return &dynamo.DivergenceError{Year: year, Time: t, Component: "p", Value: p}
	}

	interval := s.model.Params().F
	lossR := s.model.Disaster(year, interval, r, c)
	lossP := s.model.Disaster(year, interval, p, c)

	x[climate.IdxR] = r - lossR
	x[climate.IdxP] = p - lossP

	tr.Shocks = append(tr.Shocks, ShockEvent{
		Year:  year,
		Time:  t,
		Index: idx,
		R:     r,
		P:     p,
		C:     c,
		LossR: lossR,
		LossP: lossP,
	})

	s.logger.Info("disaster", "year", year, "co2", c, "loss_r", lossR, "loss_p", lossP)
	return nil
}

func (s *Simulator) segmentError(year int, span dynamo.Span, err error) error {
	if errors.Is(err, dynamo.ErrContextCanceled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("year %d: %w", year, err)
	}

	var simErr *dynamo.SimulationError
	if errors.As(err, &simErr) {
		if name, v, bad := s.model.Diagnose(simErr.State); bad {
			return &dynamo.DivergenceError{Year: year, Time: simErr.Time, Component: name, Value: v, Wrapped: err}
		}
	}

	return &dynamo.SolverError{Year: year, Span: span, Wrapped: err}
}
