package integrators

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/climsim/internal/dynamo"
)

type harmonicOscillator struct{}

func (h *harmonicOscillator) StateDim() int { return 2 }

func (h *harmonicOscillator) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (h *harmonicOscillator) Energy(x dynamo.State) float64 {
	return 0.5 * (x[0]*x[0] + x[1]*x[1])
}

type decay struct{ rate float64 }

func (d *decay) StateDim() int { return 1 }

func (d *decay) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{-d.rate * x[0]}
}

type blowup struct{}

func (b *blowup) StateDim() int { return 1 }

func (b *blowup) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{x[0] * x[0]}
}

func TestRK45_Decay(t *testing.T) {
	solver := NewRK45().WithTolerance(1e-9, 1e-12)
	tEval := dynamo.Linspace(0, 2, 21)

	sol, err := solver.Solve(context.Background(), &decay{rate: 1.5}, dynamo.Span{Start: 0, End: 2}, dynamo.State{1}, tEval)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}

	if len(sol.States) != len(tEval) {
		t.Fatalf("expected %d states, got %d", len(tEval), len(sol.States))
	}

	for i, te := range tEval {
		want := math.Exp(-1.5 * te)
		if math.Abs(sol.States[i][0]-want) > 1e-7 {
			t.Errorf("t=%.2f: got %.10f, want %.10f", te, sol.States[i][0], want)
		}
	}
}

func TestRK45_DefaultTolerance(t *testing.T) {
	solver := NewRK45()
	sol, err := solver.Solve(context.Background(), &decay{rate: 0.01}, dynamo.Span{Start: 0, End: 365}, dynamo.State{1}, dynamo.Linspace(0, 365, 366))
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}

	got := sol.States[len(sol.States)-1][0]
	want := math.Exp(-3.65)
	if math.Abs(got-want)/want > 1e-2 {
		t.Errorf("final value %.6f, want %.6f", got, want)
	}
	if sol.Steps == 0 || sol.Evaluations == 0 {
		t.Errorf("expected solver statistics, got steps=%d evals=%d", sol.Steps, sol.Evaluations)
	}
}

func TestRK45_EnergyConservation(t *testing.T) {
	solver := NewRK45().WithTolerance(1e-10, 1e-12)
	dyn := &harmonicOscillator{}
	x0 := dynamo.State{1.0, 0.0}

	sol, err := solver.Solve(context.Background(), dyn, dynamo.Span{Start: 0, End: 20}, x0, []float64{20})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}

	drift := math.Abs(dyn.Energy(sol.States[0])-dyn.Energy(x0)) / dyn.Energy(x0)
	if drift > 1e-6 {
		t.Errorf("RK45 energy drift too high: %e", drift)
	}
}

func TestRK45_EvaluationTimes(t *testing.T) {
	solver := NewRK45()
	x0 := dynamo.State{1.0, 0.0}
	tEval := dynamo.Linspace(365, 730, 366)

	sol, err := solver.Solve(context.Background(), &harmonicOscillator{}, dynamo.Span{Start: 365, End: 730}, x0, tEval)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}

	for i := range tEval {
		if sol.Times[i] != tEval[i] {
			t.Fatalf("time %d: got %v, want %v", i, sol.Times[i], tEval[i])
		}
	}

	if sol.States[0][0] != x0[0] || sol.States[0][1] != x0[1] {
		t.Errorf("first output should equal the initial state, got %v", sol.States[0])
	}

	sol.States[0][0] = 42
	if x0[0] == 42 {
		t.Error("Solve aliased the initial state")
	}
}

func TestRK45_DenseOutputMatchesStepEnd(t *testing.T) {
	solver := NewRK45().WithTolerance(1e-8, 1e-10)
	dyn := &harmonicOscillator{}

	coarse, err := solver.Solve(context.Background(), dyn, dynamo.Span{Start: 0, End: 5}, dynamo.State{1, 0}, dynamo.Linspace(0, 5, 501))
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}

	for i, te := range coarse.Times {
		if math.Abs(coarse.States[i][0]-math.Cos(te)) > 1e-6 {
			t.Fatalf("t=%.3f: got %.8f, want %.8f", te, coarse.States[i][0], math.Cos(te))
		}
	}
}

func TestRK45_InvalidInput(t *testing.T) {
	solver := NewRK45()
	ctx := context.Background()

	tests := []struct {
		name  string
		sys   dynamo.System
		span  dynamo.Span
		y0    dynamo.State
		tEval []float64
	}{
		{"empty span", &decay{1}, dynamo.Span{Start: 1, End: 1}, dynamo.State{1}, nil},
		{"reversed span", &decay{1}, dynamo.Span{Start: 2, End: 1}, dynamo.State{1}, nil},
		{"dimension mismatch", &decay{1}, dynamo.Span{Start: 0, End: 1}, dynamo.State{1, 2}, nil},
		{"eval outside span", &decay{1}, dynamo.Span{Start: 0, End: 1}, dynamo.State{1}, []float64{0, 2}},
		{"unsorted eval", &decay{1}, dynamo.Span{Start: 0, End: 1}, dynamo.State{1}, []float64{0.5, 0.2}},
		{"nan initial state", &decay{1}, dynamo.Span{Start: 0, End: 1}, dynamo.State{math.NaN()}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := solver.Solve(ctx, tt.sys, tt.span, tt.y0, tt.tEval); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestRK45_Blowup(t *testing.T) {
	solver := NewRK45()
	solver.MaxSteps = 5000

	_, err := solver.Solve(context.Background(), &blowup{}, dynamo.Span{Start: 0, End: 2}, dynamo.State{1}, []float64{2})
	if err == nil {
		t.Fatal("expected failure integrating through a singularity")
	}

	var simErr *dynamo.SimulationError
	if !errors.As(err, &simErr) {
		t.Fatalf("expected SimulationError, got %T: %v", err, err)
	}
	if simErr.Time >= 1.0+1e-6 {
		t.Errorf("solver passed the singularity at t=1: stopped at %.6f", simErr.Time)
	}
}

func TestRK45_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRK45().Solve(ctx, &decay{1}, dynamo.Span{Start: 0, End: 1}, dynamo.State{1}, []float64{1})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if !errors.Is(err, dynamo.ErrContextCanceled) {
		t.Errorf("expected ErrContextCanceled, got %v", err)
	}
}

func TestRK45_WithToleranceCopies(t *testing.T) {
	base := NewRK45()
	tight := base.WithTolerance(1e-9, 0)

	if base.Rtol != DefaultRtol {
		t.Errorf("WithTolerance mutated receiver: rtol=%g", base.Rtol)
	}
	if tight.Rtol != 1e-9 || tight.Atol != DefaultAtol {
		t.Errorf("unexpected tolerances rtol=%g atol=%g", tight.Rtol, tight.Atol)
	}
}
