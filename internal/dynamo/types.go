package dynamo

import (
	"context"
	"math"
)

// State is a point in the system's phase space, ordered by component index.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// System is an autonomous-or-not ODE right-hand side. Derive must be pure:
// identical (x, t) always yields identical output.
type System interface {
	Derive(x State, t float64) State
	StateDim() int
}

// Span is a closed integration interval [Start, End].
type Span struct {
	Start float64
	End   float64
}

func (s Span) Length() float64 { return s.End - s.Start }

// Solution holds the solver output at the requested evaluation times.
type Solution struct {
	Times       []float64
	States      []State
	Steps       int
	Rejected    int
	Evaluations int
}

// Solver integrates sys from y0 over span and reports the state at each of
// tEval, which must be sorted and lie inside span.
type Solver interface {
	Solve(ctx context.Context, sys System, span Span, y0 State, tEval []float64) (*Solution, error)
}

type Metric interface {
	Name() string
	Observe(x State, t float64)
	Value() float64
	Reset()
}

// Linspace returns n evenly spaced values over [start, end], both included.
func Linspace(start, end float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (end - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = end
	return out
}
