package integrators

import (
	"context"
	"testing"

	"github.com/san-kum/climsim/internal/dynamo"
)

type benchDynamics struct{}

func (b *benchDynamics) StateDim() int { return 2 }
func (b *benchDynamics) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func BenchmarkRK45_Year(b *testing.B) {
	solver := NewRK45()
	dyn := &benchDynamics{}
	span := dynamo.Span{Start: 0, End: 365}
	tEval := dynamo.Linspace(0, 365, 366)
	x := dynamo.State{1.0, 0.0}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := solver.Solve(context.Background(), dyn, span, x, tEval); err != nil {
			b.Fatal(err)
		}
	}
}

type benchLogistic struct{}

func (b *benchLogistic) StateDim() int { return 5 }
func (b *benchLogistic) Derive(x dynamo.State, t float64) dynamo.State {
	dx := make(dynamo.State, 5)
	for i := range x {
		dx[i] = 3e-3 * (1 - x[i]/1.1) * x[i]
	}
	return dx
}

func BenchmarkRK45_Logistic5(b *testing.B) {
	solver := NewRK45()
	dyn := &benchLogistic{}
	span := dynamo.Span{Start: 0, End: 365}
	tEval := dynamo.Linspace(0, 365, 366)
	x := dynamo.State{1, 0.5, 1, 0.5, 1}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := solver.Solve(context.Background(), dyn, span, x, tEval); err != nil {
			b.Fatal(err)
		}
	}
}
