package dynamo

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestStateIsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  bool
	}{
		{"finite", State{1, 2, 3}, true},
		{"empty", State{}, true},
		{"nan", State{1, math.NaN()}, false},
		{"inf", State{math.Inf(-1), 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateClone(t *testing.T) {
	a := State{1, 2, 3}
	c := a.Clone()
	c[0] = 99
	if a[0] != 1 || len(c) != 3 {
		t.Error("Clone shares storage")
	}
}

func TestLinspace(t *testing.T) {
	got := Linspace(365, 730, 366)
	if len(got) != 366 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0] != 365 || got[365] != 730 || got[1] != 366 {
		t.Errorf("unexpected endpoints %v %v %v", got[0], got[1], got[365])
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("not increasing at %d", i)
		}
	}

	if Linspace(0, 1, 0) != nil {
		t.Error("n=0 should return nil")
	}
	if one := Linspace(2, 5, 1); len(one) != 1 || one[0] != 2 {
		t.Errorf("n=1 = %v", one)
	}
}

func TestSpanLength(t *testing.T) {
	if l := (Span{Start: 730, End: 1095}).Length(); l != 365 {
		t.Errorf("Length = %v", l)
	}
}

func TestConfigError(t *testing.T) {
	err := error(&ConfigError{Source: "params.json", Field: "K_r", Value: -1.0, Range: "> 0"})

	if !errors.Is(err, ErrParameterBounds) {
		t.Error("ConfigError should wrap ErrParameterBounds")
	}
	msg := err.Error()
	for _, want := range []string{"K_r", "-1", "> 0", "params.json"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}

	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Field != "K_r" {
		t.Errorf("errors.As failed: %v", ce)
	}
}

func TestDivergenceError(t *testing.T) {
	err := error(&DivergenceError{Year: 12, Time: 4380, Component: "I_p", Value: 0})
	if !errors.Is(err, ErrDivergence) {
		t.Error("should wrap ErrDivergence")
	}
	if !strings.Contains(err.Error(), "year 12") || !strings.Contains(err.Error(), "I_p") {
		t.Errorf("unexpected message %q", err)
	}

	wrapped := error(&DivergenceError{Component: "r", Wrapped: ErrInvalidState})
	if !errors.Is(wrapped, ErrInvalidState) || !errors.Is(wrapped, ErrDivergence) {
		t.Error("should wrap both ErrDivergence and the cause")
	}
}

func TestSolverError(t *testing.T) {
	cause := &SimulationError{Step: 7, Time: 400, Wrapped: ErrStepTooSmall}
	err := error(&SolverError{Year: 1, Span: Span{Start: 365, End: 730}, Wrapped: cause})

	if !errors.Is(err, ErrSolverFailure) || !errors.Is(err, ErrStepTooSmall) {
		t.Error("should wrap ErrSolverFailure and the cause")
	}
	var se *SimulationError
	if !errors.As(err, &se) || se.Step != 7 {
		t.Errorf("errors.As SimulationError failed: %v", se)
	}
	if !strings.Contains(err.Error(), "[365, 730]") {
		t.Errorf("unexpected message %q", err)
	}
}
