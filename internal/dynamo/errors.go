package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidState indicates a state vector with NaN or Inf components.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrDivergence indicates a denominator reached zero or the derivative
	// became non-finite.
	ErrDivergence = errors.New("dynamo: numerical divergence")

	// ErrSolverFailure indicates the solver could not complete a span.
	ErrSolverFailure = errors.New("dynamo: solver failed to converge")

	// ErrContextCanceled indicates the simulation was interrupted.
	ErrContextCanceled = errors.New("dynamo: simulation canceled by context")

	// ErrStepTooSmall indicates adaptive timestep became too small.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrTooManySteps indicates the solver exhausted its step budget.
	ErrTooManySteps = errors.New("dynamo: maximum number of steps exceeded")

	// ErrDimensionMismatch indicates mismatched state/system dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")
)

// SimulationError wraps an error with solver context. State is the last
// state the solver was evaluating when it gave up.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

// ConfigError reports a parameter or initial condition outside its
// permitted range.
type ConfigError struct {
	Source string
	Field  string
	Value  any
	Range  string
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: %s = %v is out of range: must be %s", e.Field, e.Value, e.Range)
	if e.Source != "" {
		msg += fmt.Sprintf(" (in %q)", e.Source)
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return ErrParameterBounds }

// DivergenceError reports a state component that left the region where the
// model is defined.
type DivergenceError struct {
	Year      int
	Time      float64
	Component string
	Value     float64
	Wrapped   error
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("year %d (t=%.4f): %s = %g: numerical divergence", e.Year, e.Time, e.Component, e.Value)
}

func (e *DivergenceError) Unwrap() []error {
	if e.Wrapped == nil {
		return []error{ErrDivergence}
	}
	return []error{ErrDivergence, e.Wrapped}
}

// SolverError reports a segment the solver could not integrate.
type SolverError struct {
	Year    int
	Span    Span
	Wrapped error
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("year %d span [%g, %g]: %v", e.Year, e.Span.Start, e.Span.End, e.Wrapped)
}

func (e *SolverError) Unwrap() []error {
	return []error{ErrSolverFailure, e.Wrapped}
}
