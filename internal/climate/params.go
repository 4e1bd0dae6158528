package climate

import (
	"fmt"
	"math"

	"github.com/san-kum/climsim/internal/dynamo"
)

const (
	IdxR = iota
	IdxP
	IdxIr
	IdxIp
	IdxC

	StateDim
)

// ComponentNames is indexed by state position.
var ComponentNames = [StateDim]string{"r", "p", "I_r", "I_p", "c"}

// ComponentIndex maps a component name to its state position.
func ComponentIndex(name string) (int, bool) {
	for i, n := range ComponentNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// Params is the fixed parameter set of one simulation run.
type Params struct {
	Gr    float64 `yaml:"G_r" json:"G_r"`
	Gp    float64 `yaml:"G_p" json:"G_p"`
	Kr    float64 `yaml:"K_r" json:"K_r"`
	Kp    float64 `yaml:"K_p" json:"K_p"`
	Gamma float64 `yaml:"gamma" json:"gamma"`
	Alpha float64 `yaml:"alpha" json:"alpha"`
	Beta  float64 `yaml:"beta" json:"beta"`
	D     float64 `yaml:"D" json:"D"`
	F     int     `yaml:"f" json:"f"`
	In    float64 `yaml:"I_n" json:"I_n"`
	Mp    float64 `yaml:"M_p" json:"M_p"`
}

// InitialConditions are the user-supplied starting values. Innovation is not
// supplied: it starts equal to each country's GDP.
type InitialConditions struct {
	R float64 `yaml:"r" json:"r"`
	P float64 `yaml:"p" json:"p"`
	C float64 `yaml:"c" json:"c"`
}

// Validate checks every parameter against its permitted range and returns
// the first violation as a *dynamo.ConfigError.
func (p Params) Validate() error {
	checks := []struct {
		field string
		value float64
		ok    bool
		rng   string
	}{
		{"G_r", p.Gr, p.Gr >= 0, ">= 0"},
		{"G_p", p.Gp, p.Gp >= 0, ">= 0"},
		{"K_r", p.Kr, p.Kr > 0, "> 0"},
		{"K_p", p.Kp, p.Kp > 0, "> 0"},
		{"gamma", p.Gamma, p.Gamma >= 0, ">= 0"},
		{"alpha", p.Alpha, p.Alpha > 0, "> 0"},
		{"beta", p.Beta, p.Beta > 0, "> 0"},
		{"D", p.D, p.D >= 0, ">= 0"},
		{"I_n", p.In, p.In >= 0, ">= 0"},
		{"M_p", p.Mp, p.Mp >= 0 && p.Mp <= 1, "in [0, 1]"},
	}
	for _, c := range checks {
		if !c.ok || math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return &dynamo.ConfigError{Field: c.field, Value: c.value, Range: c.rng}
		}
	}
	if p.F < 1 {
		return &dynamo.ConfigError{Field: "f", Value: p.F, Range: "a positive integer"}
	}
	return nil
}

// Validate requires strictly positive GDP, since the disaster loss divides
// by it, and non-negative CO2.
func (ic InitialConditions) Validate() error {
	checks := []struct {
		field string
		value float64
		ok    bool
		rng   string
	}{
		{"r", ic.R, ic.R > 0, "> 0"},
		{"p", ic.P, ic.P > 0, "> 0"},
		{"c", ic.C, ic.C >= 0, ">= 0"},
	}
	for _, c := range checks {
		if !c.ok || math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return &dynamo.ConfigError{Field: c.field, Value: c.value, Range: c.rng}
		}
	}
	return nil
}

// State returns the full initial state vector [r, p, r, p, c].
func (ic InitialConditions) State() dynamo.State {
	return dynamo.State{ic.R, ic.P, ic.R, ic.P, ic.C}
}

// ParamNames lists the parameter keys in file order.
var ParamNames = []string{"G_r", "G_p", "K_r", "K_p", "gamma", "alpha", "beta", "D", "f", "I_n", "M_p"}

// With returns a copy of p with one parameter replaced. f must be a whole
// number. The result is not validated.
func (p Params) With(name string, v float64) (Params, error) {
	switch name {
	case "G_r":
		p.Gr = v
	case "G_p":
		p.Gp = v
	case "K_r":
		p.Kr = v
	case "K_p":
		p.Kp = v
	case "gamma":
		p.Gamma = v
	case "alpha":
		p.Alpha = v
	case "beta":
		p.Beta = v
	case "D":
		p.D = v
	case "f":
		if v != math.Trunc(v) || v < 1 || v > math.MaxInt32 {
			return p, &dynamo.ConfigError{Field: "f", Value: v, Range: "a positive integer"}
		}
		p.F = int(v)
	case "I_n":
		p.In = v
	case "M_p":
		p.Mp = v
	default:
		return p, fmt.Errorf("unknown parameter %q", name)
	}
	return p, nil
}

// Get is the inverse of With.
func (p Params) Get(name string) (float64, bool) {
	switch name {
	case "G_r":
		return p.Gr, true
	case "G_p":
		return p.Gp, true
	case "K_r":
		return p.Kr, true
	case "K_p":
		return p.Kp, true
	case "gamma":
		return p.Gamma, true
	case "alpha":
		return p.Alpha, true
	case "beta":
		return p.Beta, true
	case "D":
		return p.D, true
	case "f":
		return float64(p.F), true
	case "I_n":
		return p.In, true
	case "M_p":
		return p.Mp, true
	}
	return 0, false
}
