package climate

import (
	"math"

	"github.com/san-kum/climsim/internal/dynamo"
)

// MaxDisasterFraction caps a single disaster's GDP loss.
const MaxDisasterFraction = 0.9

type Model struct {
	params Params
}

func New(p Params) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Model{params: p}, nil
}

func (m *Model) Params() Params { return m.params }

func (m *Model) StateDim() int { return StateDim }

// Derive evaluates the right-hand side. Zero innovation is not guarded and
// yields non-finite output; callers use Diagnose to name the culprit.
func (m *Model) Derive(x dynamo.State, t float64) dynamo.State {
	p := &m.params
	r, gp, ir, ip, _ := x[IdxR], x[IdxP], x[IdxIr], x[IdxIp], x[IdxC]

	dr := p.Gr * (1 - r/(p.Kr*ir)) * r
	dp := p.Gp * (1 - gp/(p.Kp*ip)) * gp

	return dynamo.State{
		dr,
		dp,
		p.In * dr * (1 - p.Mp),
		p.In * (dp + dr*p.Mp),
		p.Gamma * (r/(p.Alpha*ir) + gp/(p.Beta*ip)),
	}
}

// IsShockYear reports whether a disaster strikes at the end of year.
func (m *Model) IsShockYear(year int) bool {
	return year > 0 && year%m.params.F == 0
}

// Disaster returns the GDP lost to a disaster at the end of year for a
// country with the given GDP, using the model's intensity D. The loss is
// 0.9 * gdp * (1 - exp(-D*co2/gdp)) in shock years and 0 otherwise.
func (m *Model) Disaster(year, interval int, gdp, co2 float64) float64 {
	if year == 0 || interval <= 0 || year%interval != 0 {
		return 0
	}
	return MaxDisasterFraction * gdp * (1 - math.Exp(-m.params.D*co2/gdp))
}

// Diagnose returns the first component at which x leaves the model's
// domain: a non-finite value anywhere, or non-positive innovation.
func (m *Model) Diagnose(x dynamo.State) (string, float64, bool) {
	for i, v := range x {
		if i >= StateDim {
			break
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ComponentNames[i], v, true
		}
	}
	for _, i := range []int{IdxIr, IdxIp} {
		if i < len(x) && x[i] <= 0 {
			return ComponentNames[i], x[i], true
		}
	}
	return "", 0, false
}
