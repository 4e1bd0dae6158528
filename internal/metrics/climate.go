package metrics

import (
	"math"

	"github.com/san-kum/climsim/internal/climate"
	"github.com/san-kum/climsim/internal/dynamo"
)

// PeakCO2 tracks the highest CO2 concentration seen.
type PeakCO2 struct {
	peak    float64
	samples int
}

func NewPeakCO2() *PeakCO2 { return &PeakCO2{} }

func (p *PeakCO2) Name() string { return "peak_co2" }

func (p *PeakCO2) Observe(x dynamo.State, t float64) {
	c := x[climate.IdxC]
	if p.samples == 0 || c > p.peak {
		p.peak = c
	}
	p.samples++
}

func (p *PeakCO2) Value() float64 { return p.peak }

func (p *PeakCO2) Reset() {
	p.peak = 0
	p.samples = 0
}

// GDPGap is the poorer-to-richer GDP ratio at the last observed point.
type GDPGap struct {
	ratio float64
}

func NewGDPGap() *GDPGap { return &GDPGap{} }

func (g *GDPGap) Name() string { return "gdp_gap" }

func (g *GDPGap) Observe(x dynamo.State, t float64) {
	r := x[climate.IdxR]
	if r == 0 {
		g.ratio = math.Inf(1)
		return
	}
	g.ratio = x[climate.IdxP] / r
}

func (g *GDPGap) Value() float64 { return g.ratio }

func (g *GDPGap) Reset() { g.ratio = 0 }

// InnovationFloor is the smallest innovation capacity of either country.
// Values near zero warn that the model is close to its singular region.
type InnovationFloor struct {
	floor   float64
	samples int
}

func NewInnovationFloor() *InnovationFloor { return &InnovationFloor{} }

func (f *InnovationFloor) Name() string { return "innovation_floor" }

func (f *InnovationFloor) Observe(x dynamo.State, t float64) {
	v := math.Min(x[climate.IdxIr], x[climate.IdxIp])
	if f.samples == 0 || v < f.floor {
		f.floor = v
	}
	f.samples++
}

func (f *InnovationFloor) Value() float64 { return f.floor }

func (f *InnovationFloor) Reset() {
	f.floor = 0
	f.samples = 0
}

// GlobalGrowth is final global GDP (r + p) relative to the first sample.
type GlobalGrowth struct {
	first   float64
	last    float64
	samples int
}

func NewGlobalGrowth() *GlobalGrowth { return &GlobalGrowth{} }

func (g *GlobalGrowth) Name() string { return "global_growth" }

func (g *GlobalGrowth) Observe(x dynamo.State, t float64) {
	v := x[climate.IdxR] + x[climate.IdxP]
	if g.samples == 0 {
		g.first = v
	}
	g.last = v
	g.samples++
}

func (g *GlobalGrowth) Value() float64 {
	if g.samples == 0 || g.first == 0 {
		return 0
	}
	return g.last / g.first
}

func (g *GlobalGrowth) Reset() {
	g.first = 0
	g.last = 0
	g.samples = 0
}

// Defaults returns the metrics attached to every run.
func Defaults() []dynamo.Metric {
	return []dynamo.Metric{
		NewPeakCO2(),
		NewGDPGap(),
		NewInnovationFloor(),
		NewGlobalGrowth(),
		NewStability(1e6),
	}
}
