package metrics

import (
	"math"

	"github.com/san-kum/climsim/internal/climate"
	"github.com/san-kum/climsim/internal/dynamo"
)

// Stability is the fraction of samples inside the model's domain: every
// component finite with magnitude at most threshold, and both innovation
// levels positive.
type Stability struct {
	threshold float64
	inside    int
	samples   int
	first     float64
}

func NewStability(threshold float64) *Stability {
	return &Stability{threshold: threshold, first: math.NaN()}
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(x dynamo.State, t float64) {
	s.samples++
	if s.inDomain(x) {
		s.inside++
		return
	}
	if math.IsNaN(s.first) {
		s.first = t
	}
}

func (s *Stability) inDomain(x dynamo.State) bool {
	for _, v := range x {
		// NaN fails the comparison.
		if !(math.Abs(v) <= s.threshold) {
			return false
		}
	}
	if len(x) == climate.StateDim && (x[climate.IdxIr] <= 0 || x[climate.IdxIp] <= 0) {
		return false
	}
	return true
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return float64(s.inside) / float64(s.samples)
}

// FirstViolation is the time of the first sample outside the domain, or NaN.
func (s *Stability) FirstViolation() float64 { return s.first }

func (s *Stability) Reset() {
	s.inside = 0
	s.samples = 0
	s.first = math.NaN()
}
