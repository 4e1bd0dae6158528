package sim

import (
	"github.com/san-kum/climsim/internal/climate"
	"github.com/san-kum/climsim/internal/dynamo"
)

const (
	DefaultNumYears    = 50
	DefaultDaysPerYear = 365
)

type Config struct {
	NumYears    int
	DaysPerYear int
}

func DefaultConfig() Config {
	return Config{
		NumYears:    DefaultNumYears,
		DaysPerYear: DefaultDaysPerYear,
	}
}

func (c Config) Validate() error {
	if c.NumYears < 0 {
		return &dynamo.ConfigError{Field: "num_years", Value: c.NumYears, Range: ">= 0"}
	}
	if c.DaysPerYear < 1 {
		return &dynamo.ConfigError{Field: "days_per_year", Value: c.DaysPerYear, Range: ">= 1"}
	}
	return nil
}

// Segment describes one year's solver call. First and Last index the points
// it appended to the trajectory.
type Segment struct {
	Year        int
	Span        dynamo.Span
	First       int
	Last        int
	Initial     dynamo.State
	Steps       int
	Rejected    int
	Evaluations int
}

// ShockEvent records a disaster applied to the last point of a segment.
// R, P and C are the pre-shock values both losses were computed from.
type ShockEvent struct {
	Year  int     `json:"year"`
	Time  float64 `json:"time"`
	Index int     `json:"index"`
	R     float64 `json:"r"`
	P     float64 `json:"p"`
	C     float64 `json:"c"`
	LossR float64 `json:"loss_r"`
	LossP float64 `json:"loss_p"`
}

// Trajectory is the concatenated output of all segments. Times are
// non-decreasing and States[i] is the state at Times[i].
type Trajectory struct {
	DaysPerYear int
	Times       []float64
	States      []dynamo.State
	Segments    []Segment
	Shocks      []ShockEvent
	Metrics     map[string]float64
}

func newTrajectory(cfg Config) *Trajectory {
	n := 1 + (cfg.NumYears+1)*cfg.DaysPerYear
	return &Trajectory{
		DaysPerYear: cfg.DaysPerYear,
		Times:       make([]float64, 0, n),
		States:      make([]dynamo.State, 0, n),
		Segments:    make([]Segment, 0, cfg.NumYears+1),
		Metrics:     make(map[string]float64),
	}
}

func (tr *Trajectory) append(t float64, x dynamo.State) {
	tr.Times = append(tr.Times, t)
	tr.States = append(tr.States, x)
}

func (tr *Trajectory) Len() int { return len(tr.Times) }

func (tr *Trajectory) Last() dynamo.State {
	if len(tr.States) == 0 {
		return nil
	}
	return tr.States[len(tr.States)-1]
}

// Series extracts one state component over time.
func (tr *Trajectory) Series(idx int) []float64 {
	out := make([]float64, len(tr.States))
	for i, x := range tr.States {
		if idx < len(x) {
			out[i] = x[idx]
		}
	}
	return out
}

// GlobalGDP is r + p at every point.
func (tr *Trajectory) GlobalGDP() []float64 {
	out := make([]float64, len(tr.States))
	for i, x := range tr.States {
		out[i] = x[climate.IdxR] + x[climate.IdxP]
	}
	return out
}

// Years converts Times to fractional years.
func (tr *Trajectory) Years() []float64 {
	out := make([]float64, len(tr.Times))
	days := float64(tr.DaysPerYear)
	if days == 0 {
		days = DefaultDaysPerYear
	}
	for i, t := range tr.Times {
		out[i] = t / days
	}
	return out
}

type Observer interface {
	OnSegment(seg Segment, tr *Trajectory)
}
