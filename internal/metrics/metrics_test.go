package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/climsim/internal/dynamo"
)

var samples = []dynamo.State{
	{1.0, 0.5, 1.0, 0.5, 1.0},
	{1.2, 0.4, 1.1, 0.3, 1.5},
	{1.5, 0.9, 1.3, 0.6, 1.4},
}

func observeAll(m dynamo.Metric) {
	for i, x := range samples {
		m.Observe(x, float64(i))
	}
}

func TestClimateMetrics(t *testing.T) {
	tests := []struct {
		metric dynamo.Metric
		want   float64
	}{
		{NewPeakCO2(), 1.5},
		{NewGDPGap(), 0.6},
		{NewInnovationFloor(), 0.3},
		{NewGlobalGrowth(), 2.4 / 1.5},
		{NewStability(1e6), 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.metric.Name(), func(t *testing.T) {
			observeAll(tt.metric)
			if got := tt.metric.Value(); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("%s = %g, want %g", tt.metric.Name(), got, tt.want)
			}
		})
	}
}

func TestMetricReset(t *testing.T) {
	for _, m := range Defaults() {
		observeAll(m)
		m.Reset()
		m.Observe(dynamo.State{2, 1, 2, 1, 0.5}, 0)

		switch m.Name() {
		case "peak_co2":
			if m.Value() != 0.5 {
				t.Errorf("peak_co2 after reset = %g", m.Value())
			}
		case "innovation_floor":
			if m.Value() != 1 {
				t.Errorf("innovation_floor after reset = %g", m.Value())
			}
		case "global_growth":
			if m.Value() != 1 {
				t.Errorf("global_growth after reset = %g", m.Value())
			}
		}
	}
}

func TestStabilityViolations(t *testing.T) {
	s := NewStability(10)
	if !math.IsNaN(s.FirstViolation()) {
		t.Error("expected no violation before observing")
	}
	s.Observe(dynamo.State{1, 0.5, 1, 0.5, 2}, 0)
	s.Observe(dynamo.State{1, 0.5, 1, 0, 2}, 1)
	s.Observe(dynamo.State{1, 0.5, 1, 0.5, 20}, 2)
	s.Observe(dynamo.State{math.NaN(), 0.5, 1, 0.5, 2}, 3)
	s.Observe(dynamo.State{1, 0.5, 1, 0.5, 3}, 4)

	if got := s.Value(); got != 0.4 {
		t.Errorf("stability = %g, want 0.4", got)
	}
	if got := s.FirstViolation(); got != 1 {
		t.Errorf("first violation at %g, want 1", got)
	}

	s.Reset()
	if s.Value() != 1.0 || !math.IsNaN(s.FirstViolation()) {
		t.Error("expected full stability after reset")
	}
}

func TestDefaultsUniqueNames(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range Defaults() {
		if seen[m.Name()] {
			t.Errorf("duplicate metric name %q", m.Name())
		}
		seen[m.Name()] = true
	}
}
