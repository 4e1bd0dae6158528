package integrators

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/climsim/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// Continuous extension of order 4: row j gives the coefficients of
// theta, theta^2, theta^3, theta^4 that weight stage k_j.
var dense = [7][4]float64{
	{1, -8048581381.0 / 2820520608.0, 8663915743.0 / 2820520608.0, -12715105075.0 / 11282082432.0},
	{0, 0, 0, 0},
	{0, 131558114200.0 / 32700410799.0, -68118460800.0 / 10900136933.0, 87487479700.0 / 32700410799.0},
	{0, -1754552775.0 / 470086768.0, 14199869525.0 / 1410260304.0, -10690763975.0 / 1880347072.0},
	{0, 127303824393.0 / 49829197408.0, -318862633887.0 / 49829197408.0, 701980252875.0 / 199316789632.0},
	{0, -282668133.0 / 205662961.0, 2019193451.0 / 616988883.0, -1453857185.0 / 822651844.0},
	{0, 40617522.0 / 29380423.0, -110615467.0 / 29380423.0, 69997945.0 / 29380423.0},
}

const (
	DefaultRtol     = 1e-3
	DefaultAtol     = 1e-6
	DefaultMaxSteps = 100000
)

// RK45 is an adaptive Dormand-Prince 5(4) solver. Accepted steps advance
// with the 5th-order solution; evaluation times between steps are filled
// from the 4th-order dense output.
type RK45 struct {
	Rtol     float64
	Atol     float64
	MaxSteps int

	safety   float64
	minScale float64
	maxScale float64
}

func NewRK45() *RK45 {
	return &RK45{
		Rtol:     DefaultRtol,
		Atol:     DefaultAtol,
		MaxSteps: DefaultMaxSteps,
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

// WithTolerance returns a copy of r using the given tolerances. Zero values
// keep the current setting.
func (r *RK45) WithTolerance(rtol, atol float64) *RK45 {
	c := *r
	if rtol > 0 {
		c.Rtol = rtol
	}
	if atol > 0 {
		c.Atol = atol
	}
	return &c
}

type stages [7]dynamo.State

func (r *RK45) Solve(ctx context.Context, sys dynamo.System, span dynamo.Span, y0 dynamo.State, tEval []float64) (*dynamo.Solution, error) {
	if err := r.validate(sys, span, y0, tEval); err != nil {
		return nil, err
	}

	sol := &dynamo.Solution{
		Times:  make([]float64, 0, len(tEval)),
		States: make([]dynamo.State, 0, len(tEval)),
	}

	t := span.Start
	x := y0.Clone()
	f := sys.Derive(x, t)
	sol.Evaluations++
	if !f.IsValid() {
		return nil, &dynamo.SimulationError{Time: t, State: x, Wrapped: dynamo.ErrInvalidState}
	}

	next := 0
	for next < len(tEval) && tEval[next] <= t {
		sol.Times = append(sol.Times, tEval[next])
		sol.States = append(sol.States, x.Clone())
		next++
	}

	h := r.initialStep(sys, t, x, f, span.End, sol)
	rejectedLast := false

	for t < span.End {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, ctx.Err())
		default:
		}

		if sol.Steps+sol.Rejected >= r.MaxSteps {
			return nil, &dynamo.SimulationError{Step: sol.Steps, Time: t, State: x, Wrapped: dynamo.ErrTooManySteps}
		}

		minStep := 10 * (math.Nextafter(math.Abs(t), math.Inf(1)) - math.Abs(t))
		if h < minStep {
			return nil, &dynamo.SimulationError{Step: sol.Steps, Time: t, State: x, Wrapped: dynamo.ErrStepTooSmall}
		}

		last := false
		if t+h >= span.End {
			h = span.End - t
			last = true
		}

		xNew, k, errNorm := r.attempt(sys, x, f, t, h)
		sol.Evaluations += 6

		if !xNew.IsValid() || math.IsNaN(errNorm) || math.IsInf(errNorm, 0) {
			sol.Rejected++
			h *= r.minScale
			rejectedLast = true
			if h < minStep {
				return nil, &dynamo.SimulationError{Step: sol.Steps, Time: t, State: xNew, Wrapped: dynamo.ErrInvalidState}
			}
			continue
		}

		if errNorm > 1 {
			sol.Rejected++
			h *= math.Max(r.minScale, r.safety*math.Pow(errNorm, -0.2))
			rejectedLast = true
			continue
		}

		tNew := t + h
		if last {
			tNew = span.End
		}

		for next < len(tEval) && tEval[next] <= tNew {
			if tEval[next] == tNew {
				sol.States = append(sol.States, xNew.Clone())
			} else {
				sol.States = append(sol.States, interpolate(x, k, h, (tEval[next]-t)/h))
			}
			sol.Times = append(sol.Times, tEval[next])
			next++
		}

		scale := r.maxScale
		if errNorm > 0 {
			scale = math.Min(r.maxScale, r.safety*math.Pow(errNorm, -0.2))
		}
		if rejectedLast {
			scale = math.Min(1, scale)
		}
		rejectedLast = false

		h *= scale
		t = tNew
		x = xNew
		f = k[6]
		sol.Steps++
	}

	return sol, nil
}

func (r *RK45) validate(sys dynamo.System, span dynamo.Span, y0 dynamo.State, tEval []float64) error {
	if sys.StateDim() != len(y0) {
		return fmt.Errorf("%w: system has %d components, initial state has %d",
			dynamo.ErrDimensionMismatch, sys.StateDim(), len(y0))
	}
	if !(span.End > span.Start) {
		return fmt.Errorf("integrators: empty span [%g, %g]", span.Start, span.End)
	}
	if !y0.IsValid() {
		return &dynamo.SimulationError{Time: span.Start, State: y0.Clone(), Wrapped: dynamo.ErrInvalidState}
	}
	if r.Rtol <= 0 || r.Atol <= 0 {
		return fmt.Errorf("integrators: tolerances must be positive (rtol=%g, atol=%g)", r.Rtol, r.Atol)
	}
	for i, te := range tEval {
		if te < span.Start || te > span.End {
			return fmt.Errorf("integrators: evaluation time %g outside span [%g, %g]", te, span.Start, span.End)
		}
		if i > 0 && te < tEval[i-1] {
			return fmt.Errorf("integrators: evaluation times not sorted at index %d", i)
		}
	}
	return nil
}

// attempt takes one trial step of size h from (t, x) given k1 = f(x, t).
// It returns the 5th-order state, all seven stages and the RMS error norm
// scaled by the mixed tolerance.
func (r *RK45) attempt(dyn dynamo.System, x, k1 dynamo.State, t, h float64) (dynamo.State, stages, float64) {
	n := len(x)
	var k stages
	k[0] = k1

	x2 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x2[i] = x[i] + h*b21*k1[i]
	}
	k[1] = dyn.Derive(x2, t+a2*h)

	x3 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x3[i] = x[i] + h*(b31*k[0][i]+b32*k[1][i])
	}
	k[2] = dyn.Derive(x3, t+a3*h)

	x4 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x4[i] = x[i] + h*(b41*k[0][i]+b42*k[1][i]+b43*k[2][i])
	}
	k[3] = dyn.Derive(x4, t+a4*h)

	x5 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x5[i] = x[i] + h*(b51*k[0][i]+b52*k[1][i]+b53*k[2][i]+b54*k[3][i])
	}
	k[4] = dyn.Derive(x5, t+a5*h)

	x6 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x6[i] = x[i] + h*(b61*k[0][i]+b62*k[1][i]+b63*k[2][i]+b64*k[3][i]+b65*k[4][i])
	}
	k[5] = dyn.Derive(x6, t+h)

	xNew := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		xNew[i] = x[i] + h*(c1*k[0][i]+c3*k[2][i]+c4*k[3][i]+c5*k[4][i]+c6*k[5][i])
	}
	k[6] = dyn.Derive(xNew, t+h)

	sum := 0.0
	for i := 0; i < n; i++ {
		errEst := h * (dc1*k[0][i] + dc3*k[2][i] + dc4*k[3][i] + dc5*k[4][i] + dc6*k[5][i] + dc7*k[6][i])
		scale := r.Atol + math.Max(math.Abs(x[i]), math.Abs(xNew[i]))*r.Rtol
		e := errEst / scale
		sum += e * e
	}

	return xNew, k, math.Sqrt(sum / float64(n))
}

func interpolate(x dynamo.State, k stages, h, theta float64) dynamo.State {
	powers := [4]float64{theta, theta * theta, theta * theta * theta, theta * theta * theta * theta}
	out := x.Clone()
	for j := range k {
		w := 0.0
		for p := 0; p < 4; p++ {
			w += dense[j][p] * powers[p]
		}
		if w == 0 {
			continue
		}
		for i := range out {
			out[i] += h * w * k[j][i]
		}
	}
	return out
}

// initialStep picks the first trial step from the local scale of the
// solution and its derivative (Hairer, Norsett & Wanner, II.4).
func (r *RK45) initialStep(sys dynamo.System, t0 float64, y0, f0 dynamo.State, tEnd float64, sol *dynamo.Solution) float64 {
	interval := tEnd - t0
	n := float64(len(y0))

	rms := func(v func(i int) float64) float64 {
		sum := 0.0
		for i := range y0 {
			s := v(i) / (r.Atol + math.Abs(y0[i])*r.Rtol)
			sum += s * s
		}
		return math.Sqrt(sum / n)
	}

	d0 := rms(func(i int) float64 { return y0[i] })
	d1 := rms(func(i int) float64 { return f0[i] })

	h0 := 1e-6
	if d0 >= 1e-5 && d1 >= 1e-5 {
		h0 = 0.01 * d0 / d1
	}
	h0 = math.Min(h0, interval)

	y1 := make(dynamo.State, len(y0))
	for i := range y0 {
		y1[i] = y0[i] + h0*f0[i]
	}
	f1 := sys.Derive(y1, t0+h0)
	sol.Evaluations++

	d2 := rms(func(i int) float64 { return f1[i] - f0[i] }) / h0
	if math.IsNaN(d2) || math.IsInf(d2, 0) {
		return h0
	}

	var h1 float64
	if d1 <= 1e-15 && d2 <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/math.Max(d1, d2), 1.0/5.0)
	}

	return math.Min(math.Min(100*h0, h1), interval)
}
