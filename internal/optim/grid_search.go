package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/san-kum/climsim/internal/dynamo"
	"github.com/san-kum/climsim/internal/experiment"
)

// Point is one evaluated grid cell. Err is set when the run failed; such
// points never become the best.
type Point struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type Result struct {
	Best      map[string]float64
	BestValue float64
	Points    []Point
}

// GridSearch evaluates every combination of parameter values, one run at a
// time, and keeps the one with the lowest (or highest) metric.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	Maximize   bool
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
) (*Result, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, fmt.Errorf("%d parameters but %d ranges", len(g.paramNames), len(g.ranges))
	}

	res := &Result{BestValue: math.Inf(1)}
	if g.Maximize {
		res.BestValue = math.Inf(-1)
	}

	if err := g.searchRecursive(ctx, 0, make(map[string]float64), buildExperiment, metricName, res); err != nil {
		return res, err
	}
	if res.Best == nil {
		return res, fmt.Errorf("no successful run among %d grid points", len(res.Points))
	}
	return res, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	buildExperiment func(map[string]float64) (*experiment.Experiment, error),
	metricName string,
	res *Result,
) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, err)
	}

	if depth == len(g.paramNames) {
		pt := Point{Params: current, Value: math.NaN()}
		defer func() { res.Points = append(res.Points, pt) }()

		exp, err := buildExperiment(current)
		if err != nil {
			pt.Err = err
			return nil
		}
		if err := exp.Setup(); err != nil {
			pt.Err = err
			return nil
		}

		tr, err := exp.Run(ctx)
		if err != nil {
			pt.Err = err
			if errors.Is(err, dynamo.ErrContextCanceled) {
				return err
			}
			return nil
		}

		val, ok := tr.Metrics[metricName]
		if !ok {
			return fmt.Errorf("unknown metric %q", metricName)
		}
		pt.Value = val
		if g.better(val, res.BestValue) {
			res.BestValue = val
			res.Best = make(map[string]float64, len(current))
			for k, v := range current {
				res.Best[k] = v
			}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, buildExperiment, metricName, res); err != nil {
			return err
		}
	}
	return nil
}

func (g *GridSearch) better(val, best float64) bool {
	if math.IsNaN(val) {
		return false
	}
	if g.Maximize {
		return val > best
	}
	return val < best
}

// ParseAxis parses "name=start:end:n" into a parameter name and n evenly
// spaced values, or "name=v1,v2,..." into an explicit list.
func ParseAxis(s string) (string, []float64, error) {
	name, rng, ok := strings.Cut(s, "=")
	if !ok || name == "" || rng == "" {
		return "", nil, fmt.Errorf("axis %q: want name=start:end:n or name=v1,v2", s)
	}

	if parts := strings.Split(rng, ":"); len(parts) == 3 {
		start, err1 := strconv.ParseFloat(parts[0], 64)
		end, err2 := strconv.ParseFloat(parts[1], 64)
		n, err3 := strconv.Atoi(parts[2])
		if err := errors.Join(err1, err2, err3); err != nil {
			return "", nil, fmt.Errorf("axis %q: %w", s, err)
		}
		if n < 1 {
			return "", nil, fmt.Errorf("axis %q: need at least one point", s)
		}
		return name, dynamo.Linspace(start, end, n), nil
	}

	values := make([]float64, 0)
	for _, part := range strings.Split(rng, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return "", nil, fmt.Errorf("axis %q: %w", s, err)
		}
		values = append(values, v)
	}
	return name, values, nil
}

// SortedNames returns the keys of a parameter map in order, for stable
// printing.
func SortedNames(params map[string]float64) []string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
