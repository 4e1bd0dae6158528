package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/climsim/internal/climate"
	"github.com/san-kum/climsim/internal/dynamo"
)

var (
	icFields    = []string{"r", "p", "c"}
	paramFields = climate.ParamNames
)

// LoadInitialConditions reads a JSON (or YAML) file holding r, p and c and
// validates it.
func LoadInitialConditions(path string) (climate.InitialConditions, error) {
	var ic climate.InitialConditions
	values, err := readNumbers(path, icFields)
	if err != nil {
		return ic, err
	}

	ic = climate.InitialConditions{R: values["r"], P: values["p"], C: values["c"]}
	if err := ic.Validate(); err != nil {
		return ic, withSource(err, path)
	}
	return ic, nil
}

// LoadParams reads the ODE parameter file and validates it. f must be a
// whole number.
func LoadParams(path string) (climate.Params, error) {
	var p climate.Params
	values, err := readNumbers(path, paramFields)
	if err != nil {
		return p, err
	}

	p = climate.Params{
		Gr:    values["G_r"],
		Gp:    values["G_p"],
		Kr:    values["K_r"],
		Kp:    values["K_p"],
		Gamma: values["gamma"],
		Alpha: values["alpha"],
		Beta:  values["beta"],
		D:     values["D"],
		In:    values["I_n"],
		Mp:    values["M_p"],
	}
	p, err = p.With("f", values["f"])
	if err != nil {
		return p, withSource(err, path)
	}
	if err := p.Validate(); err != nil {
		return p, withSource(err, path)
	}
	return p, nil
}

// readNumbers decodes a flat mapping of numeric fields. Every expected field
// must be present; unknown keys are rejected with a suggestion.
func readNumbers(path string, fields []string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f] = true
	}

	unknown := make([]string, 0)
	for key := range raw {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		msg := fmt.Sprintf("%s: unknown field %q", path, unknown[0])
		if s := Suggest(unknown[0], fields); s != "" {
			msg += fmt.Sprintf(" (did you mean %q?)", s)
		}
		return nil, fmt.Errorf("%s", msg)
	}

	values := make(map[string]float64, len(fields))
	missing := make([]string, 0)
	for _, f := range fields {
		node, ok := raw[f]
		if !ok {
			missing = append(missing, f)
			continue
		}
		var v float64
		if err := node.Decode(&v); err != nil {
			return nil, &dynamo.ConfigError{Source: path, Field: f, Value: node.Value, Range: "a number"}
		}
		values[f] = v
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: missing field(s) %s", path, strings.Join(missing, ", "))
	}

	return values, nil
}

func withSource(err error, path string) error {
	if ce, ok := err.(*dynamo.ConfigError); ok {
		ce.Source = path
	}
	return err
}

// WriteInitialConditions and WriteParams produce files LoadInitialConditions
// and LoadParams accept.
func WriteInitialConditions(path string, ic climate.InitialConditions) error {
	return writeFlow(path, ic)
}

func WriteParams(path string, p climate.Params) error {
	return writeFlow(path, p)
}

func writeFlow(path string, v any) error {
	var node yaml.Node
	if err := node.Encode(v); err != nil {
		return err
	}
	node.Style = yaml.FlowStyle
	data, err := yaml.Marshal(&node)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, DefaultPlotFileMode)
}
