package config

import (
	"fmt"
	"sort"

	"github.com/san-kum/climsim/internal/climate"
)

type Preset struct {
	Description string
	Initial     climate.InitialConditions
	Params      climate.Params
}

var baselineParams = climate.Params{
	Gr: 3e-3, Gp: 9e-4,
	Kr: 1.1, Kp: 0.7,
	Gamma: 1, Alpha: 1, Beta: 1,
	D: 1e-5, F: 3,
	In: 0.2, Mp: 0,
}

var baselineIC = climate.InitialConditions{R: 1, P: 0.01, C: 1}

func with(mutate func(*climate.Params)) climate.Params {
	p := baselineParams
	mutate(&p)
	return p
}

var Presets = map[string]Preset{
	"baseline": {
		Description: "present-day economies, mild disasters every 3 years, no technology transfer",
		Initial:     baselineIC,
		Params:      baselineParams,
	},
	"no_transfer": {
		Description: "baseline with innovation kept entirely by the richer country",
		Initial:     baselineIC,
		Params:      with(func(p *climate.Params) { p.Mp = 0 }),
	},
	"half_transfer": {
		Description: "half of the richer country's innovation growth goes to the poorer country",
		Initial:     baselineIC,
		Params:      with(func(p *climate.Params) { p.Mp = 0.5 }),
	},
	"full_transfer": {
		Description: "all of the richer country's innovation growth goes to the poorer country",
		Initial:     baselineIC,
		Params:      with(func(p *climate.Params) { p.Mp = 1 }),
	},
	"severe_disasters": {
		Description: "disaster intensity raised by four orders of magnitude",
		Initial:     baselineIC,
		Params:      with(func(p *climate.Params) { p.D = 0.1 }),
	},
	"frequent_disasters": {
		Description: "a disaster at the end of every year",
		Initial:     baselineIC,
		Params:      with(func(p *climate.Params) { p.F = 1; p.D = 1e-3 }),
	},
}

// GetPreset looks up a preset by name; unknown names get a suggestion.
func GetPreset(name string) (*Preset, error) {
	p, ok := Presets[name]
	if !ok {
		if s := Suggest(name, ListPresets()); s != "" {
			return nil, fmt.Errorf("unknown preset %q (did you mean %q?)", name, s)
		}
		return nil, fmt.Errorf("unknown preset %q (available: %v)", name, ListPresets())
	}
	return &p, nil
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
