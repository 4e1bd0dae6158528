package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/climsim/internal/climate"
	"github.com/san-kum/climsim/internal/sim"
)

type ExportData struct {
	ID          string                    `json:"id,omitempty"`
	Name        string                    `json:"name"`
	NumYears    int                       `json:"num_years"`
	DaysPerYear int                       `json:"days_per_year"`
	Initial     climate.InitialConditions `json:"initial_conditions"`
	Params      climate.Params            `json:"parameters"`
	Components  []string                  `json:"components"`
	Times       []float64                 `json:"times"`
	States      [][]float64               `json:"states"`
	GlobalGDP   []float64                 `json:"global_gdp"`
	Shocks      []sim.ShockEvent          `json:"shocks"`
	Metrics     map[string]float64        `json:"metrics"`
}

func NewExportData(meta *RunMetadata, tr *sim.Trajectory) ExportData {
	data := ExportData{
		ID:          meta.ID,
		Name:        meta.Name,
		NumYears:    meta.NumYears,
		DaysPerYear: meta.DaysPerYear,
		Initial:     meta.Initial,
		Params:      meta.Params,
		Components:  climate.ComponentNames[:],
		Times:       tr.Times,
		States:      make([][]float64, len(tr.States)),
		GlobalGDP:   tr.GlobalGDP(),
		Shocks:      tr.Shocks,
		Metrics:     finiteMetrics(tr.Metrics),
	}
	for i, s := range tr.States {
		data.States[i] = s
	}
	if data.Shocks == nil {
		data.Shocks = []sim.ShockEvent{}
	}
	return data
}

// ExportJSON writes the run as indented JSON. An empty path means stdout.
func ExportJSON(path string, meta *RunMetadata, tr *sim.Trajectory) error {
	if path == "" || path == "-" {
		return WriteJSON(os.Stdout, meta, tr)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteJSON(file, meta, tr)
}

func WriteJSON(w io.Writer, meta *RunMetadata, tr *sim.Trajectory) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewExportData(meta, tr))
}
