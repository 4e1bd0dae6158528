package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/san-kum/climsim/internal/climate"
	"github.com/san-kum/climsim/internal/sim"
)

const (
	PlotWidth       = 850
	PlotPanelHeight = 420

	richLabel = "Rich Country"
	poorLabel = "Poor Country"
	richColor = "#32cd32"
	poorColor = "#ff0000"
	globColor = "#228b22"
	xLabel    = "Time (years)"
)

type singlePlot struct {
	file     string
	title    string
	yLabel   string
	idx      int
	fromInit bool
}

var singlePlots = []singlePlot{
	{"Rich_GDP.svg", "GDP of richer country over time", "GDP relative to initial", climate.IdxR, false},
	{"Poor_GDP.svg", "GDP of poorer country over time", "GDP relative to richer's initial GDP", climate.IdxP, false},
	{"Rich_Inno.svg", "Innovation of richer country over time", "Innovation", climate.IdxIr, true},
	{"Poor_Inno.svg", "Innovation of poorer country over time", "Innovation", climate.IdxIp, true},
	{"CO2.svg", "CO2 over time", "CO2 Concentration", climate.IdxC, false},
}

// PlotFiles lists the file names WritePlots produces.
func PlotFiles() []string {
	files := make([]string, 0, len(singlePlots)+1)
	for _, p := range singlePlots {
		files = append(files, p.file)
	}
	return append(files, "all_plots.svg")
}

// WritePlots writes one SVG per state component and a combined three-panel
// figure into dir.
func WritePlots(dir string, tr *sim.Trajectory, numYears int) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	axis := Axis{Times: tr.Times, DaysPerYear: tr.DaysPerYear, NumYears: numYears, Label: xLabel}

	for _, sp := range singlePlots {
		values := tr.Series(sp.idx)
		panel := Panel{
			Title:     sp.title,
			YLabel:    sp.yLabel,
			HasBottom: true,
			Series:    []Series{{Label: climate.ComponentNames[sp.idx], Color: "#1f77b4", Values: values}},
		}
		if sp.fromInit && len(values) > 0 {
			panel.Bottom = values[0]
		}
		if err := writeFile(filepath.Join(dir, sp.file), axis, []Panel{panel}, PlotPanelHeight); err != nil {
			return fmt.Errorf("%s: %w", sp.file, err)
		}
	}

	if err := writeFile(filepath.Join(dir, "all_plots.svg"), axis, CombinedPanels(tr), PlotPanelHeight); err != nil {
		return fmt.Errorf("all_plots.svg: %w", err)
	}
	return nil
}

// CombinedPanels is GDP (with global GDP), innovation and CO2.
func CombinedPanels(tr *sim.Trajectory) []Panel {
	return []Panel{
		{
			Title:     "GDP over time",
			YLabel:    "GDP",
			HasBottom: true,
			Series: []Series{
				{Label: richLabel, Color: richColor, Values: tr.Series(climate.IdxR)},
				{Label: poorLabel, Color: poorColor, Values: tr.Series(climate.IdxP)},
				{Label: "Global", Color: globColor, Dashed: true, Values: tr.GlobalGDP()},
			},
		},
		{
			Title:     "Innovation over time",
			YLabel:    "Innovation",
			HasBottom: true,
			Series: []Series{
				{Label: richLabel, Color: richColor, Values: tr.Series(climate.IdxIr)},
				{Label: poorLabel, Color: poorColor, Values: tr.Series(climate.IdxIp)},
			},
		},
		{
			Title:     "CO2 over time",
			YLabel:    "CO2 Concentration",
			HasBottom: true,
			Series: []Series{
				{Label: "Global", Color: globColor, Values: tr.Series(climate.IdxC)},
			},
		},
	}
}

func writeFile(path string, axis Axis, panels []Panel, panelHeight int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSVG(f, axis, panels, PlotWidth, panelHeight); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
