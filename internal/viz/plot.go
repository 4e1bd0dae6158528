package viz

import (
	"fmt"
	"io"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/climsim/internal/climate"
	"github.com/san-kum/climsim/internal/sim"
)

// PlotOptions sizes the terminal charts.
type PlotOptions struct {
	Width  int
	Height int
}

func DefaultPlotOptions() PlotOptions {
	return PlotOptions{Width: 80, Height: 10}
}

var componentCaptions = [climate.StateDim]string{
	"r: GDP of richer country",
	"p: GDP of poorer country",
	"I_r: innovation of richer country",
	"I_p: innovation of poorer country",
	"c: CO2 concentration",
}

// PlotComponent draws one state component against time.
func PlotComponent(tr *sim.Trajectory, idx int, opts PlotOptions) string {
	if tr.Len() == 0 || idx < 0 || idx >= climate.StateDim {
		return ""
	}
	return asciigraph.Plot(tr.Series(idx),
		asciigraph.Height(opts.Height),
		asciigraph.Width(opts.Width),
		asciigraph.Caption(fmt.Sprintf("%s (%.0f years)", componentCaptions[idx], span(tr))),
	)
}

// PlotGDP overlays both countries' GDP and the global total.
func PlotGDP(tr *sim.Trajectory, opts PlotOptions) string {
	if tr.Len() == 0 {
		return ""
	}
	return asciigraph.PlotMany(
		[][]float64{tr.Series(climate.IdxR), tr.Series(climate.IdxP), tr.GlobalGDP()},
		asciigraph.Height(opts.Height),
		asciigraph.Width(opts.Width),
		asciigraph.SeriesColors(asciigraph.Green, asciigraph.Red, asciigraph.Blue),
		asciigraph.Caption("GDP: rich (green), poor (red), global (blue)"),
	)
}

// PlotComponents writes a chart for every state component, followed by
// the combined GDP chart.
func PlotComponents(w io.Writer, tr *sim.Trajectory, opts PlotOptions) error {
	if tr.Len() == 0 {
		return fmt.Errorf("no data")
	}
	for idx := 0; idx < climate.StateDim; idx++ {
		if _, err := fmt.Fprintf(w, "%s\n\n", PlotComponent(tr, idx, opts)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s\n", PlotGDP(tr, opts))
	return err
}

func span(tr *sim.Trajectory) float64 {
	years := tr.Years()
	if len(years) == 0 {
		return 0
	}
	return years[len(years)-1]
}
