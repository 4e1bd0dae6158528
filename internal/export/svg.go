package export

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// Series is one line in a panel.
type Series struct {
	Label  string
	Color  string
	Dashed bool
	Values []float64
}

// Panel is a single set of axes. When HasBottom is set the y axis starts
// at Bottom unless the data goes lower.
type Panel struct {
	Title     string
	YLabel    string
	Bottom    float64
	HasBottom bool
	Series    []Series
}

// Axis describes the shared x axis: Times in days, labeled in years.
type Axis struct {
	Times       []float64
	DaysPerYear int
	NumYears    int
	Label       string
}

const (
	panelMarginLeft   = 70.0
	panelMarginRight  = 130.0
	panelMarginTop    = 36.0
	panelMarginBottom = 48.0
	targetTicks       = 8
)

// WriteSVG renders panels stacked vertically, each width x panelHeight.
func WriteSVG(w io.Writer, axis Axis, panels []Panel, width, panelHeight int) error {
	if len(axis.Times) < 2 {
		return fmt.Errorf("need at least 2 points to plot, got %d", len(axis.Times))
	}
	for _, p := range panels {
		for _, s := range p.Series {
			if len(s.Values) != len(axis.Times) {
				return fmt.Errorf("series %q has %d values for %d times", s.Label, len(s.Values), len(axis.Times))
			}
		}
	}

	height := panelHeight * len(panels)
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif" font-size="12">
<rect width="100%%" height="100%%" fill="#ffffff"/>
`, width, height, width, height))

	for i, p := range panels {
		writePanel(&sb, axis, p, 0, float64(i*panelHeight), float64(width), float64(panelHeight))
	}

	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func writePanel(sb *strings.Builder, axis Axis, p Panel, x0, y0, w, h float64) {
	left := x0 + panelMarginLeft
	right := x0 + w - panelMarginRight
	top := y0 + panelMarginTop
	bottom := y0 + h - panelMarginBottom

	minX := axis.Times[0]
	maxX := axis.Times[len(axis.Times)-1]
	if maxX == minX {
		maxX = minX + 1
	}

	minY, maxY := bounds(p.Series)
	if p.HasBottom && p.Bottom < minY {
		minY = p.Bottom
	}
	rangeY := maxY - minY
	if rangeY == 0 {
		rangeY = math.Max(math.Abs(maxY), 1)
	}
	maxY += rangeY * 0.05
	if !p.HasBottom {
		minY -= rangeY * 0.05
	}
	rangeY = maxY - minY

	px := func(t float64) float64 { return left + (t-minX)/(maxX-minX)*(right-left) }
	py := func(v float64) float64 { return bottom - (v-minY)/rangeY*(bottom-top) }

	// grid and ticks
	sb.WriteString(`<g stroke="#d9d9d9" stroke-width="0.5">` + "\n")
	yTicks := niceTicks(minY, maxY, 5)
	for _, v := range yTicks {
		sb.WriteString(fmt.Sprintf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f"/>`+"\n", left, py(v), right, py(v)))
	}
	xTicks := yearTicks(axis)
	for _, year := range xTicks {
		x := px(float64(year * axis.DaysPerYear))
		sb.WriteString(fmt.Sprintf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f"/>`+"\n", x, top, x, bottom))
	}
	sb.WriteString("</g>\n")

	sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="none" stroke="#333333"/>`+"\n",
		left, top, right-left, bottom-top))

	for _, v := range yTicks {
		sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" text-anchor="end">%s</text>`+"\n",
			left-6, py(v)+4, formatTick(v)))
	}
	for _, year := range xTicks {
		sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" text-anchor="middle">%d</text>`+"\n",
			px(float64(year*axis.DaysPerYear)), bottom+16, year))
	}

	sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" text-anchor="middle" font-size="14">%s</text>`+"\n",
		(left+right)/2, y0+22, escape(p.Title)))
	sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" text-anchor="middle">%s</text>`+"\n",
		(left+right)/2, bottom+36, escape(axis.Label)))
	sb.WriteString(fmt.Sprintf(`<text transform="translate(%.1f,%.1f) rotate(-90)" text-anchor="middle">%s</text>`+"\n",
		x0+16, (top+bottom)/2, escape(p.YLabel)))

	for i, s := range p.Series {
		dash := ""
		if s.Dashed {
			dash = ` stroke-dasharray="6,3"`
		}
		sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5"%s d="M`, s.Color, dash))
		for j, v := range s.Values {
			if j == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", px(axis.Times[j]), py(v)))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", px(axis.Times[j]), py(v)))
			}
		}
		sb.WriteString(`"/>` + "\n")

		// legend
		ly := top + 14 + float64(i)*18
		sb.WriteString(fmt.Sprintf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="2"%s/>`+"\n",
			right+10, ly-4, right+34, ly-4, s.Color, dash))
		sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f">%s</text>`+"\n", right+40, ly, escape(s.Label)))
	}
}

func bounds(series []Series) (float64, float64) {
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			minY = math.Min(minY, v)
			maxY = math.Max(maxY, v)
		}
	}
	if math.IsInf(minY, 1) {
		return 0, 1
	}
	return minY, maxY
}

// yearTicks returns about targetTicks whole years from 0 to NumYears.
func yearTicks(axis Axis) []int {
	years := axis.NumYears
	if years <= 0 {
		years = int(math.Ceil(axis.Times[len(axis.Times)-1] / float64(max(axis.DaysPerYear, 1))))
	}
	step := max(years/targetTicks, 1)
	ticks := make([]int, 0, targetTicks+2)
	for y := 0; y <= years; y += step {
		ticks = append(ticks, y)
	}
	return ticks
}

func niceTicks(lo, hi float64, n int) []float64 {
	span := hi - lo
	if span <= 0 || n < 1 {
		return []float64{lo}
	}
	raw := span / float64(n)
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	step := mag
	for _, m := range []float64{1, 2, 5, 10} {
		if raw <= m*mag {
			step = m * mag
			break
		}
	}
	start := math.Ceil(lo / step)
	ticks := make([]float64, 0, n+2)
	for i := 0.0; (start+i)*step <= hi+step*1e-9; i++ {
		ticks = append(ticks, (start+i)*step)
	}
	return ticks
}

func formatTick(v float64) string {
	if v != 0 && (math.Abs(v) < 1e-3 || math.Abs(v) >= 1e5) {
		return fmt.Sprintf("%.1e", v)
	}
	return fmt.Sprintf("%.4g", v)
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escape(s string) string { return escaper.Replace(s) }
